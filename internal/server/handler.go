/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonschema"
	"github.com/lockd/attestor/internal/attest"
	"github.com/lockd/attestor/internal/domain"
	"github.com/lockd/attestor/internal/domain/model"
	"github.com/lockd/attestor/internal/lifecycle"
	"github.com/lockd/attestor/resources"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1 MiB is far above any valid request.
	requestIDHeader     = "X-Request-Id"
)

type handler struct {
	svc           Services
	attestSchema  *jsonschema.Schema
	sessionSchema *jsonschema.Schema
	logger        *log.Logger
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

// pledgeRequest is the body of both POST endpoints. pledgeId may arrive as a
// JSON string or number; userAddress is the older name of ownerAddress.
type pledgeRequest struct {
	PledgeID     json.Number `json:"pledgeId"`
	OwnerAddress string      `json:"ownerAddress"`
	UserAddress  string      `json:"userAddress"`
}

func (r pledgeRequest) toRequest() attest.Request {
	owner := r.OwnerAddress
	if owner == "" {
		owner = r.UserAddress
	}
	return attest.Request{PledgeID: r.PledgeID.String(), OwnerAddress: owner}
}

type errorResponse struct {
	Error            string  `json:"error"`
	RemainingSeconds *uint64 `json:"remainingSeconds,omitempty"`
}

type attestResponse struct {
	Signature   string `json:"signature"`
	MessageHash string `json:"messageHash"`
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	StartTime int64  `json:"startTime"`
	Message   string `json:"message"`
}

type userPledgesResponse struct {
	PledgeIDs      []string `json:"pledgeIds"`
	ActivePledgeID *string  `json:"activePledgeId"`
}

type pledgeStatusResponse struct {
	Pledge    *model.Pledge           `json:"pledge"`
	Constants model.ProtocolConstants `json:"constants"`
	Status    lifecycle.Status        `json:"status"`
}

func compileSchema(data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func newHandler(svc Services, logger *log.Logger) (*handler, error) {
	if svc.Attestor == nil || svc.Sessions == nil || svc.Ledger == nil || svc.Index == nil {
		return nil, errors.New("handler requires attestor, sessions, ledger and index")
	}
	if svc.Now == nil {
		svc.Now = time.Now
	}
	attestSchema, err := compileSchema(resources.AttestRequestSchema)
	if err != nil {
		return nil, err
	}
	sessionSchema, err := compileSchema(resources.SessionStartRequestSchema)
	if err != nil {
		return nil, err
	}
	return &handler{
		svc:           svc,
		attestSchema:  attestSchema,
		sessionSchema: sessionSchema,
		logger:        logger,
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get(requestIDHeader)
	if _, err := uuid.Parse(reqID); err != nil {
		reqID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, reqID)

	var route func(http.ResponseWriter, *http.Request, string)
	method := http.MethodPost
	switch r.URL.Path {
	case "/attest-checkin":
		route = h.attestCheckIn
	case "/session/start":
		route = h.startSession
	case "/user-pledges":
		route, method = h.userPledges, http.MethodGet
	case "/pledge-status":
		route, method = h.pledgeStatus, http.MethodGet
	case "/healthz":
		route, method = h.healthz, http.MethodGet
	default:
		http.NotFound(w, r)
		return
	}
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	route(w, r, reqID)
}

func (h *handler) attestCheckIn(w http.ResponseWriter, r *http.Request, reqID string) {
	req, ok := h.readPledgeRequest(w, r, reqID, h.attestSchema)
	if !ok {
		return
	}

	att, err := h.svc.Attestor.Attest(r.Context(), req)
	if err != nil {
		h.logger.Printf("[%s] attest-checkin pledge=%s owner=%s: %v", reqID, req.PledgeID, req.OwnerAddress, err)
		h.writeError(w, reqID, err)
		return
	}

	h.writeJSON(w, reqID, http.StatusOK, attestResponse{
		Signature:   att.SignatureHex(),
		MessageHash: att.MessageHash.Hex(),
	})
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request, reqID string) {
	req, ok := h.readPledgeRequest(w, r, reqID, h.sessionSchema)
	if !ok {
		return
	}

	session, err := h.svc.Sessions.Start(r.Context(), req)
	if err != nil {
		h.logger.Printf("[%s] session/start pledge=%s owner=%s: %v", reqID, req.PledgeID, req.OwnerAddress, err)
		h.writeError(w, reqID, err)
		return
	}

	h.writeJSON(w, reqID, http.StatusOK, sessionResponse{
		Success:   true,
		StartTime: session.StartTime,
		Message:   "Session started",
	})
}

func (h *handler) userPledges(w http.ResponseWriter, r *http.Request, reqID string) {
	owner, err := attest.ParseOwnerAddress(r.URL.Query().Get("address"))
	if err != nil {
		h.writeError(w, reqID, err)
		return
	}

	ids, err := h.svc.Index.PledgeIDs(r.Context(), owner)
	if err != nil {
		h.logger.Printf("[%s] user-pledges owner=%s: %v", reqID, owner.Hex(), err)
		h.writeError(w, reqID, fmt.Errorf("%w: %v", attest.ErrUpstream, err))
		return
	}
	pledges, err := lifecycle.LoadPledges(r.Context(), h.svc.Ledger, ids)
	if err != nil {
		h.logger.Printf("[%s] user-pledges owner=%s: %v", reqID, owner.Hex(), err)
		h.writeError(w, reqID, fmt.Errorf("%w: %v", attest.ErrUpstream, err))
		return
	}

	resp := userPledgesResponse{PledgeIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.PledgeIDs = append(resp.PledgeIDs, id.String())
	}
	if active := lifecycle.SelectActive(pledges); active != nil {
		id := active.ID.String()
		resp.ActivePledgeID = &id
	}
	h.writeJSON(w, reqID, http.StatusOK, resp)
}

// pledgeStatus derives the phase without a local session, which is what the
// server can know on its own.
func (h *handler) pledgeStatus(w http.ResponseWriter, r *http.Request, reqID string) {
	id, err := attest.ParsePledgeID(r.URL.Query().Get("pledgeId"))
	if err != nil {
		h.writeError(w, reqID, err)
		return
	}

	pledge, err := h.svc.Ledger.Pledge(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		h.writeJSON(w, reqID, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("pledge %s does not exist", id)})
		return
	}
	if err != nil {
		h.logger.Printf("[%s] pledge-status pledge=%s: %v", reqID, id, err)
		h.writeError(w, reqID, fmt.Errorf("%w: %v", attest.ErrUpstream, err))
		return
	}
	constants, err := h.svc.Ledger.Constants(r.Context())
	if err != nil {
		h.logger.Printf("[%s] pledge-status constants: %v", reqID, err)
		h.writeError(w, reqID, fmt.Errorf("%w: %v", attest.ErrUpstream, err))
		return
	}

	h.writeJSON(w, reqID, http.StatusOK, pledgeStatusResponse{
		Pledge:    pledge,
		Constants: constants,
		Status:    lifecycle.Derive(lifecycle.Input{Pledge: pledge, Constants: constants, Now: h.svc.Now()}),
	})
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request, _ string) {
	h.writeResponse(w, responseSpec{
		status:      http.StatusOK,
		body:        []byte("ok"),
		contentType: "text/plain",
	})
}

func (h *handler) readPledgeRequest(w http.ResponseWriter, r *http.Request, reqID string, schema *jsonschema.Schema) (attest.Request, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		h.logger.Printf("[%s] content type mismatch: expected application/json, actual %v", reqID, ct)
		http.Error(w, "This endpoint only accepts Content-Type: application/json", http.StatusUnsupportedMediaType)
		return attest.Request{}, false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.Printf("[%s] failed reading request body: %v", reqID, err)
		h.writeError(w, reqID, fmt.Errorf("%w: unreadable body", attest.ErrValidation))
		return attest.Request{}, false
	}
	if err := r.Body.Close(); err != nil {
		h.logger.Printf("[%s] failed closing request body: %v", reqID, err)
	}

	if !json.Valid(body) {
		h.writeError(w, reqID, fmt.Errorf("%w: body is not JSON", attest.ErrValidation))
		return attest.Request{}, false
	}
	if result := schema.ValidateJSON(body); !result.IsValid() {
		h.logger.Printf("[%s] schema validation failed: %v", reqID, result.Errors)
		h.writeError(w, reqID, fmt.Errorf("%w: pledgeId and ownerAddress are required", attest.ErrValidation))
		return attest.Request{}, false
	}

	var req pledgeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, reqID, fmt.Errorf("%w: %v", attest.ErrValidation, err))
		return attest.Request{}, false
	}
	return req.toRequest(), true
}

// statusFor maps an error kind to its HTTP status. Upstream and signing
// failures do not echo their cause to the caller.
func statusFor(err error) (int, errorResponse) {
	var timing *attest.TimingError
	switch {
	case errors.As(err, &timing):
		remaining := timing.RemainingSeconds
		return http.StatusForbidden, errorResponse{Error: err.Error(), RemainingSeconds: &remaining}
	case errors.Is(err, attest.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, attest.ErrAuthorization):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, attest.ErrUpstream):
		return http.StatusInternalServerError, errorResponse{Error: attest.ErrUpstream.Error()}
	case errors.Is(err, attest.ErrSigning):
		return http.StatusInternalServerError, errorResponse{Error: attest.ErrSigning.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)}
	}
}

func (h *handler) writeError(w http.ResponseWriter, reqID string, err error) {
	status, body := statusFor(err)
	h.writeJSON(w, reqID, status, body)
}

func (h *handler) writeJSON(w http.ResponseWriter, reqID string, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("[%s] failed encoding response: %v", reqID, err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeResponse(w, responseSpec{
		status:      status,
		body:        body,
		contentType: "application/json",
	})
}

func (h *handler) writeResponse(w http.ResponseWriter, spec responseSpec) {
	w.Header().Set("Server", "lockd-attestor")

	if len(spec.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", spec.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(spec.body)))
		w.WriteHeader(spec.status)
		if _, err := w.Write(spec.body); err != nil {
			h.logger.Printf("failed writing response body: %v", err)
		}
		return
	}

	w.WriteHeader(spec.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
