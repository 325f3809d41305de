/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/lockd/attestor/internal/config"
	"github.com/lockd/attestor/internal/server"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the attestation server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.viper(cmd, map[string]string{
				config.KeyServerAddr:    "addr",
				config.KeySessionPolicy: "session-policy",
				config.KeyStoreBackend:  "store",
			})
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				klog.ErrorS(err, "Refusing to start")
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("session-policy", string(config.SessionPolicyLenient), "lenient signs without a recorded session, strict refuses")
	cmd.Flags().String("store", string(config.StoreBackendSQLite), "session store backend: memory, sqlite or redis")
	return cmd
}

func runServe(parent context.Context, cfg config.AttestorConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := klog.NewStandardLogger("INFO")
	cfg.Logger = logger

	app, err := wireAttestor(ctx, cfg, logger)
	if err != nil {
		klog.ErrorS(err, "Failed to wire attestor")
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			klog.ErrorS(err, "Failed to close stores")
		}
	}()

	checkLedger(ctx, app)

	srv, err := server.New(cfg, app.services())
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		klog.InfoS("Received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	klog.Info("Shutdown complete")
	return nil
}

// checkLedger reports configuration problems the ledger would otherwise only
// reveal by rejecting check-ins. Nothing here is fatal.
func checkLedger(ctx context.Context, app *attestorApp) {
	d, err := app.signer.Diagnose(ctx)
	switch {
	case err != nil:
		klog.ErrorS(err, "Could not read signerWallet from the ledger")
	case !d.Match:
		klog.Warningf("Signer key %s is not the ledger signerWallet %s: every attestation will be rejected on-chain", d.LocalSigner.Hex(), d.LedgerSigner.Hex())
	default:
		klog.InfoS("Signer key matches ledger signerWallet", "address", d.LocalSigner.Hex())
	}

	if _, err := app.ledger.Constants(ctx); err != nil {
		klog.ErrorS(err, "Could not read ledger constants")
	}
}
