/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package phase

import (
	"context"
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lockd/attestor/internal/client"
	"github.com/lockd/attestor/internal/lifecycle"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

// Source fetches a fresh snapshot from the ledger side.
type Source func(ctx context.Context) (*client.Snapshot, error)

type renderReadyMsg struct{}

type model struct {
	snap   *client.Snapshot
	now    time.Time
	styles styles
	output string
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.snap, derive(m.snap, m.now), m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render derives the phase at now and renders it once.
func Render(snap *client.Snapshot, now time.Time) (string, error) {
	p := tea.NewProgram(
		model{snap: snap, now: now, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

func derive(snap *client.Snapshot, now time.Time) lifecycle.Status {
	if snap == nil {
		return lifecycle.Derive(lifecycle.Input{Now: now})
	}
	return snap.Derive(now)
}

type tickMsg time.Time

type snapshotMsg struct {
	snap *client.Snapshot
	err  error
}

// WatchOptions tune the live view. The phase is re-derived every tick; the
// ledger is re-read every Poll.
type WatchOptions struct {
	Tick time.Duration
	Poll time.Duration
	Now  func() time.Time
}

type watchModel struct {
	ctx      context.Context
	source   Source
	opts     WatchOptions
	styles   styles
	snap     *client.Snapshot
	err      error
	now      time.Time
	lastPoll time.Time
	fetching bool
}

func newWatchModel(ctx context.Context, source Source, opts WatchOptions) watchModel {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return watchModel{ctx: ctx, source: source, opts: opts, styles: newStyles(), now: opts.Now()}
}

func (m watchModel) fetch() tea.Msg {
	snap, err := m.source(m.ctx)
	return snapshotMsg{snap: snap, err: err}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch, m.tick())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		m.now = m.opts.Now()
		if !m.fetching && m.now.Sub(m.lastPoll) >= m.opts.Poll {
			m.fetching = true
			return m, tea.Batch(m.fetch, m.tick())
		}
		return m, m.tick()
	case snapshotMsg:
		m.fetching = false
		m.now = m.opts.Now()
		m.lastPoll = m.now
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m watchModel) View() string {
	if m.snap == nil && m.err == nil {
		return m.styles.empty.Render("loading pledge...") + "\n"
	}
	out := renderView(m.snap, derive(m.snap, m.now), m.styles)
	if m.err != nil {
		out += "\n" + m.styles.danger.Render("refresh failed: "+m.err.Error())
	}
	return out + "\n" + m.styles.empty.Render("q to quit") + "\n"
}

// Watch runs the live view until the user quits or ctx ends.
func Watch(ctx context.Context, source Source, opts WatchOptions, out io.Writer) error {
	p := tea.NewProgram(newWatchModel(ctx, source, opts), tea.WithContext(ctx), tea.WithOutput(out))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
