package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/config"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui"
)

// Config configures the TUI presenter.
type Config struct {
	Stats     stats.ReadTicker
	Source    string
	OutputDir string
	Theme     config.ThemeConfig
	// Cancel aborts the acquisition when the operator quits early.
	Cancel context.CancelFunc
}

// Presenter wraps a Bubble Tea program and implements ui.Presenter.
type Presenter struct {
	cfg   Config
	model Model
}

var _ ui.Presenter = (*Presenter)(nil)

// NewPresenter creates a new TUI presenter.
func NewPresenter(cfg Config) *Presenter {
	ApplyTheme(cfg.Theme)
	return &Presenter{cfg: cfg}
}

// Run starts the Bubble Tea program and blocks until the operator quits.
func (p *Presenter) Run(events <-chan event.Event) error {
	p.model = NewModel(events, p.cfg.Stats, p.cfg.Source, p.cfg.OutputDir, p.cfg.Cancel)
	prog := tea.NewProgram(
		p.model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	finalModel, err := prog.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	p.model = finalModel.(Model)
	return nil
}

// Summary returns the final completion summary line, flagged when the
// operator cut the acquisition short from the TUI.
func (p *Presenter) Summary() string {
	line := ui.CompletionSummary(p.cfg.Stats.Snapshot())
	if p.model.aborting {
		line += "  (aborted by operator)"
	}
	return line
}
