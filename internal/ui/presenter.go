package ui

import (
	"io"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      stats.ReadTicker
	OutputDir  string // stripped from displayed paths
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	NoProgress bool
	// ProgressInterval is how often the plain presenter prints a progress
	// line. Zero means every five seconds.
	ProgressInterval time.Duration
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		interval := cfg.ProgressInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		return &plainPresenter{
			w:          cfg.Writer,
			errW:       cfg.ErrWriter,
			stats:      cfg.Stats,
			outputDir:  cfg.OutputDir,
			interval:   interval,
			noProgress: cfg.NoProgress,
			verbose:    cfg.Verbose,
		}
	}
	return &hudPresenter{
		w:         cfg.ErrWriter, // HUD renders to stderr (the TTY)
		stats:     cfg.Stats,
		outputDir: cfg.OutputDir,
		verbose:   cfg.Verbose,
	}
}
