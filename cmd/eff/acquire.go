package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/config"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/engine"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/journal"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ledger"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/postprocess"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/report"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/source"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui/tui"
)

// Artifact names inside the output directory.
const (
	rawImageName  = "image.dd"
	journalName   = "acquisition.log"
	badSectorName = "bad_sectors.log"
)

// geteuid is swapped in tests.
var geteuid = os.Geteuid

// defaultAcquireOptions returns the built-in flag defaults.
func defaultAcquireOptions() *acquireOptions {
	return &acquireOptions{
		outputDir: "forensic_output",
		evidence:  "1",
		chunkSize: sizeFlag{n: engine.DefaultChunkSize, raw: "1M"},
		compress:  postprocess.CompressFast,
	}
}

func newAcquireCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	o := defaultAcquireOptions()

	cmd := &cobra.Command{
		Use:   "acquire [flags] <source>",
		Short: "Acquire a raw image of a device or file",
		Long: `Acquire reads the source sequentially into <output-dir>/image.dd,
hashing every byte written. Unreadable chunks are zero-filled and logged
to bad_sectors.log. On Linux block devices the kernel read-only flag is
set for the duration of the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(stderr, "warning: failed to load config %s: %v\n", config.Path(), err)
			}
			if err := applyConfigDefaults(cmd.Flags(), cfg, o); err != nil {
				return err
			}
			if err := o.validate(); err != nil {
				return err
			}
			a := &acquisition{
				opts:   o,
				theme:  cfg.Theme,
				stdin:  stdin,
				stdout: stdout,
				stderr: stderr,
			}
			return a.run(cmd.Context(), args[0])
		},
	}
	o.bind(cmd.Flags())
	return cmd
}

// acquisition is one invocation of the acquire command.
type acquisition struct {
	opts   *acquireOptions
	theme  config.ThemeConfig
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: command entry point wires every component
func (a *acquisition) run(parent context.Context, src string) error {
	o := a.opts

	digests, err := o.digestPair()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(a.stderr, o)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	kind, err := source.KindOf(src)
	if err != nil {
		return fmt.Errorf("source %s: %w", src, err)
	}
	if kind == source.KindBlockDevice && runtime.GOOS == "linux" && geteuid() != 0 {
		return fmt.Errorf("acquiring block device %s requires root", src)
	}

	if !o.quiet {
		fmt.Fprintf(a.stderr, banner, version)
	}

	outputDir, err := filepath.Abs(o.outputDir)
	if err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	dest := filepath.Join(outputDir, rawImageName)
	// Fail before touching the device; the engine re-checks.
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%w: %s", engine.ErrDestinationExists, dest)
	}

	// Post-processing must be runnable before imaging starts.
	var recoveryKey string
	steps := a.steps(digests, &recoveryKey)
	if err := postprocess.CheckAvailable(steps); err != nil {
		return err
	}

	in := bufio.NewReader(a.stdin)
	if o.bitlocker {
		if recoveryKey, err = readRecoveryKey(a.stdin, in, a.stderr); err != nil {
			return err
		}
	}

	j, err := journal.Open(filepath.Join(outputDir, journalName), journal.WithMirror(logger))
	if err != nil {
		return err
	}
	defer j.Close()

	badLog, err := journal.OpenBadSectorLog(filepath.Join(outputDir, badSectorName))
	if err != nil {
		return err
	}
	defer badLog.Close()
	sinks := []engine.BadSectorSink{badLog}

	var acq *ledger.Acquisition
	if !o.noLedger {
		path := o.ledgerPath
		if path == "" {
			path = ledger.DefaultPath(outputDir)
		}
		l, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer l.Close()
		if acq, err = l.Begin(src, dest, o.examiner, o.caseNumber); err != nil {
			return err
		}
		sinks = append(sinks, acq)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer engine.SweepPartials(logger)

	confirm := confirmUnprotected(in, a.stderr)
	if o.assumeUnprotected {
		confirm = assumeUnprotected(a.stderr)
	}

	// Block devices are protected before any display starts so the
	// operator prompt never competes with the HUD or TUI.
	var guard engine.Guard
	if kind == source.KindBlockDevice {
		if info, sizeErr := source.Size(src); sizeErr == nil {
			g := source.NewGuard(info, confirm, logger)
			p, gErr := g.Acquire()
			defer g.Release() //nolint:errcheck // engine reports release failures
			guard = &heldGuard{g: g, protection: p, err: gErr}
		}
	}

	collector := stats.NewCollector()
	events := make(chan event.Event, 1024)
	presenterEvents := teeEvents(events, o.logFile != "")

	isTTY := ui.IsTerminal(a.stderr)
	useTUI := o.tui && isTTY && !o.quiet
	var presenter ui.Presenter
	if useTUI {
		presenter = tui.NewPresenter(tui.Config{
			Stats:     collector,
			Source:    src,
			OutputDir: outputDir,
			Theme:     a.theme,
			Cancel:    cancel,
		})
	} else {
		if o.tui && !o.quiet {
			logger.Warn("--tui requires a terminal, falling back to inline output")
		}
		presenter = ui.NewPresenter(ui.Config{
			Writer:     a.stdout,
			ErrWriter:  a.stderr,
			Stats:      collector,
			OutputDir:  outputDir,
			IsTTY:      isTTY,
			Quiet:      o.quiet,
			Verbose:    o.verbose,
			NoProgress: o.noProgress,
		})
	}

	p := &pipeline{
		engine: engine.Config{
			Source:      src,
			Destination: dest,
			ChunkSize:   int(o.chunkSize.n),
			Digests:     digests,
			BWLimit:     o.bwLimit.n,
			Confirm:     confirm,
			Guard:       guard,
			Events:      events,
			Stats:       collector,
			Journal:     j,
			BadSectors:  engine.TeeBadSectors(sinks...),
			Logger:      logger,
		},
		verify: o.verify,
		runner: &postprocess.Runner{Steps: steps, Events: events},
		input: postprocess.Input{
			OutputDir: outputDir,
			Source:    src,
			Case: postprocess.Case{
				Number:   o.caseNumber,
				Examiner: o.examiner,
				Evidence: o.evidence,
				Notes:    o.notes,
			},
			Journal: j,
			Logger:  logger,
		},
		journal:   j,
		ledger:    acq,
		collector: collector,
		logger:    logger,
	}

	var out pipelineResult
	if useTUI {
		// TUI mode: pipeline in background, TUI in foreground.
		// Bubble Tea needs the foreground to capture stdin properly.
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			out = p.run(ctx)
			close(events)
		}()
		_ = presenter.Run(presenterEvents) //nolint:errcheck // presenter error is non-fatal
		// The operator left the TUI; stop anything still running and keep
		// draining so lifecycle sends never block.
		cancel()
		go func() {
			for range presenterEvents {
			}
		}()
		wg.Wait()
	} else {
		// Inline mode: presenter in background, pipeline in foreground.
		var presenterErr error
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			presenterErr = presenter.Run(presenterEvents)
		}()
		out = p.run(ctx)
		close(events)
		wg.Wait()
		if presenterErr != nil {
			fmt.Fprintf(a.stderr, "presenter: %v\n", presenterErr)
		}
	}
	stop()

	if !o.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(a.stderr, summary)
		}
	}

	if out.err != nil {
		logger.Error("acquisition failed", "error", out.err)
		fmt.Fprintf(a.stderr, "Error: %v\n", out.err)
		return &exitError{code: exitFailed}
	}

	code := exitOK
	if out.verifyErr != nil || out.postErr != nil {
		code = exitPostFailed
	}

	_ = j.Recordf("Generating final report...") //nolint:errcheck // journal errors are non-fatal
	_ = j.Recordf("Forensic acquisition process completed.")
	if err := j.Close(); err != nil {
		logger.Error("failed to close journal", "error", err)
	}

	rep := a.report(src, out, acq)
	rep.LoadJournal(j.Path())
	paths, err := rep.Write(outputDir)
	if err != nil {
		logger.Error("failed to write report", "error", err)
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		code = exitPostFailed
	}

	if !o.quiet {
		fmt.Fprintf(a.stdout, "\nFinal output located in: %s\n", outputDir)
		fmt.Fprintf(a.stdout, "Primary evidence file: %s\n", out.finalImage)
		if paths.Markdown != "" {
			fmt.Fprintf(a.stdout, "Report: %s\n", paths.Markdown)
		}
	}

	if code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

// steps builds the requested post-processing chain in its fixed order:
// decryption, container conversion, export.
func (a *acquisition) steps(digests [2]string, key *string) []postprocess.Step {
	o := a.opts
	var steps []postprocess.Step
	if o.bitlocker {
		steps = append(steps, &postprocess.BitLocker{
			Prompt:  cachedKey(key),
			Digests: digests,
		})
	}
	if o.ewf {
		steps = append(steps, &postprocess.EWF{
			Compression: o.compress,
			SegmentSize: int64(o.split) << 20,
		})
	}
	if o.zstd {
		steps = append(steps, &postprocess.Zstd{Level: postprocess.ZstdLevel(o.compress)})
	}
	return steps
}

func (a *acquisition) report(src string, out pipelineResult, acq *ledger.Acquisition) *report.Report {
	o := a.opts
	res := out.res
	r := &report.Report{
		Tool:       "eff " + version,
		CaseNumber: o.caseNumber,
		Examiner:   o.examiner,
		Evidence:   o.evidence,
		Notes:      o.notes,
		Generated:  time.Now().UTC(),
		Source:     src,
		SourceKind: res.SourceKind.String(),
		RawImage:   res.Destination,
		FinalImage: out.finalImage,
		Bytes:      res.BytesWritten,
		Digests:    res.Digests[:],
		BadSectors: res.BadSectors,
		Protection: res.Protection.String(),
		Elapsed:    res.Elapsed,
		Verified:   out.verified,
	}
	for _, s := range out.steps {
		step := report.Step{Name: s.Step, Output: s.Output.Path, Elapsed: s.Elapsed}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		r.Steps = append(r.Steps, step)
	}
	if acq != nil {
		r.LedgerID = acq.ID()
	}
	return r
}

// pipeline runs everything that happens to one image: acquisition,
// optional verification and the post-processing chain.
type pipeline struct {
	engine    engine.Config
	verify    bool
	runner    *postprocess.Runner
	input     postprocess.Input
	journal   *journal.Journal
	ledger    *ledger.Acquisition
	collector *stats.Collector
	logger    *slog.Logger
}

type pipelineResult struct {
	res        engine.Result
	err        error // acquisition failure, no image
	verified   *bool
	verifyErr  error
	steps      []postprocess.Outcome
	finalImage string
	postErr    error
}

func (p *pipeline) run(ctx context.Context) pipelineResult {
	var out pipelineResult

	out.res, out.err = engine.Acquire(ctx, p.engine)
	if out.err != nil {
		_ = p.journal.Recordf("Acquisition failed. Exiting.") //nolint:errcheck // journal errors are non-fatal
		if p.ledger != nil {
			snap := p.collector.Snapshot()
			if err := p.ledger.Abort(out.err, snap.BytesTotal, snap.BytesProcessed, snap.BadSectors); err != nil {
				p.logger.Error("failed to record aborted acquisition", "error", err)
			}
		}
		return out
	}
	if p.ledger != nil {
		if err := p.ledger.Complete(out.res); err != nil {
			p.logger.Error("failed to record acquisition", "error", err)
		}
	}
	out.finalImage = out.res.Destination

	if p.verify {
		_, err := engine.Verify(ctx, engine.VerifyConfig{
			Path:     out.res.Destination,
			Expected: out.res.Digests,
			Events:   p.engine.Events,
			Stats:    p.collector,
		})
		ok := err == nil
		out.verified = &ok
		out.verifyErr = err
		if ok {
			_ = p.journal.Recordf("Verification passed: image re-hashed to the acquired digests.")
		} else {
			_ = p.journal.Recordf("[!] Verification FAILED: %v", err)
		}
	}

	if len(p.runner.Steps) > 0 {
		in := p.input
		in.Image = out.res.Destination
		in.RawImage = out.res.Destination
		in.Digests = out.res.Digests
		out.steps, out.finalImage, out.postErr = p.runner.Run(ctx, in)
	}
	return out
}

// heldGuard hands the engine a write-block decision made before the
// display started. Release is idempotent on *source.Guard.
type heldGuard struct {
	g          *source.Guard
	protection source.Protection
	err        error
}

func (h *heldGuard) Acquire() (source.Protection, error) { return h.protection, h.err }
func (h *heldGuard) Release() error                      { return h.g.Release() }
