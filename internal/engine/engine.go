package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/source"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

// DefaultChunkSize is the unit of transfer per loop iteration, and the
// width of the span zero-filled when a read fails.
const DefaultChunkSize = 1 << 20 // 1 MiB

var (
	ErrSizeUndetermined  = source.ErrSizeUndetermined
	ErrDestinationExists = errors.New("destination already exists")
	ErrSourceOpen        = errors.New("cannot open source")
	ErrSkipFailure       = errors.New("cannot skip past unreadable region")
	ErrPrematureEnd      = errors.New("source ended before its reported length")
	ErrDestinationWrite  = errors.New("cannot write destination")
	ErrSizeMismatch      = errors.New("destination size does not match source")
	ErrCanceled          = errors.New("acquisition canceled")
)

// State is the position of an acquisition in its lifecycle.
type State int

const (
	StateInit State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Guard brackets a run with source write protection. *source.Guard
// implements it.
type Guard interface {
	Acquire() (source.Protection, error)
	Release() error
}

// Journal receives the human-readable event trail of a run.
type Journal interface {
	Recordf(format string, args ...any) error
}

// Config describes one acquisition.
type Config struct {
	Source      string
	Destination string    // raw image path; must not exist yet
	ChunkSize   int       // default DefaultChunkSize
	Digests     [2]string // default md5, sha256
	BWLimit     int64     // source read limit in bytes/sec, 0 = unlimited

	// Confirm is asked when the write-block fails. Ignored when Guard is set.
	Confirm source.ConfirmFunc
	Guard   Guard

	Open       Opener // default OpenMedium
	Events     chan<- event.Event
	Stats      stats.Writer
	Journal    Journal
	BadSectors BadSectorSink
	Logger     *slog.Logger
	Now        func() time.Time
}

func (cfg Config) withDefaults() Config {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Digests[0] == "" {
		cfg.Digests[0] = digest.DefaultPrimary
	}
	if cfg.Digests[1] == "" {
		cfg.Digests[1] = digest.DefaultSecondary
	}
	if cfg.Open == nil {
		cfg.Open = OpenMedium
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Journal == nil {
		cfg.Journal = nopJournal{}
	}
	if cfg.BadSectors == nil {
		cfg.BadSectors = nopSink{}
	}
	return cfg
}

// Result is the outcome of a completed acquisition. It is produced only
// when the run reaches COMPLETED.
type Result struct {
	Source       string
	SourceKind   source.Kind
	Destination  string
	Digests      [2]digest.Sum
	BadSectors   int64
	BytesWritten int64
	ZeroFilled   int64
	ChunkSize    int
	Protection   source.Protection
	Started      time.Time
	Elapsed      time.Duration
}

// run holds the state of a single acquisition. It is owned by one
// goroutine: the read cursor, write cursor and digests are never shared.
type run struct {
	cfg   Config
	state State
	info  source.Info

	medium Medium
	dst    *partial
	pair   *digest.Pair

	started    time.Time
	processed  int64
	zeroFilled int64
	badSectors int64
}

// Acquire images cfg.Source into cfg.Destination in a single pass,
// hashing every written byte. Unreadable chunks are replaced with zeros
// and recorded. On any terminal failure the partial image is removed and
// an error is returned; a Result is only returned on success.
func Acquire(ctx context.Context, cfg Config) (Result, error) {
	r := &run{cfg: cfg.withDefaults(), state: StateInit}
	res, err := r.execute(ctx)
	if err != nil {
		r.transition(StateAborted)
		r.journalf("A critical error occurred during imaging: %v", err)
		r.emitSync(ctx, event.Event{
			Type:       event.AcquireAborted,
			Path:       r.cfg.Source,
			Size:       r.processed,
			Total:      r.info.Size,
			BadSectors: r.badSectors,
			Error:      err,
		})
		return Result{}, err
	}
	return res, nil
}

func (r *run) execute(ctx context.Context) (Result, error) {
	cfg := r.cfg
	r.journalf("Acquisition process started.")

	info, err := source.Size(cfg.Source)
	r.info = info
	if err != nil {
		r.journalf("Error: Source size is 0 or could not be determined. Aborting.")
		return Result{}, err
	}
	if cfg.Stats != nil {
		cfg.Stats.SetTotal(info.Size)
	}

	if _, err := os.Lstat(cfg.Destination); err == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrDestinationExists, cfg.Destination)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: stat %s: %w", ErrDestinationWrite, cfg.Destination, err)
	}

	r.pair, err = digest.New(cfg.Digests[0], cfg.Digests[1])
	if err != nil {
		return Result{}, err
	}

	guard := cfg.Guard
	if guard == nil {
		guard = source.NewGuard(info, cfg.Confirm, cfg.Logger)
	}
	protection, err := guard.Acquire()
	if err != nil {
		r.emitSync(ctx, event.Event{Type: event.WriteBlockFailed, Path: cfg.Source, Error: err})
		r.journalf("[!] WARNING: Failed to set software write-block on %s. Error: %v", cfg.Source, err)
		return Result{}, err
	}
	defer r.release(ctx, guard, protection)
	r.reportProtection(ctx, protection)

	medium, err := cfg.Open(cfg.Source)
	if err != nil {
		return Result{}, fmt.Errorf("%w %s: %w", ErrSourceOpen, cfg.Source, err)
	}
	defer medium.Close()
	r.medium = medium
	if cfg.BWLimit > 0 {
		r.medium = newRateLimitedMedium(ctx, medium, NewBWLimiter(cfg.BWLimit, cfg.ChunkSize))
	}

	r.dst, err = createPartial(cfg.Destination, info.Size, cfg.Logger)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDestinationWrite, err)
	}
	defer r.dst.discard()

	r.journalf("Source: %s (%d bytes)", cfg.Source, info.Size)
	r.journalf("Destination (RAW): %s", cfg.Destination)
	cfg.Logger.Info("acquisition started",
		"source", cfg.Source,
		"kind", info.Kind,
		"size", info.Size,
		"destination", cfg.Destination,
		"chunk", cfg.ChunkSize,
	)

	r.started = cfg.Now()
	r.transition(StateRunning)
	r.emitSync(ctx, event.Event{
		Type:  event.AcquireStarted,
		Path:  cfg.Source,
		Total: info.Size,
	})

	if err := r.loop(ctx); err != nil {
		r.flushSinks()
		return Result{}, err
	}
	r.flushSinks()

	return r.finish(ctx, protection)
}

// loop streams the source until every byte of the reported length has
// been written, either as data read or as zero fill.
func (r *run) loop(ctx context.Context) error {
	chunk := r.cfg.ChunkSize
	buf := make([]byte, chunk)
	zeros := make([]byte, chunk)
	total := r.info.Size

	for r.processed < total {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w at offset %d: %w", ErrCanceled, r.processed, err)
		}

		want := int(min(int64(chunk), total-r.processed))
		n, err := readChunk(r.medium, buf[:want])

		switch {
		case err == nil || errors.Is(err, io.EOF):
			if n == 0 {
				return fmt.Errorf("%w: got 0 bytes at offset %d of %d",
					ErrPrematureEnd, r.processed, total)
			}
			if err := r.write(buf[:n]); err != nil {
				return err
			}

		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w at offset %d: %w", ErrCanceled, r.processed, ctxErr)
			}
			if errors.Is(err, errThrottled) {
				return fmt.Errorf("%w at offset %d: %w", ErrCanceled, r.processed, err)
			}
			if err := r.recover(want, err); err != nil {
				return err
			}
			if err := r.write(zeros[:want]); err != nil {
				return err
			}
			r.zeroFilled += int64(want)
			if r.cfg.Stats != nil {
				r.cfg.Stats.AddBytesZeroFilled(int64(want))
			}
		}

		r.emitProgress()
	}
	return nil
}

// recover records a bad sector at the current offset and moves the read
// cursor one chunk-width past it. The span is not narrowed to the exact
// failing sectors.
func (r *run) recover(width int, readErr error) error {
	offset := r.processed
	r.badSectors++
	if r.cfg.Stats != nil {
		r.cfg.Stats.AddBadSectors(1)
	}

	bs := BadSector{Offset: offset, Length: int64(width), Err: readErr, At: r.cfg.Now()}
	r.journalf("[!] Read error (bad sector) at offset: %d. Error: %v", offset, readErr)
	r.cfg.Logger.Warn("bad sector", "offset", offset, "length", width, "error", readErr)
	if err := r.cfg.BadSectors.RecordBadSector(bs); err != nil {
		r.cfg.Logger.Error("failed to record bad sector", "offset", offset, "error", err)
	}
	r.emit(event.Event{
		Type:       event.BadSector,
		Path:       r.cfg.Source,
		Offset:     offset,
		Size:       int64(width),
		BadSectors: r.badSectors,
		Error:      readErr,
	})

	next := offset + int64(width)
	if pos, err := r.medium.Seek(next, io.SeekStart); err != nil || pos != next {
		if err == nil {
			err = fmt.Errorf("landed at %d, want %d", pos, next)
		}
		r.journalf("[!] Critical seek error: %v. Aborting.", err)
		return fmt.Errorf("%w at offset %d: %w", ErrSkipFailure, offset, err)
	}
	return nil
}

// write appends p to the destination and then to the digests, so the
// digests only ever see bytes that reached the image.
func (r *run) write(p []byte) error {
	if _, err := r.dst.Write(p); err != nil {
		return fmt.Errorf("%w at offset %d: %w", ErrDestinationWrite, r.processed, err)
	}
	r.pair.Write(p) //nolint:errcheck // never fails
	r.processed += int64(len(p))
	if r.cfg.Stats != nil {
		r.cfg.Stats.AddBytesProcessed(int64(len(p)))
	}
	return nil
}

func (r *run) finish(ctx context.Context, protection source.Protection) (Result, error) {
	written, err := r.dst.seal()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDestinationWrite, err)
	}
	if written != r.info.Size {
		return Result{}, fmt.Errorf("%w: wrote %d of %d bytes", ErrSizeMismatch, written, r.info.Size)
	}
	if r.pair.Written() != written {
		return Result{}, fmt.Errorf("%w: hashed %d of %d bytes", ErrSizeMismatch, r.pair.Written(), written)
	}

	sums := r.pair.Sum()
	if err := r.dst.publish(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDestinationWrite, err)
	}

	elapsed := r.cfg.Now().Sub(r.started)
	r.transition(StateCompleted)

	r.journalf("RAW imaging complete. Time: %.2fs", elapsed.Seconds())
	for _, s := range sums {
		r.journalf("%s Hash: %s", digestLabel(s.Algorithm), s.Hex)
	}
	r.journalf("Total Bad Sectors: %d", r.badSectors)

	res := Result{
		Source:       r.cfg.Source,
		SourceKind:   r.info.Kind,
		Destination:  r.cfg.Destination,
		Digests:      sums,
		BadSectors:   r.badSectors,
		BytesWritten: written,
		ZeroFilled:   r.zeroFilled,
		ChunkSize:    r.cfg.ChunkSize,
		Protection:   protection,
		Started:      r.started,
		Elapsed:      elapsed,
	}

	r.cfg.Logger.Info("acquisition complete",
		"destination", res.Destination,
		"bytes", res.BytesWritten,
		"bad_sectors", res.BadSectors,
		"elapsed", res.Elapsed,
		sums[0].Algorithm, sums[0].Hex,
		sums[1].Algorithm, sums[1].Hex,
	)
	r.emitSync(ctx, event.Event{
		Type:       event.AcquireCompleted,
		Path:       res.Destination,
		Size:       res.BytesWritten,
		Total:      r.info.Size,
		Elapsed:    res.Elapsed,
		BadSectors: res.BadSectors,
		Percent:    100,
	})
	return res, nil
}

func (r *run) release(ctx context.Context, guard Guard, protection source.Protection) {
	if err := guard.Release(); err != nil {
		r.journalf("[!] CRITICAL: failed to revert write-block on %s: %v", r.cfg.Source, err)
		r.emitSync(ctx, event.Event{Type: event.WriteBlockFailed, Path: r.cfg.Source, Error: err})
		return
	}
	if protection == source.Applied {
		r.journalf("Software write-block released on %s.", r.cfg.Source)
		r.emitSync(ctx, event.Event{Type: event.WriteBlockReleased, Path: r.cfg.Source})
	}
}

func (r *run) reportProtection(ctx context.Context, p source.Protection) {
	switch p {
	case source.Applied:
		r.journalf("Software write-block applied on %s.", r.cfg.Source)
		r.emitSync(ctx, event.Event{Type: event.WriteBlockApplied, Path: r.cfg.Source})
	case source.AlreadyReadOnly:
		r.journalf("Source %s already read-only.", r.cfg.Source)
	case source.Unprotected:
		r.journalf("[!] WARNING: proceeding without software write-block on %s (operator override). %s.",
			r.cfg.Source, source.HardwareBlockerWarning)
		r.emitSync(ctx, event.Event{Type: event.WriteBlockFailed, Path: r.cfg.Source})
	case source.NotApplicable:
	}
}

func (r *run) transition(to State) {
	r.cfg.Logger.Debug("acquisition state", "from", r.state, "to", to)
	r.state = to
}

func (r *run) emitProgress() {
	elapsed := r.cfg.Now().Sub(r.started)
	s := stats.Compute(r.processed, r.info.Size, elapsed, r.badSectors)
	r.emit(event.Event{
		Type:       event.Progress,
		Path:       r.cfg.Source,
		Size:       r.processed,
		Total:      r.info.Size,
		Elapsed:    elapsed,
		BadSectors: s.BadSectors,
		Percent:    s.Percent,
		MBps:       s.MBps,
	})
}

func (r *run) flushSinks() {
	if err := flushSink(r.cfg.BadSectors); err != nil {
		r.cfg.Logger.Error("failed to flush bad sector records", "error", err)
	}
}

func (r *run) journalf(format string, args ...any) {
	if err := r.cfg.Journal.Recordf(format, args...); err != nil {
		r.cfg.Logger.Error("journal write failed", "error", err)
	}
}

// emit delivers a high-frequency event without ever blocking the copy loop.
func (r *run) emit(e event.Event) {
	emitEvent(r.cfg.Events, e, r.cfg.Now())
}

// emitSync delivers a lifecycle event, waiting for the consumer unless ctx ends.
func (r *run) emitSync(ctx context.Context, e event.Event) {
	if r.cfg.Events == nil {
		return
	}
	e.Timestamp = r.cfg.Now()
	select {
	case r.cfg.Events <- e:
	case <-ctx.Done():
		emitEvent(r.cfg.Events, e, e.Timestamp)
	}
}

func emitEvent(ch chan<- event.Event, e event.Event, now time.Time) {
	if ch == nil {
		return
	}
	e.Timestamp = now
	select {
	case ch <- e:
	default:
	}
}

// readChunk fills p from r, tolerating short reads. A source that ends
// early yields the bytes read so far together with io.EOF.
func readChunk(r io.Reader, p []byte) (int, error) {
	n, err := io.ReadFull(r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

func digestLabel(algo string) string {
	switch algo {
	case "md5":
		return "MD5"
	case "sha1":
		return "SHA1"
	case "sha256":
		return "SHA256"
	case "sha512":
		return "SHA512"
	case "blake3":
		return "BLAKE3"
	default:
		return algo
	}
}

type nopJournal struct{}

func (nopJournal) Recordf(string, ...any) error { return nil }
