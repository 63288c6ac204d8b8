package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/config"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/postprocess"
)

// sizeFlag is a pflag.Value accepting human sizes such as 4M or 512K.
type sizeFlag struct {
	n   int64
	raw string
}

func (s *sizeFlag) String() string { return s.raw }
func (*sizeFlag) Type() string     { return "size" }

func (s *sizeFlag) Set(val string) error {
	n, err := config.ParseSize(val)
	if err != nil {
		return err
	}
	s.n, s.raw = n, val
	return nil
}

// acquireOptions holds every flag of the acquire command.
type acquireOptions struct {
	outputDir  string
	examiner   string
	caseNumber string
	evidence   string
	notes      string

	chunkSize sizeFlag
	digests   []string
	verify    bool
	bwLimit   sizeFlag

	ewf       bool
	split     int // EWF segment size in MiB
	compress  string
	bitlocker bool
	zstd      bool

	assumeUnprotected bool

	tui        bool
	noProgress bool
	quiet      bool
	verbose    bool
	logFile    string
	ledgerPath string
	noLedger   bool
}

func (o *acquireOptions) bind(f *pflag.FlagSet) {
	f.StringVarP(&o.outputDir, "output-dir", "o", o.outputDir, "directory for the image, logs and report")
	f.StringVarP(&o.examiner, "examiner", "e", o.examiner, "examiner name")
	f.StringVarP(&o.caseNumber, "case-number", "c", o.caseNumber, "case number")
	f.StringVar(&o.evidence, "evidence-number", o.evidence, "evidence number")
	f.StringVar(&o.notes, "notes", o.notes, "case notes")
	f.Var(&o.chunkSize, "chunk-size", "bytes per read, and the zero-fill width on error (e.g. 1M, 4M)")
	f.StringSliceVar(&o.digests, "digest", o.digests, "digest pair, given twice or comma separated (default md5,sha256)")
	f.BoolVar(&o.verify, "verify", o.verify, "re-hash the image after acquisition and compare")
	f.Var(&o.bwLimit, "bwlimit", "source read limit per second (e.g. 100M)")
	f.BoolVar(&o.ewf, "ewf", o.ewf, "convert the image to EWF (.E01) with ewfacquirestream")
	f.IntVar(&o.split, "split", o.split, "EWF segment size in MiB (0 = tool default)")
	f.StringVar(&o.compress, "compress", o.compress, "compression for EWF and zstd: none, fast or best")
	f.BoolVar(&o.bitlocker, "bitlocker", o.bitlocker, "decrypt a BitLocker volume with dislocker after imaging")
	f.BoolVar(&o.zstd, "zstd", o.zstd, "export a zstd-compressed copy of the raw image")
	f.BoolVar(&o.assumeUnprotected, "assume-unprotected", o.assumeUnprotected,
		"continue without asking when the software write-block fails")
	f.BoolVar(&o.tui, "tui", o.tui, "full-screen TUI (Bubble Tea)")
	f.BoolVar(&o.noProgress, "no-progress", o.noProgress, "disable progress display")
	f.BoolVarP(&o.quiet, "quiet", "q", o.quiet, "suppress all output except errors")
	f.BoolVarP(&o.verbose, "verbose", "v", o.verbose, "verbose output")
	f.StringVar(&o.logFile, "log", o.logFile, "write structured JSON log to FILE")
	f.StringVar(&o.ledgerPath, "ledger", o.ledgerPath, "audit ledger database (default <output-dir>/ledger.db)")
	f.BoolVar(&o.noLedger, "no-ledger", o.noLedger, "do not record the acquisition in the audit ledger")
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(fs *pflag.FlagSet, cfg config.Config, o *acquireOptions) error {
	changed := fs.Changed
	d := cfg.Defaults

	if !changed("output-dir") && d.OutputDir != nil {
		o.outputDir = *d.OutputDir
	}
	if !changed("chunk-size") && d.ChunkSize != nil {
		if err := o.chunkSize.Set(*d.ChunkSize); err != nil {
			return fmt.Errorf("config chunk_size: %w", err)
		}
	}
	if !changed("digest") && len(d.Digests) > 0 {
		o.digests = d.Digests
	}
	if !changed("verify") && d.Verify != nil {
		o.verify = *d.Verify
	}
	if !changed("bwlimit") && d.BWLimit != nil {
		if err := o.bwLimit.Set(*d.BWLimit); err != nil {
			return fmt.Errorf("config bwlimit: %w", err)
		}
	}
	if !changed("compress") && d.Compress != nil {
		o.compress = *d.Compress
	}
	if !changed("split") && d.Split != nil {
		o.split = *d.Split
	}
	if !changed("ewf") && d.EWF != nil {
		o.ewf = *d.EWF
	}
	if !changed("zstd") && d.Zstd != nil {
		o.zstd = *d.Zstd
	}
	if !changed("tui") && d.TUI != nil {
		o.tui = *d.TUI
	}
	if !changed("ledger") && d.Ledger != nil {
		o.ledgerPath = *d.Ledger
	}
	if !changed("examiner") && cfg.Case.Examiner != nil {
		o.examiner = *cfg.Case.Examiner
	}
	if !changed("notes") && cfg.Case.Notes != nil {
		o.notes = *cfg.Case.Notes
	}
	return nil
}

// digestPair validates the --digest selection: none (defaults) or exactly two.
func (o *acquireOptions) digestPair() ([2]string, error) {
	switch len(o.digests) {
	case 0:
		return [2]string{digest.DefaultPrimary, digest.DefaultSecondary}, nil
	case 2:
		pair := [2]string{strings.ToLower(o.digests[0]), strings.ToLower(o.digests[1])}
		// Construct once to reject unknown or duplicate names up front.
		if _, err := digest.New(pair[0], pair[1]); err != nil {
			return [2]string{}, err
		}
		return pair, nil
	default:
		return [2]string{}, fmt.Errorf("--digest needs exactly two algorithms, got %d", len(o.digests))
	}
}

func (o *acquireOptions) validate() error {
	if o.chunkSize.n <= 0 || o.chunkSize.n > 1<<30 {
		return fmt.Errorf("--chunk-size must be between 1 byte and 1G, got %d", o.chunkSize.n)
	}
	if o.split < 0 {
		return errors.New("--split must not be negative")
	}
	compress, err := postprocess.ParseCompression(o.compress)
	if err != nil {
		return err
	}
	o.compress = compress
	if o.zstd && compress == postprocess.CompressNone {
		return errors.New("--zstd always compresses; --compress none only applies to EWF")
	}
	if o.quiet && o.verbose {
		return errors.New("--quiet and --verbose are mutually exclusive")
	}
	return nil
}
