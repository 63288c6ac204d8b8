package postprocess

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Compression levels accepted by EWF.
const (
	CompressNone = "none"
	CompressFast = "fast"
	CompressBest = "best"
)

// ParseCompression validates a compression level name.
func ParseCompression(s string) (string, error) {
	switch strings.ToLower(s) {
	case CompressNone, CompressFast, CompressBest:
		return strings.ToLower(s), nil
	default:
		return "", fmt.Errorf("invalid compression %q (none, fast, best)", s)
	}
}

const ewfTool = "ewfacquirestream"

// EWF converts the current evidence image to an Expert Witness (.E01)
// container by streaming it into ewfacquirestream.
type EWF struct {
	Compression string // none, fast or best; default fast
	SegmentSize int64  // bytes per segment file, 0 = tool default
	Now         func() time.Time

	Command  CommandFunc  // default ExecCommand
	LookPath LookPathFunc // default exec.LookPath
}

func (e *EWF) Name() string { return "ewf" }

func (e *EWF) Available() error {
	lookPath := e.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath(ewfTool); err != nil {
		return fmt.Errorf("%s not found on PATH (install libewf tools): %w", ewfTool, err)
	}
	return nil
}

// Args returns the ewfacquirestream arguments for in. The target is
// written without extension; the tool appends .E01.
func (e *EWF) Args(in Input) []string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	level := e.Compression
	if level == "" {
		level = CompressFast
	}

	notes := in.Case.Notes
	if notes == "" {
		notes = fmt.Sprintf("Acquired from %s on %s", in.Source, now().Format(time.RFC3339))
	}

	args := []string{
		"-u", // unattended
		"-C", orNA(in.Case.Number),
		"-D", "Forensic image of " + in.Source,
		"-e", orNA(in.Case.Examiner),
		"-E", orDefault(in.Case.Evidence, "1"),
		"-N", notes,
		"-c", level,
		"-t", filepath.Join(in.OutputDir, "image"),
	}
	if e.SegmentSize > 0 {
		args = append(args, "-S", strconv.FormatInt(e.SegmentSize, 10))
	}
	return args
}

func (e *EWF) Run(ctx context.Context, in Input) (Output, error) {
	command := e.Command
	if command == nil {
		command = ExecCommand
	}

	target := filepath.Join(in.OutputDir, "image.E01")
	if _, err := os.Lstat(target); err == nil {
		return Output{}, fmt.Errorf("%s already exists", target)
	}
	record(in.Journal, "Starting EWF conversion to %s", target)

	f, err := os.Open(in.Image)
	if err != nil {
		return Output{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	out, err := command(ctx, bufio.NewReaderSize(f, 1<<20), ewfTool, e.Args(in)...)
	if err != nil {
		return Output{}, err
	}
	if _, err := os.Stat(target); err != nil {
		return Output{}, fmt.Errorf("%s produced no %s: %w", ewfTool, target, err)
	}
	record(in.Journal, "EWF conversion successful.")

	if md5 := parseEWFMD5(out); md5 != "" {
		record(in.Journal, "EWF internal MD5: %s", md5)
		if want := md5Of(in); want != "" && in.Image == in.RawImage && md5 != want {
			record(in.Journal, "[!] WARNING: EWF internal MD5 does not match calculated image MD5.")
			record(in.Journal, "    Image MD5: %s", want)
			in.logger().Warn("EWF MD5 mismatch", "ewf", md5, "image", want)
		}
	}

	return Output{Path: target, Evidence: true}, nil
}

// parseEWFMD5 extracts the MD5 ewfacquirestream reports, e.g.
// "MD5 hash calculated over data:		d41d8cd9...".
func parseEWFMD5(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), "MD5 hash calculated over data:") {
			continue
		}
		if i := strings.LastIndex(line, ":"); i >= 0 {
			return strings.ToLower(strings.TrimSpace(line[i+1:]))
		}
	}
	return ""
}

func md5Of(in Input) string {
	for _, d := range in.Digests {
		if d.Algorithm == "md5" {
			return d.Hex
		}
	}
	return ""
}

func orNA(s string) string { return orDefault(s, "N/A") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
