package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/postprocess"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/source"
)

const banner = `============================================================
      FORENSIC IMAGING UTILITY (eff %s)
============================================================
[*] WARNING: This tool attempts to set block devices read-only.
[*] A HARDWARE WRITE-BLOCKER IS THE ONLY GUARANTEED METHOD.
============================================================
`

// confirmUnprotected asks the operator on in/out whether to continue
// after the software write-block failed. Only an explicit "yes" proceeds.
func confirmUnprotected(in *bufio.Reader, out io.Writer) source.ConfirmFunc {
	return func(cause error) bool {
		fmt.Fprintf(out, "[!] WARNING: %v\n", cause)
		fmt.Fprintf(out, "[!] %s.\n", source.HardwareBlockerWarning)
		fmt.Fprint(out, "    Type 'yes' to continue at your own risk, anything else aborts: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return false
		}
		return strings.EqualFold(strings.TrimSpace(line), "yes")
	}
}

// assumeUnprotected is the --assume-unprotected override.
func assumeUnprotected(out io.Writer) source.ConfirmFunc {
	return func(cause error) bool {
		fmt.Fprintf(out, "[!] WARNING: %v; continuing (--assume-unprotected).\n", cause)
		return true
	}
}

var errEmptyKey = errors.New("empty recovery key")

// readRecoveryKey reads a BitLocker recovery key without echo when in is
// a terminal, or as one line otherwise.
func readRecoveryKey(in io.Reader, br *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, " Enter BitLocker Recovery Key: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read recovery key: %w", err)
		}
		return nonEmpty(string(b))
	}
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read recovery key: %w", err)
	}
	return nonEmpty(line)
}

func nonEmpty(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errEmptyKey
	}
	return key, nil
}

// cachedKey returns a prompt that hands out a key read before imaging
// started, so no prompt competes with the progress display.
func cachedKey(key *string) postprocess.KeyPrompt {
	return func(context.Context) (string, error) { return nonEmpty(*key) }
}
