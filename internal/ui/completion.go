package ui

import (
	"fmt"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  size 10.0 MiB  avg 5.0 MiB/s  time 00:00:02  bad sectors 0
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesProcessed) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if (snap.BytesTotal > 0 && snap.BytesProcessed < snap.BytesTotal) || snap.VerifyFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  size %s  avg %s  time %s",
		icon,
		FormatBytes(snap.BytesProcessed),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)

	if snap.Verified > 0 {
		base += "  verified"
	} else if snap.VerifyFailed > 0 {
		base += "  VERIFY FAILED"
	}

	base += fmt.Sprintf("  bad sectors %s", FormatCount(snap.BadSectors))
	if snap.BytesZeroFilled > 0 {
		base += fmt.Sprintf(" (%s zero-filled)", FormatBytes(snap.BytesZeroFilled))
	}

	return base
}
