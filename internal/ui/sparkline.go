package ui

import "strings"

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width samples scaled to their peak. Short
// histories are left-padded with the lowest block, so a stalled read
// (zero throughput while a bad region is retried) shows as a flat floor.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	peak := 0.0
	for _, v := range data {
		peak = max(peak, v)
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(string(sparkBlocks[0]), width-len(data)))
	top := len(sparkBlocks) - 1
	for _, v := range data {
		level := 0
		if peak > 0 && v > 0 {
			level = min(int(v*float64(top)/peak), top)
		}
		b.WriteRune(sparkBlocks[level])
	}
	return b.String()
}
