package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0 B/s"},
		{-1, "0 B/s"},
		{512, "512 B/s"},
		{1024, "1.0 KiB/s"},
		{1.5 * 1024 * 1024, "1.5 MiB/s"},
		{2.5 * 1024 * 1024 * 1024, "2.5 GiB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "00:00:00", FormatDuration(-time.Second))
	assert.Equal(t, "00:00:30", FormatDuration(30*time.Second))
	assert.Equal(t, "00:03:17", FormatDuration(3*time.Minute+17*time.Second))
	assert.Equal(t, "26:02:03", FormatDuration(26*time.Hour+2*time.Minute+3*time.Second))
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "--:--:--", FormatETA(0))
	assert.Equal(t, "--:--:--", FormatETA(-time.Second))
	assert.Equal(t, "01:01:01", FormatETA(3661*time.Second))
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{14302, "14,302"},
		{1000000, "1,000,000"},
		{-1000, "-1,000"},
		{-999, "-999"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCount(tt.input))
		})
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", ProgressBar(0.5, 10))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(0, 10))
	assert.Equal(t, "██████████", ProgressBar(1, 10))
	assert.Equal(t, "██████████", ProgressBar(1.5, 10))
	assert.Equal(t, "░░░░", ProgressBar(-0.2, 4))
	assert.Empty(t, ProgressBar(0.5, 0))
}

func TestFormatMBps(t *testing.T) {
	assert.Equal(t, "0.00 MB/s", FormatMBps(0))
	assert.Equal(t, "48.13 MB/s", FormatMBps(48.125001))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "10.0 MiB", FormatBytes(10*1024*1024))
	assert.Equal(t, "512 B", FormatBytes(512))
}
