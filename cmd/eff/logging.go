package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui"
)

// setupLogging builds the process logger: text on stderr at a level
// chosen by -q/-v, plus a debug-level JSON file when --log is given.
func setupLogging(stderr io.Writer, o *acquireOptions) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	switch {
	case o.verbose:
		level = slog.LevelDebug
	case o.quiet:
		level = slog.LevelError
	}

	var handler slog.Handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	closeFn := func() {}
	if o.logFile != "" {
		lf, err := os.Create(o.logFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(handler, jsonHandler)
		closeFn = func() { lf.Close() }
	}
	return slog.New(handler), closeFn, nil
}

// teeEvents forwards events to the presenter, writing a structured record
// for each lifecycle event on the way when enabled. Progress events are
// passed through unlogged.
func teeEvents(events <-chan event.Event, enabled bool) <-chan event.Event {
	if !enabled {
		return events
	}
	teed := make(chan event.Event, cap(events))
	go func() {
		defer close(teed)
		for ev := range events {
			if ev.Type != event.Progress {
				slog.LogAttrs(context.Background(), slog.LevelInfo, "eff.event", eventAttrs(ev)...)
			}
			teed <- ev
		}
	}()
	return teed
}

func eventAttrs(ev event.Event) []slog.Attr {
	attrs := []slog.Attr{slog.String("type", ev.Type.String())}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path))
	}
	switch ev.Type {
	case event.BadSector:
		attrs = append(attrs, slog.Int64("offset", ev.Offset), slog.Int64("size", ev.Size))
	case event.AcquireStarted:
		attrs = append(attrs, slog.Int64("total", ev.Total))
	case event.AcquireCompleted:
		attrs = append(attrs,
			slog.Int64("total", ev.Total),
			slog.Int64("bad_sectors", ev.BadSectors),
			slog.Duration("elapsed", ev.Elapsed))
	case event.StepStarted, event.StepCompleted, event.StepFailed:
		attrs = append(attrs, slog.String("step", ev.Step))
	}
	if ev.Error != nil {
		attrs = append(attrs, slog.String("error", ev.Error.Error()))
	}
	return attrs
}
