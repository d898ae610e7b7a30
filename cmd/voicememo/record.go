package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voicememo/internal/recording"
)

const (
	meterWidth   = 20
	meterFloorDB = -60.0
	redrawEvery  = 250 * time.Millisecond
)

func cmdRecord(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "record", "record [-no-wait]")
	noWait := fs.Bool("no-wait", false, "return without waiting for the transcription")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec := e.app.Recorder()
	if err := rec.Start(ctx); err != nil {
		if errors.Is(err, recording.ErrPermissionDenied) {
			return fmt.Errorf("microphone unavailable: %q could not be run, check recording.ffmpeg_command", e.cfg.Recording.FFmpegCommand)
		}
		return err
	}

	var level atomic.Uint64
	level.Store(math.Float64bits(meterFloorDB))
	unsubscribe := rec.Meter().Subscribe(func(db float64) {
		level.Store(math.Float64bits(db))
	})
	defer unsubscribe()

	fmt.Fprintln(e.out, "Enter: pause/resume   s + Enter: stop and transcribe   d + Enter: discard")

	lines := readLines(e.in)
	ticker := time.NewTicker(redrawEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rec.Delete(context.WithoutCancel(ctx))
			fmt.Fprintln(e.out, "\nrecording discarded")
			return ctx.Err()

		case <-ticker.C:
			snap := rec.Snapshot()
			fmt.Fprintf(e.out, "\r%s", statusLine(snap, math.Float64frombits(level.Load())))

		case line, ok := <-lines:
			if !ok {
				// stdin closed: keep recording until a signal arrives.
				lines = nil
				continue
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
				if err := togglePause(ctx, rec); err != nil {
					return err
				}
			case "s":
				n, err := e.app.SubmitRecording(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "\nsaved %s (%s)\n", n.ID, formatElapsed(time.Duration(n.DurationSeconds)*time.Second))
				if *noWait {
					return nil
				}
				return awaitNote(ctx, e, n.ID)
			case "d":
				rec.Delete(ctx)
				fmt.Fprintln(e.out, "\nrecording discarded")
				return nil
			default:
				fmt.Fprintf(e.out, "\nunknown input %q\n", line)
			}
		}
	}
}

func togglePause(ctx context.Context, rec *recording.Session) error {
	switch rec.Snapshot().State {
	case recording.Recording:
		return rec.Pause(ctx)
	case recording.Paused:
		return rec.Resume(ctx)
	}
	return nil
}

// readLines delivers stdin line by line and closes the channel at EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// statusLine renders the state, elapsed time and a level bar.
func statusLine(s recording.Snapshot, db float64) string {
	marker := "●"
	if s.State == recording.Paused {
		marker = "‖"
		db = meterFloorDB
	}
	return fmt.Sprintf("%s %-9s %s [%s] %4.0f dB ", marker, s.State, formatElapsed(s.Elapsed), levelBar(db, meterWidth), max(db, meterFloorDB))
}

// levelBar maps db from [meterFloorDB, 0] onto width cells.
func levelBar(db float64, width int) string {
	frac := (db - meterFloorDB) / -meterFloorDB
	frac = min(max(frac, 0), 1)
	filled := int(math.Round(frac * float64(width)))
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}

func formatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
