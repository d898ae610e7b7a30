// Package capture records microphone audio by running ffmpeg and writing the
// PCM it produces into a WAV file.
//
// ffmpeg is asked for raw signed 16-bit little-endian PCM on stdout. The
// recorder reads it in 100ms chunks, appends each chunk to the WAV encoder
// and derives the input level from it. Pausing keeps ffmpeg running and
// drops chunks until capture resumes, so the finished file contains only the
// un-paused audio.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/voicememo/pkg/audio"
)

const (
	defaultCommand      = "ffmpeg"
	defaultInputFormat  = "pulse"
	defaultInputDevice  = "default"
	defaultSampleRate   = 16000
	defaultChannels     = 1
	defaultStartupGrace = 250 * time.Millisecond
	defaultStopTimeout  = 1200 * time.Millisecond
)

// Config selects the ffmpeg binary and input device.
type Config struct {
	// Command is the ffmpeg executable. Defaults to "ffmpeg".
	Command string

	// InputFormat is passed to ffmpeg -f (e.g. "pulse", "alsa",
	// "avfoundation", "dshow"). Defaults to "pulse".
	InputFormat string

	// InputDevice is passed to ffmpeg -i. Defaults to "default".
	InputDevice string

	// StartupGrace is how long Start waits for ffmpeg to fail before
	// assuming capture is running.
	StartupGrace time.Duration

	// StopTimeout is how long Stop waits after interrupting ffmpeg before
	// killing it.
	StopTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Command == "" {
		c.Command = defaultCommand
	}
	if c.InputFormat == "" {
		c.InputFormat = defaultInputFormat
	}
	if c.InputDevice == "" {
		c.InputDevice = defaultInputDevice
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = defaultStartupGrace
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
}

// Platform hands out ffmpeg-backed recorders.
type Platform struct {
	cfg      Config
	lookPath func(string) (string, error)
}

var _ audio.Platform = (*Platform)(nil)

// New creates a Platform for cfg.
func New(cfg Config) *Platform {
	cfg.applyDefaults()
	return &Platform{cfg: cfg, lookPath: exec.LookPath}
}

// RequestPermission reports whether the ffmpeg binary can be run. Device
// access problems only show up once capture starts.
func (p *Platform) RequestPermission(context.Context) (bool, error) {
	if _, err := p.lookPath(p.cfg.Command); err != nil {
		return false, fmt.Errorf("capture: resolve %q: %w", p.cfg.Command, err)
	}
	return true, nil
}

// NewRecorder creates the output WAV file and returns a recorder that will
// write into it.
func (p *Platform) NewRecorder(_ context.Context, opts audio.Options) (audio.Recorder, error) {
	format := opts.Format
	if format.SampleRate <= 0 {
		format.SampleRate = defaultSampleRate
	}
	if format.Channels <= 0 {
		format.Channels = defaultChannels
	}

	f, err := os.CreateTemp(opts.Dir, "memo-*.wav")
	if err != nil {
		return nil, fmt.Errorf("capture: create output: %w", err)
	}
	enc := wav.NewEncoder(f, format.SampleRate, 16, format.Channels, 1)
	// An empty write emits the headers so even a silent stop yields a
	// valid file.
	if err := enc.Write(intBuffer(format, nil)); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("capture: write wav header: %w", err)
	}
	return &Recorder{
		cfg:      p.cfg,
		format:   format,
		metering: opts.Metering,
		file:     f,
		enc:      enc,
		level:    audio.MeteringFloor,
		exited:   make(chan struct{}),
		pumped:   make(chan struct{}),
	}, nil
}

// Recorder is one ffmpeg capture into one WAV file.
type Recorder struct {
	cfg      Config
	format   audio.Format
	metering bool

	file *os.File
	enc  *wav.Encoder

	mu       sync.Mutex
	started  bool
	paused   bool
	frames   int64 // per-channel samples written
	level    float64
	hasLevel bool
	writeErr error

	cmd     *exec.Cmd
	stderr  bytes.Buffer
	exited  chan struct{}
	exitErr error
	pumped  chan struct{}

	stopOnce sync.Once
	stopErr  error
}

var _ audio.Recorder = (*Recorder)(nil)

// Path returns the location of the WAV file.
func (r *Recorder) Path() string { return r.file.Name() }

// Start launches ffmpeg. It fails if ffmpeg exits within the startup grace
// period, which is how unavailable devices usually show up.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("capture: recorder already started")
	}
	r.started = true
	r.mu.Unlock()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
		"-ac", strconv.Itoa(r.format.Channels),
		"-ar", strconv.Itoa(r.format.SampleRate),
		"-f", "s16le",
		"-",
	}
	pr, pw := io.Pipe()
	r.cmd = exec.CommandContext(ctx, r.cfg.Command, args...)
	r.cmd.Stdout = pw
	r.cmd.Stderr = &r.stderr
	if err := r.cmd.Start(); err != nil {
		_ = pw.Close()
		close(r.exited)
		close(r.pumped)
		return fmt.Errorf("capture: start ffmpeg: %w", err)
	}

	go func() {
		// Wait returns only after all stdout has been copied into pw.
		r.exitErr = r.cmd.Wait()
		_ = pw.Close()
		close(r.exited)
	}()
	go r.pump(pr)

	select {
	case <-r.exited:
		<-r.pumped
		if r.exitErr != nil {
			return fmt.Errorf("capture: ffmpeg exited before capture started: %w: %s", r.exitErr, trimmed(&r.stderr))
		}
		return errors.New("capture: ffmpeg exited before capture started")
	case <-time.After(r.cfg.StartupGrace):
	}
	slog.Debug("capture started", "device", r.cfg.InputDevice, "format", r.format.String(), "path", r.Path())
	return nil
}

// pump copies PCM chunks from ffmpeg into the encoder until EOF.
func (r *Recorder) pump(src io.Reader) {
	defer close(r.pumped)
	chunk := make([]byte, r.format.BytesPerSecond()/10)
	frameBytes := 2 * r.format.Channels
	for {
		n, err := io.ReadFull(src, chunk)
		n -= n % frameBytes
		if n > 0 {
			r.write(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

func (r *Recorder) write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	if r.writeErr == nil {
		if err := r.enc.Write(intBuffer(r.format, audio.PCM16ToInts(pcm))); err != nil {
			r.writeErr = fmt.Errorf("capture: write wav: %w", err)
		}
	}
	r.frames += int64(len(pcm) / (2 * r.format.Channels))
	if r.metering {
		if r.format.Channels == 2 {
			pcm = audio.StereoToMono(pcm)
		}
		r.level = audio.LevelDB(pcm)
		r.hasLevel = true
	}
}

// Pause drops incoming audio until Resume.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
	r.hasLevel = false
	return nil
}

// Resume continues appending audio to the file.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
	return nil
}

// Status implements [audio.Recorder].
func (r *Recorder) Status() audio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	running := r.started && !r.paused
	if running {
		select {
		case <-r.exited:
			running = false
		default:
		}
	}
	return audio.Status{
		Recording:   running,
		Elapsed:     time.Duration(r.frames) * time.Second / time.Duration(r.format.SampleRate),
		Metering:    r.level,
		HasMetering: r.hasLevel,
	}
}

// Stop interrupts ffmpeg, waits for the remaining audio to be written and
// finalises the WAV header. ffmpeg is killed if it does not exit within the
// stop timeout.
func (r *Recorder) Stop() (string, error) {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		started := r.started
		r.mu.Unlock()

		if started && r.cmd != nil && r.cmd.Process != nil {
			_ = r.cmd.Process.Signal(os.Interrupt)
			select {
			case <-r.exited:
			case <-time.After(r.cfg.StopTimeout):
				slog.Warn("ffmpeg ignored interrupt, killing", "pid", r.cmd.Process.Pid)
				_ = r.cmd.Process.Kill()
				<-r.exited
			}
			<-r.pumped
		}

		var errs []error
		if err := normalizeStopErr(r.exitErr); err != nil {
			errs = append(errs, fmt.Errorf("capture: ffmpeg: %w: %s", err, trimmed(&r.stderr)))
		}
		r.mu.Lock()
		errs = append(errs, r.writeErr)
		r.mu.Unlock()
		if err := r.enc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("capture: finalise wav: %w", err))
		}
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("capture: close output: %w", err))
		}
		r.stopErr = errors.Join(errs...)
	})
	return r.Path(), r.stopErr
}

func intBuffer(f audio.Format, data []int) *goaudio.IntBuffer {
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// normalizeStopErr ignores the non-zero exit ffmpeg reports after being
// interrupted.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(b *bytes.Buffer) string {
	return string(bytes.TrimSpace(b.Bytes()))
}

// ErrNotWAV is returned by [Duration] for files that are not RIFF/WAVE.
var ErrNotWAV = errors.New("capture: not a WAV file")

// Duration reads the playing time of the WAV file at path from its header.
func Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("capture: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, ErrNotWAV
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("capture: read duration of %q: %w", path, err)
	}
	return d, nil
}
