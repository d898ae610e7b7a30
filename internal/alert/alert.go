// Package alert delivers blocking user-facing notifications, such as the
// one raised when the transcription quota runs out.
package alert

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// Alerter delivers one notification.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

// ---- log ----

// Log writes alerts to a [slog.Logger] at error level.
type Log struct {
	Logger *slog.Logger
}

var _ Alerter = Log{}

// Alert implements [Alerter].
func (l Log) Alert(ctx context.Context, title, message string) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.ErrorContext(ctx, "ALERT: "+title, "message", message)
	return nil
}

// ---- shoutrrr ----

// Shoutrrr fans alerts out to every configured shoutrrr service URL
// (telegram://, discord://, ntfy://, generic://, ...).
type Shoutrrr struct {
	sender *router.ServiceRouter
}

var _ Alerter = (*Shoutrrr)(nil)

// NewShoutrrr validates urls and builds a sender. timeout bounds each
// delivery; zero keeps the router default.
func NewShoutrrr(urls []string, timeout time.Duration) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, errors.New("alert: at least one service URL is required")
	}
	sender, err := shoutrrr.CreateSender(slices.Clone(urls)...)
	if err != nil {
		// The raw error may echo tokens embedded in the URL.
		return nil, errors.New("alert: invalid service URL")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: sender}, nil
}

// Alert implements [Alerter]. The first delivery error is returned.
func (s *Shoutrrr) Alert(_ context.Context, title, message string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range s.sender.Send(message, &params) {
		if err != nil {
			return errors.New("alert: delivery failed: " + redact(err))
		}
	}
	return nil
}

// redact strips everything after the first "://" so service credentials in
// an echoed URL never reach logs.
func redact(err error) string {
	msg := err.Error()
	for i := 0; i+3 <= len(msg); i++ {
		if msg[i:i+3] == "://" {
			return msg[:i] + "://[redacted]"
		}
	}
	return msg
}

// ---- fan-out ----

// Multi delivers every alert to each of its members and joins their errors.
type Multi []Alerter

var _ Alerter = Multi(nil)

// Alert implements [Alerter].
func (m Multi) Alert(ctx context.Context, title, message string) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---- switchable ----

// Switch forwards alerts to an Alerter that can be replaced while in use,
// e.g. after the alert targets were edited in the config file.
type Switch struct {
	current atomic.Pointer[Alerter]
}

var _ Alerter = (*Switch)(nil)

// NewSwitch returns a Switch forwarding to a.
func NewSwitch(a Alerter) *Switch {
	s := &Switch{}
	s.Set(a)
	return s
}

// Set replaces the target. A nil a drops alerts.
func (s *Switch) Set(a Alerter) {
	if a == nil {
		s.current.Store(nil)
		return
	}
	s.current.Store(&a)
}

// Alert implements [Alerter].
func (s *Switch) Alert(ctx context.Context, title, message string) error {
	a := s.current.Load()
	if a == nil {
		return nil
	}
	return (*a).Alert(ctx, title, message)
}
