package irc

import (
	"context"
	"encoding"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SendPipeline serializes outgoing messages onto a single io.Writer,
// enforcing flood protection (a configurable minimum delay between
// writes) and a strict FIFO ordering via a single mutex.
//
// After Quit has been sent, further Send calls are dropped rather than
// written, since the connection is expected to close shortly.
type SendPipeline struct {
	mu  sync.Mutex
	w   io.Writer
	lim *rate.Limiter

	ErrorLog *log.Logger

	requestedDisconnect bool
}

// NewSendPipeline returns a SendPipeline writing to w. delay, if
// positive, enables flood protection: writes are paced to no more than
// one per delay. A zero delay disables pacing.
func NewSendPipeline(w io.Writer, delay time.Duration) *SendPipeline {
	sp := &SendPipeline{w: w}
	if delay > 0 {
		sp.lim = rate.NewLimiter(rate.Every(delay), 1)
	}
	return sp
}

// Send marshals m and writes it to the connection, applying flood
// protection pacing and FIFO serialization. Errors are reported via
// ErrorLog (or the standard logger) rather than returned, matching
// irc.MessageWriter's fire-and-forget contract.
func (sp *SendPipeline) Send(m encoding.TextMarshaler) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.requestedDisconnect {
		return
	}

	b, err := m.MarshalText()
	if err != nil {
		sp.log(err)
		if !errors.Is(err, warnTruncate) {
			return
		}
		// a truncation warning does not stop the line from being sent.
	}
	if n := len(b); n < 2 || b[n-2] != '\r' || b[n-1] != '\n' {
		b = append(b, '\r', '\n')
	}

	if sp.lim != nil {
		if err := sp.lim.Wait(context.Background()); err != nil {
			sp.log(err)
		}
	}

	if msg, ok := m.(*Message); ok && msg.Command.is(CmdQuit) {
		sp.requestedDisconnect = true
	}

	if _, err := sp.w.Write(b); err != nil {
		sp.log(err)
	}
}

// SendLine builds and sends an ad-hoc raw line from parts, observing the
// same trailing-parameter rule as NewMessage: only the last part may
// contain a space, and it alone is written with a leading ':'.
func (sp *SendPipeline) SendLine(parts ...string) {
	sp.Send(rawLine(joinIRCLine(parts)))
}

func joinIRCLine(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	out := make([]string, len(parts))
	copy(out, parts)
	last := len(out) - 1
	out[last] = ":" + out[last]
	return out[0] + " " + joinRest(out[1:])
}

func joinRest(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	s := parts[0]
	for _, p := range parts[1:] {
		s += " " + p
	}
	return s
}

// rawLine implements encoding.TextMarshaler for a preformatted line that
// bypasses Message's field-based construction.
type rawLine string

func (r rawLine) MarshalText() ([]byte, error) {
	s := string(r)
	if len(s) < 2 || s[len(s)-2:] != "\r\n" {
		s += "\r\n"
	}
	return []byte(s), nil
}

func (sp *SendPipeline) log(e error) {
	if sp.ErrorLog == nil {
		log.Println(e)
		return
	}
	sp.ErrorLog.Println(e)
}

