// Package notification builds and delivers user-facing messages emitted by
// the verification and retention engines.
package notification

import (
	"context"
	"log/slog"
	"sync"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers a message through a concrete channel (SMTP relay, provider
// API). Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the structured log instead of delivering
// them. Used in development and as the fallback when no provider is
// configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "notification dispatched",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// Recorder captures sent messages for assertions in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of all recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
