// Package events publishes build diagnostics to NATS JetStream so CI
// dashboards and notification consumers can react to broken documentation
// without scraping build logs.
//
// Publishing is strictly best-effort: an unreachable broker degrades to log
// warnings and never affects the build result.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/logfields"
)

// DiagnosticEvent is the wire shape of one published diagnostic.
type DiagnosticEvent struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	File      string    `json:"file"`
	Line      int       `json:"line,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends diagnostic events to a JetStream subject.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// Connect establishes the NATS connection and JetStream context.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	slog.Info("Diagnostic event publisher connected", "url", url, "subject", subject)
	return &Publisher{conn: conn, js: js, subject: subject}, nil
}

// PublishReport publishes every diagnostic of a finished run. Individual
// publish failures are logged and skipped; the report itself is authoritative.
func (p *Publisher) PublishReport(ctx context.Context, runID string, report *diag.Report) {
	for _, d := range report.All() {
		event := DiagnosticEvent{
			RunID:     runID,
			Kind:      string(d.Kind),
			File:      d.Location.File,
			Line:      d.Location.Line,
			Message:   d.Message,
			Timestamp: time.Now().UTC(),
		}
		if err := p.publish(ctx, event); err != nil {
			slog.Warn("Failed to publish diagnostic event",
				logfields.RunID(runID),
				logfields.DiagKind(string(d.Kind)),
				logfields.Error(err))
		}
	}
	slog.Debug("Published diagnostic events", logfields.RunID(runID), "count", report.Len())
}

func (p *Publisher) publish(ctx context.Context, event DiagnosticEvent) error {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(pctx, p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
