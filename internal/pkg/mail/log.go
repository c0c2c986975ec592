package mail

import (
	"context"
	"log/slog"
)

// Log writes messages to the structured logger instead of delivering them.
// It backs the "log" driver for local runs without an SMTP relay, so the code
// shows up in the service output.
type Log struct {
	from string
}

func NewLog(from string) *Log {
	return &Log{from: from}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.check(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "mail sent to log driver",
		"from", l.from,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

func (l *Log) Close() error {
	return nil
}
