package mail

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrNoRecipients is returned when Message.To is empty.
	ErrNoRecipients = errors.New("mail: no recipients")
	// ErrNoSender is returned when the driver has no From address.
	ErrNoSender = errors.New("mail: no sender")
	// ErrHeaderInjection is returned when an address or the subject carries a line break.
	ErrHeaderInjection = errors.New("mail: header contains line break")
)

// Message is a plain-text notification: an OTP code for an end user or an
// unauthorized attempt alert for operators.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mail sends notifications through one delivery driver.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}

func (m Message) check() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, v := range append([]string{m.Subject}, m.To...) {
		if strings.ContainsAny(v, "\r\n") {
			return ErrHeaderInjection
		}
	}
	return nil
}
