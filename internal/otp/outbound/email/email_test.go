package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMail struct {
	sent []mail.Message
	err  error
}

func (r *recordingMail) Send(_ context.Context, msg mail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMail) Close() error { return nil }

func TestMail_DeliverCode(t *testing.T) {
	rec := &recordingMail{}
	m := New(rec, instrument.NewNoop())

	require.NoError(t, m.DeliverCode(context.Background(), "user@example.com", 482913, 5*time.Minute))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, []string{"user@example.com"}, rec.sent[0].To)
	assert.Equal(t, "Your OTP Code", rec.sent[0].Subject)
	assert.Equal(t, "Your OTP code is 482913. It is valid for 5 minutes.", rec.sent[0].Body)
}

func TestMail_DeliverCodeError(t *testing.T) {
	boom := errors.New("smtp down")
	m := New(&recordingMail{err: boom}, instrument.NewNoop())

	assert.ErrorIs(t, m.DeliverCode(context.Background(), "user@example.com", 123456, time.Minute), boom)
}

func TestCodeText(t *testing.T) {
	assert.Equal(t, "Your OTP code is 100000. It is valid for 1 minute.", codeText(100000, 30*time.Second))
	assert.Equal(t, "Your OTP code is 100000. It is valid for 2 minutes.", codeText(100000, 90*time.Second))
	assert.Equal(t, "Your OTP code is 100000. It is valid for 10 minutes.", codeText(100000, 10*time.Minute))
}
