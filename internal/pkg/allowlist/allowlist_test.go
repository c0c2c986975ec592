package allowlist

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_IsAuthorized(t *testing.T) {
	l := New([]string{" Alice@Example.com ", "bob@example.com", "", "   ", "BOB@example.com"})

	assert.Equal(t, 2, l.Len())
	assert.True(t, l.IsAuthorized("alice@example.com"))
	assert.True(t, l.IsAuthorized("  ALICE@EXAMPLE.COM"))
	assert.True(t, l.IsAuthorized("bob@example.com"))
	assert.False(t, l.IsAuthorized("mallory@example.com"))
	assert.False(t, l.IsAuthorized(""))
}

func TestList_Nil(t *testing.T) {
	var l *List
	assert.False(t, l.IsAuthorized("a@x.com"))
	assert.Zero(t, l.Len())
}

func TestParse(t *testing.T) {
	in := "# operators\nalice@example.com\n\n  bob@example.com  # on-call\n#carol@example.com\n"

	got, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, got)
}

type fakeStorage struct {
	body string
	err  error

	gotBucket, gotKey string
}

func (f *fakeStorage) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	f.gotBucket, f.gotKey = bucket, key
	if f.err != nil {
		return nil, storage.ObjectInfo{}, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), storage.ObjectInfo{Bucket: bucket, Key: key}, nil
}

func (f *fakeStorage) Close() error { return nil }

func TestLoadFromStorage(t *testing.T) {
	st := &fakeStorage{body: "Alice@Example.com\n# comment\n"}

	l, err := LoadFromStorage(context.Background(), st, "config", "allowlist.txt")
	require.NoError(t, err)
	assert.Equal(t, "config", st.gotBucket)
	assert.Equal(t, "allowlist.txt", st.gotKey)
	assert.True(t, l.IsAuthorized("alice@example.com"))
}

func TestLoadFromStorage_Errors(t *testing.T) {
	_, err := LoadFromStorage(context.Background(), &fakeStorage{err: storage.ErrObjectNotFound}, "b", "k")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = LoadFromStorage(context.Background(), &fakeStorage{body: "# nobody\n"}, "b", "k")
	assert.True(t, errors.Is(err, ErrEmpty))
}
