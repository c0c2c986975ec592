// Package allowlist holds the set of identities permitted to request and
// verify one-time codes. A list is immutable once built and safe for
// concurrent use.
package allowlist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
)

// ErrEmpty is returned by loaders when the source yields no identities.
var ErrEmpty = errors.New("allowlist: no identities configured")

// Checker reports whether an identity may use the service.
type Checker interface {
	IsAuthorized(identity string) bool
}

// List is a normalized identity set.
type List struct {
	set map[string]struct{}
}

// Normalize trims surrounding whitespace and lower-cases identity.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// New builds a list from raw identities. Blank entries are ignored and
// duplicates collapse after normalization.
func New(identities []string) *List {
	normalized := lo.Uniq(lo.Compact(lo.Map(identities, func(s string, _ int) string {
		return Normalize(s)
	})))

	return &List{set: lo.Keyify(normalized)}
}

// IsAuthorized reports whether the normalized identity is on the list.
func (l *List) IsAuthorized(identity string) bool {
	if l == nil {
		return false
	}
	_, ok := l.set[Normalize(identity)]
	return ok
}

// Len returns the number of distinct identities.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.set)
}

// Parse reads one identity per line. Text after '#' is a comment.
func Parse(r io.Reader) ([]string, error) {
	var out []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("allowlist: read: %w", err)
	}

	return out, nil
}

// LoadFromStorage builds a list from an object holding one identity per line.
func LoadFromStorage(ctx context.Context, st storage.Storage, bucket, key string) (*List, error) {
	body, _, err := st.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("allowlist: get %s/%s: %w", bucket, key, err)
	}
	defer body.Close()

	identities, err := Parse(body)
	if err != nil {
		return nil, err
	}

	list := New(identities)
	if list.Len() == 0 {
		return nil, ErrEmpty
	}
	return list, nil
}
