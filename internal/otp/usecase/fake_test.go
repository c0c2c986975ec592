package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type fakeStore struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]entity.OTP

	createErr error
	getErr    error
	deleteErr error
	sweepErr  error

	reads, deletes int

	// readBarrier, when set, holds every GetLatestCode caller until all of
	// them have read.
	readBarrier *sync.WaitGroup
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[int64]entity.OTP)}
}

func (f *fakeStore) CreateCode(_ context.Context, in entity.NewOTP) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return 0, f.createErr
	}

	f.seq++
	f.records[f.seq] = entity.OTP{ID: f.seq, Identity: in.Identity, Code: in.Code, IssuedAt: in.IssuedAt}
	return f.seq, nil
}

func (f *fakeStore) GetLatestCode(_ context.Context, identity string) (*entity.OTP, error) {
	f.mu.Lock()
	f.reads++
	if f.getErr != nil {
		f.mu.Unlock()
		return nil, f.getErr
	}

	var latest *entity.OTP
	for _, rec := range f.records {
		if rec.Identity != identity {
			continue
		}
		if latest == nil || rec.ID > latest.ID {
			r := rec
			latest = &r
		}
	}
	f.mu.Unlock()

	if f.readBarrier != nil {
		f.readBarrier.Done()
		f.readBarrier.Wait()
	}

	if latest == nil {
		return nil, goerror.ErrNotFound
	}
	return latest, nil
}

func (f *fakeStore) DeleteCode(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes++
	if f.deleteErr != nil {
		return false, f.deleteErr
	}

	if _, ok := f.records[id]; !ok {
		return false, nil
	}
	delete(f.records, id)
	return true, nil
}

func (f *fakeStore) DeleteCodesIssuedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sweepErr != nil {
		return 0, f.sweepErr
	}

	var n int64
	for id, rec := range f.records {
		if rec.IssuedAt.Before(cutoff) {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) count(identity string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, rec := range f.records {
		if rec.Identity == identity {
			n++
		}
	}
	return n
}

func (f *fakeStore) touched() (reads, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.deletes
}

func (f *fakeStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type delivery struct {
	identity string
	code     int64
	validFor time.Duration
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []delivery
	err  error
}

func (f *fakeEmail) DeliverCode(_ context.Context, identity string, code int64, validFor time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, delivery{identity: identity, code: code, validFor: validFor})
	return nil
}

func (f *fakeEmail) last() delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAlert struct {
	mu       sync.Mutex
	attempts []entity.UnauthorizedAttempt
	err      error
}

func (f *fakeAlert) AlertUnauthorized(_ context.Context, attempt entity.UnauthorizedAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts = append(f.attempts, attempt)
	return f.err
}

func (f *fakeAlert) all() []entity.UnauthorizedAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.UnauthorizedAttempt(nil), f.attempts...)
}

var errBoom = errors.New("boom")

type outOfRangeGenerator struct{}

func (outOfRangeGenerator) Generate() (int64, error) { return 42, nil }
func (outOfRangeGenerator) Contains(int64) bool      { return false }
