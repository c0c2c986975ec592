package db

import (
	"context"
	"time"
)

// DeleteCode removes the record and reports whether this call removed it.
// Racing callers for the same id see exactly one true.
func (s *DB) DeleteCode(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "DeleteCode")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
	if err != nil {
		err = s.mapError(err)
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (s *DB) DeleteCodesIssuedBefore(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteCodesIssuedBefore")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM otp_codes WHERE issued_at < $1`, cutoff)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	return tag.RowsAffected(), nil
}
