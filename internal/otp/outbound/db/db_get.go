package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

func (s *DB) GetLatestCode(ctx context.Context, identity string) (_ *entity.OTP, err error) {
	ctx, span := s.startSpan(ctx, "GetLatestCode")
	defer func() { s.endSpan(span, err) }()

	var rec entity.OTP
	err = s.conn.QueryRow(ctx,
		`SELECT id, identity, code, issued_at FROM otp_codes WHERE identity = $1 ORDER BY id DESC LIMIT 1`,
		identity,
	).Scan(&rec.ID, &rec.Identity, &rec.Code, &rec.IssuedAt)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return &rec, nil
}
