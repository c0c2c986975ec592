package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

func (s *DB) CreateCode(ctx context.Context, in entity.NewOTP) (id int64, err error) {
	ctx, span := s.startSpan(ctx, "CreateCode")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx,
		`INSERT INTO otp_codes (identity, code, issued_at) VALUES ($1, $2, $3) RETURNING id`,
		in.Identity, in.Code, in.IssuedAt,
	).Scan(&id)
	if err != nil {
		return 0, s.mapError(err)
	}

	return id, nil
}
