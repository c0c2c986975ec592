package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/allowlist"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type VerifyInput struct {
	Identity string `validate:"required,max=320,nocrlf"`
	Code     string `validate:"required,max=32"`
	Metadata entity.RequestMetadata
}

func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (err error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()
	defer func() { s.record(ctx, s.verifyOutcomes, err, entity.OutcomeVerified) }()

	in.Identity = allowlist.Normalize(in.Identity)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		switch {
		case in.Identity == "":
			return invalidRequest(err, "Email is required")
		case in.Code == "":
			return invalidRequest(err, "OTP is required")
		default:
			return invalidRequest(err, "Invalid request")
		}
	}

	if !s.allowlist.IsAuthorized(in.Identity) {
		slog.WarnContext(ctx, "otp verify for unauthorized identity", "identity", in.Identity, "address", in.Metadata.SourceAddress)
		s.alertUnauthorized(ctx, in.Identity, entity.OperationVerify, in.Metadata)
		return goerror.NewBusiness("Unauthorized email address", goerror.CodeForbidden,
			goerror.WithStatus(entity.OutcomeUnauthorized.String()))
	}

	rec, err := s.repoStore.GetLatestCode(ctx, in.Identity)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.InfoContext(ctx, "otp verify without outstanding code", "identity", in.Identity)
		return goerror.NewBusiness("OTP not found or expired", goerror.CodeBadRequest,
			goerror.WithStatus(entity.OutcomeNotFoundOrExpired.String()))
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get latest otp code", "identity", in.Identity, "error", err)
		return storageError(err)
	}

	if rec.Expired(s.clock.Now(), s.Validity()) {
		if _, err := s.repoStore.DeleteCode(ctx, rec.ID); err != nil {
			slog.ErrorContext(ctx, "failed to repo delete expired otp code", "otp_id", rec.ID, "error", err)
		}
		slog.InfoContext(ctx, "otp expired", "identity", in.Identity, "otp_id", rec.ID)
		return goerror.NewBusiness("OTP has expired", goerror.CodeBadRequest,
			goerror.WithStatus(entity.OutcomeExpired.String()))
	}

	code, err := strconv.ParseInt(in.Code, 10, 64)
	if err != nil || code != rec.Code {
		slog.InfoContext(ctx, "otp mismatch", "identity", in.Identity, "otp_id", rec.ID)
		return goerror.NewBusiness("Invalid OTP", goerror.CodeBadRequest,
			goerror.WithStatus(entity.OutcomeMismatch.String()))
	}

	deleted, err := s.repoStore.DeleteCode(ctx, rec.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete verified otp code", "otp_id", rec.ID, "error", err)
		return storageError(err)
	}
	if !deleted {
		slog.WarnContext(ctx, "otp consumed by a concurrent verify", "identity", in.Identity, "otp_id", rec.ID)
		return goerror.NewBusiness("OTP already used", goerror.CodeConflict,
			goerror.WithStatus(entity.OutcomeAlreadyUsed.String()))
	}

	slog.InfoContext(ctx, "otp verified", "identity", in.Identity, "otp_id", rec.ID)

	return nil
}
