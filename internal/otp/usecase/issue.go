package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/allowlist"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

var errCodeOutOfRange = errors.New("otp: generated code out of range")

type IssueInput struct {
	Identity string `validate:"required,max=320,nocrlf"`
	Metadata entity.RequestMetadata
}

func (s *Usecase) Issue(ctx context.Context, in IssueInput) (err error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()
	defer func() { s.record(ctx, s.issueOutcomes, err, entity.OutcomeIssued) }()

	in.Identity = allowlist.Normalize(in.Identity)

	if err := s.validator.Validate(in); err != nil {
		if in.Identity == "" {
			return invalidRequest(err, "Email is required")
		}
		return invalidRequest(err, "Invalid email")
	}

	if !s.allowlist.IsAuthorized(in.Identity) {
		slog.WarnContext(ctx, "otp requested for unauthorized identity", "identity", in.Identity, "address", in.Metadata.SourceAddress)
		s.alertUnauthorized(ctx, in.Identity, entity.OperationIssue, in.Metadata)
		return goerror.NewBusiness("This email is not authorized to log in.", goerror.CodeForbidden,
			goerror.WithStatus(entity.OutcomeUnauthorized.String()))
	}

	code, err := s.generator.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return goerror.NewServer(err)
	}
	if !s.generator.Contains(code) {
		slog.ErrorContext(ctx, "generated otp code is outside the configured width")
		return goerror.NewServer(errCodeOutOfRange)
	}

	id, err := s.repoStore.CreateCode(ctx, entity.NewOTP{
		Identity: in.Identity,
		Code:     code,
		IssuedAt: s.clock.Now(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create otp code", "identity", in.Identity, "error", err)
		return storageError(err)
	}

	if err := s.repoEmail.DeliverCode(ctx, in.Identity, code, s.Validity()); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp code", "identity", in.Identity, "otp_id", id, "error", err)
		return goerror.NewServer(err,
			goerror.WithMessage("Failed to send OTP"),
			goerror.WithStatus(entity.OutcomeDeliveryError.String()),
		)
	}

	slog.InfoContext(ctx, "otp issued", "identity", in.Identity, "otp_id", id)

	return nil
}
