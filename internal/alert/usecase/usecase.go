package usecase

import (
	"context"
	"fmt"
	"text/template"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	NotifyOperators(ctx context.Context, operators []string, subject, body string) error
}

type Dependency struct {
	RepoMail   repoMail
	Config     config.Config
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

// Usecase turns unauthorized attempt events into operator emails.
type Usecase struct {
	repoMail  repoMail
	cfg       config.Config
	clock     clock.Clocker
	validator validator.Validator
	tracer    trace.Tracer
	body      *template.Template
}

// New parses modules.alert.body_template, or the built-in body when it is
// unset. A template that does not parse is a startup error.
func New(dep Dependency) (*Usecase, error) {
	src := dep.Config.GetString("modules.alert.body_template")
	if src == "" {
		src = defaultUnauthorizedBody
	}
	body, err := template.New("unauthorized_attempt").Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("alert: body template: %w", err)
	}

	return &Usecase{
		repoMail:  dep.RepoMail,
		cfg:       dep.Config,
		clock:     dep.Clock,
		validator: dep.Validator,
		tracer:    dep.Instrument.Tracer("alert.usecase"),
		body:      body,
	}, nil
}
