package app

import (
	"github.com/shandysiswandi/otpgate/internal/alert"
	"github.com/shandysiswandi/otpgate/internal/otp"
)

func (a *App) initModules() {
	if err := otp.New(a.ctx, otp.Dependency{
		DBConn:      a.dbConn,
		Storage:     a.storage,
		CacheConn:   a.cacheConn,
		Idempotency: a.idemp,
		Messaging:   a.messaging,
		Mail:        a.mail,
		Goroutine:   a.goroutine,
		Router:      a.router,
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		Clock:       a.clock,
		Validator:   a.validator,
	}); err != nil {
		fatal("otp module", err)
	}

	if a.config.GetBool("modules.alert.enabled") {
		if err := alert.New(a.ctx, alert.Dependency{
			Messaging:  a.messaging,
			Mail:       a.mail,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
		}); err != nil {
			fatal("alert module", err)
		}
	}
}
