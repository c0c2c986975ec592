package app

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const scopePubSub = "https://www.googleapis.com/auth/pubsub"

// googleClientOptions reads the credential and endpoint keys shared by the
// Pub/Sub and GCS drivers under prefix. With no keys set the client falls back
// to Application Default Credentials, or to the *_EMULATOR_HOST variables.
func (a *App) googleClientOptions(prefix string, scopes ...string) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	if a.config.GetBool(prefix + ".without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	} else if file := strings.TrimSpace(a.config.GetString(prefix + ".credentials_file")); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s credentials: %w", prefix, err)
		}
		creds, err := google.CredentialsFromJSON(a.ctx, raw, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse %s credentials: %w", prefix, err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if endpoint := strings.TrimSpace(a.config.GetString(prefix + ".endpoint")); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if ua := strings.TrimSpace(a.config.GetString(prefix + ".user_agent")); ua != "" {
		opts = append(opts, option.WithUserAgent(ua))
	}

	return opts, nil
}
