package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/platform/env"
)

type Mode string

const (
	// ModeDev accepts every request as a fixed development identity.
	ModeDev Mode = "dev"
	// ModeOIDC verifies bearer tokens against an OIDC issuer.
	ModeOIDC Mode = "oidc"
)

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string
	EmailClaim    string
	RolesClaim    string

	DevSubject string
	DevEmail   string
	DevRoles   []string

	// RunTokenSecret signs the HMAC tokens carried by in-pipeline callers.
	RunTokenSecret string
	RunTokenTTL    time.Duration
}

func ConfigFromEnv() (Config, error) {
	ttl, err := env.Duration("FLOWLANE_RUN_TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Mode:           Mode(strings.ToLower(env.String("FLOWLANE_AUTH_MODE", string(ModeDev)))),
		OIDCIssuerURL:  env.String("FLOWLANE_OIDC_ISSUER_URL", ""),
		OIDCClientID:   env.String("FLOWLANE_OIDC_CLIENT_ID", ""),
		EmailClaim:     env.String("FLOWLANE_OIDC_EMAIL_CLAIM", "email"),
		RolesClaim:     env.String("FLOWLANE_OIDC_ROLES_CLAIM", "roles"),
		DevSubject:     env.String("FLOWLANE_DEV_SUBJECT", "dev@localhost"),
		DevEmail:       env.String("FLOWLANE_DEV_EMAIL", ""),
		DevRoles:       env.Strings("FLOWLANE_DEV_ROLES", []string{"admin"}),
		RunTokenSecret: env.String("FLOWLANE_RUN_TOKEN_SECRET", ""),
		RunTokenTTL:    ttl,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeDev:
		if strings.TrimSpace(c.DevSubject) == "" {
			return errors.New("FLOWLANE_DEV_SUBJECT is required in dev mode")
		}
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("FLOWLANE_OIDC_ISSUER_URL is required in oidc mode")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("FLOWLANE_OIDC_CLIENT_ID is required in oidc mode")
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Mode)
	}
	if c.RunTokenTTL <= 0 {
		return errors.New("FLOWLANE_RUN_TOKEN_TTL must be positive")
	}
	return nil
}
