// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting the service reads at startup.
type Config struct {
	Addr        string `validate:"required"`
	DatabaseURL string
	LogLevel    string `validate:"oneof=debug info warn error"`
	Timezone    string
	Location    *time.Location `validate:"-"`

	AuthDisabled bool
	DemoData     bool
	DemoSeed     uint64

	AdminUsername string `validate:"required_with=AdminPassword"`
	AdminPassword string `validate:"required_with=AdminUsername"`

	OIDC OIDC
}

// OIDC holds the SSO provider settings. SSO is on when Issuer is set.
type OIDC struct {
	Issuer       string `validate:"omitempty,url"`
	ClientID     string `validate:"required_with=Issuer"`
	ClientSecret string `validate:"required_with=Issuer"`
	RedirectURL  string `validate:"required_with=Issuer"`
}

// Enabled reports whether SSO is configured.
func (o OIDC) Enabled() bool { return o.Issuer != "" }

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration through getenv, usually os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Addr:          env("ADDR", ":8080"),
		DatabaseURL:   env("DATABASE_URL", ""),
		LogLevel:      strings.ToLower(env("LOG_LEVEL", "info")),
		Timezone:      env("TIMEZONE", "Local"),
		AdminUsername: env("ADMIN_USERNAME", ""),
		AdminPassword: getenv("ADMIN_PASSWORD"),
		OIDC: OIDC{
			Issuer:       env("OIDC_ISSUER", ""),
			ClientID:     env("OIDC_CLIENT_ID", ""),
			ClientSecret: env("OIDC_CLIENT_SECRET", ""),
			RedirectURL:  env("OIDC_REDIRECT_URL", ""),
		},
	}

	var err error
	if cfg.AuthDisabled, err = parseBool(env("AUTH_DISABLED", "false")); err != nil {
		return Config{}, fmt.Errorf("AUTH_DISABLED: %w", err)
	}
	if cfg.DemoData, err = parseBool(env("DEMO_DATA", "false")); err != nil {
		return Config{}, fmt.Errorf("DEMO_DATA: %w", err)
	}
	if cfg.DemoSeed, err = strconv.ParseUint(env("DEMO_SEED", "0"), 10, 64); err != nil {
		return Config{}, fmt.Errorf("DEMO_SEED: %w", err)
	}
	if cfg.Location, err = loadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, describe(err)
	}
	return cfg, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

var envNames = map[string]string{
	"Addr":          "ADDR",
	"LogLevel":      "LOG_LEVEL",
	"AdminUsername": "ADMIN_USERNAME",
	"AdminPassword": "ADMIN_PASSWORD",
	"Issuer":        "OIDC_ISSUER",
	"ClientID":      "OIDC_CLIENT_ID",
	"ClientSecret":  "OIDC_CLIENT_SECRET",
	"RedirectURL":   "OIDC_REDIRECT_URL",
}

// describe turns validator failures into messages naming the variables.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.StructField()]
		if name == "" {
			name = fe.StructField()
		}
		switch fe.Tag() {
		case "required", "required_with":
			msgs = append(msgs, name+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", name, fe.Param()))
		case "url":
			msgs = append(msgs, name+" must be a URL")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", name, fe.Tag()))
		}
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}
