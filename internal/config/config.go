// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package config loads authkeep settings from defaults, an optional YAML file,
// command-line flags and environment secrets, in that order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/notify"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Environment variables carrying secrets.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvTokenSecret  = "AUTHKEEP_TOKEN_SECRET"
	EnvSMTPPassword = "AUTHKEEP_SMTP_PASSWORD"
)

// Config is the complete runtime configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Token   TokenConfig   `koanf:"token"`
	Hasher  HasherConfig  `koanf:"hasher"`
	Auth    AuthConfig    `koanf:"auth"`
	Mail    MailConfig    `koanf:"mail"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the account store.
type StoreConfig struct {
	Driver      string `koanf:"driver"`
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret     string        `koanf:"secret"`
	Issuer     string        `koanf:"issuer"`
	SessionTTL time.Duration `koanf:"session_ttl"`
	ResetTTL   time.Duration `koanf:"reset_ttl"`
}

// HasherConfig is the argon2id work factor.
type HasherConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
}

// AuthConfig holds workflow policy.
type AuthConfig struct {
	RequireVerifiedLogin bool `koanf:"require_verified_login"`
}

// MailConfig selects and configures the notification sink.
type MailConfig struct {
	Driver      string        `koanf:"driver"`
	From        string        `koanf:"from"`
	SendTimeout time.Duration `koanf:"send_timeout"`
	SMTP        SMTPConfig    `koanf:"smtp"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Default returns the built-in configuration.
func Default() Config {
	params := auth.DefaultArgon2Params()
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: logging.FormatJSON, Level: "info"},
		Store:   StoreConfig{Driver: StoreDriverPostgres},
		Token: TokenConfig{
			Issuer:     auth.DefaultTokenIssuer,
			SessionTTL: auth.DefaultSessionTokenTTL,
			ResetTTL:   auth.DefaultResetTokenTTL,
		},
		Hasher: HasherConfig{
			MemoryKiB:   params.Memory,
			Iterations:  params.Iterations,
			Parallelism: params.Parallelism,
		},
		Mail: MailConfig{
			Driver:      MailDriverLog,
			From:        auth.DefaultMailFrom,
			SendTimeout: notify.DefaultSendTimeout,
			SMTP:        SMTPConfig{Port: notify.DefaultSMTPPort},
		},
	}
}

// defaultValues flattens Default into koanf keys.
func defaultValues() map[string]any {
	d := Default()
	return map[string]any{
		"http.addr":                   d.HTTP.Addr,
		"http.shutdown_timeout":       d.HTTP.ShutdownTimeout,
		"metrics.addr":                d.Metrics.Addr,
		"log.format":                  d.Log.Format,
		"log.level":                   d.Log.Level,
		"store.driver":                d.Store.Driver,
		"store.url":                   d.Store.URL,
		"store.auto_migrate":          d.Store.AutoMigrate,
		"token.secret":                d.Token.Secret,
		"token.issuer":                d.Token.Issuer,
		"token.session_ttl":           d.Token.SessionTTL,
		"token.reset_ttl":             d.Token.ResetTTL,
		"hasher.memory_kib":           d.Hasher.MemoryKiB,
		"hasher.iterations":           d.Hasher.Iterations,
		"hasher.parallelism":          d.Hasher.Parallelism,
		"auth.require_verified_login": d.Auth.RequireVerifiedLogin,
		"mail.driver":                 d.Mail.Driver,
		"mail.from":                   d.Mail.From,
		"mail.send_timeout":           d.Mail.SendTimeout,
		"mail.smtp.host":              d.Mail.SMTP.Host,
		"mail.smtp.port":              d.Mail.SMTP.Port,
		"mail.smtp.username":          d.Mail.SMTP.Username,
		"mail.smtp.password":          d.Mail.SMTP.Password,
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":              "http.addr",
	"metrics-addr":           "metrics.addr",
	"log-format":             "log.format",
	"log-level":              "log.level",
	"store":                  "store.driver",
	"auto-migrate":           "store.auto_migrate",
	"require-verified-login": "auth.require_verified_login",
	"mail":                   "mail.driver",
	"mail-from":              "mail.from",
}

// envKeys maps secret environment variables to config keys.
var envKeys = map[string]string{
	EnvDatabaseURL:  "store.url",
	EnvTokenSecret:  "token.secret",
	EnvSMTPPassword: "mail.smtp.password",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("store", d.Store.Driver, "account store (postgres or memory)")
	fs.Bool("auto-migrate", d.Store.AutoMigrate, "apply pending migrations on startup")
	fs.Bool("require-verified-login", d.Auth.RequireVerifiedLogin, "reject login until the email is verified")
	fs.String("mail", d.Mail.Driver, "notification sink (smtp or log)")
	fs.String("mail-from", d.Mail.From, "sender address for account emails")
}

// Load builds the configuration. path may be empty; flags may be nil.
// Only flags the user set override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaultValues() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrapf(err, "read config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read flags")
		}
	}

	for env, key := range envKeys {
		if value, ok := os.LookupEnv(env); ok && value != "" {
			if err := k.Set(key, value); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
			}
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "decode config")
	}
	return &cfg, nil
}

// Validate checks the configuration for startup.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.URL == "" {
			return invalid("store.url", "%s is required for the postgres store", EnvDatabaseURL)
		}
	case StoreDriverMemory:
	default:
		return invalid("store.driver", "store.driver must be 'postgres' or 'memory', got %q", c.Store.Driver)
	}

	if len(c.Token.Secret) < auth.MinTokenSecretLength {
		return invalid("token.secret", "token secret (%s) must be at least %d bytes",
			EnvTokenSecret, auth.MinTokenSecretLength)
	}
	if c.Token.SessionTTL <= 0 || c.Token.ResetTTL <= 0 {
		return invalid("token", "token TTLs must be positive")
	}

	if err := c.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "hasher").Wrap(err)
	}

	if strings.TrimSpace(c.Mail.From) == "" {
		return invalid("mail.from", "mail.from is required")
	}
	switch c.Mail.Driver {
	case MailDriverSMTP:
		if c.Mail.SMTP.Host == "" {
			return invalid("mail.smtp.host", "mail.smtp.host is required for the smtp sink")
		}
	case MailDriverLog:
	default:
		return invalid("mail.driver", "mail.driver must be 'smtp' or 'log', got %q", c.Mail.Driver)
	}
	return nil
}

// Argon2Params returns the configured hasher work factor.
func (c *Config) Argon2Params() auth.Argon2Params {
	params := auth.DefaultArgon2Params()
	params.Memory = c.Hasher.MemoryKiB
	params.Iterations = c.Hasher.Iterations
	params.Parallelism = c.Hasher.Parallelism
	return params
}

// CodecConfig returns the token codec settings.
func (c *Config) CodecConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:     []byte(c.Token.Secret),
		Issuer:     c.Token.Issuer,
		SessionTTL: c.Token.SessionTTL,
		ResetTTL:   c.Token.ResetTTL,
	}
}

// SMTPSinkConfig returns the SMTP sink settings.
func (c *Config) SMTPSinkConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:       c.Mail.SMTP.Host,
		Port:       c.Mail.SMTP.Port,
		Username:   c.Mail.SMTP.Username,
		Password:   c.Mail.SMTP.Password,
		MaxRetries: notify.DefaultSMTPMaxRetries,
	}
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}
