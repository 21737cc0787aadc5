package buildCFG

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/auth"
	"eventhub/internal/mailer"
)

// Source is the subset of *config.Config the builders read from.
type Source interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
}

type ServerConfig struct {
	Port        string
	FrontendURL string
	Mode        string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PaymentConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type Timeouts struct {
	Store    time.Duration
	Publish  time.Duration
	Shutdown time.Duration
}

type MigrationConfig struct {
	Dir        string
	DownOnExit bool
}

func stringOr(cfg Source, key, def string) string {
	if v := strings.TrimSpace(cfg.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(cfg Source, key string, def int) int {
	if v := cfg.GetInt(key); v > 0 {
		return v
	}
	return def
}

func durationOr(cfg Source, key string, def time.Duration, log *zerolog.Logger) time.Duration {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msgf("bad duration, using default %s", def)
		return def
	}
	return d
}

func BuildServerConfig(cfg Source, log *zerolog.Logger) ServerConfig {
	sc := ServerConfig{
		Port:        stringOr(cfg, "server.port", "8080"),
		FrontendURL: stringOr(cfg, "server.frontend_url", "http://localhost:5173"),
		Mode:        stringOr(cfg, "server.mode", "release"),
	}
	log.Info().Str("port", sc.Port).Str("frontend", sc.FrontendURL).Msg("server config loaded")
	return sc
}

func BuildDBConfig(cfg Source, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("database.master_dsn")
	if master == "" {
		return "", nil, nil, errors.New("database.master_dsn is required")
	}

	var slaves []string
	for _, s := range strings.Split(cfg.GetString("database.slave_dsns"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			slaves = append(slaves, s)
		}
	}

	opts := &dbpg.Options{
		MaxOpenConns:    intOr(cfg, "database.max_open_conns", 30),
		MaxIdleConns:    intOr(cfg, "database.max_idle_conns", 5),
		ConnMaxLifetime: durationOr(cfg, "database.conn_max_lifetime", 5*time.Minute, log),
	}
	log.Info().Int("slaves", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("database config loaded")
	return master, slaves, opts, nil
}

func BuildMigrationConfig(cfg Source) MigrationConfig {
	return MigrationConfig{
		Dir:        stringOr(cfg, "database.migrations_dir", "migrations/postgres"),
		DownOnExit: cfg.GetBool("database.migrate_down_on_exit"),
	}
}

func BuildRabbitConfig(cfg Source, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbitmq.url"),
		Exchange: stringOr(cfg, "rabbitmq.exchange", "eventhub.payments"),
		Queue:    stringOr(cfg, "rabbitmq.queue", "eventhub.payment_signals"),
	}
	if rc.Url == "" {
		return rc, errors.New("rabbitmq.url is required")
	}
	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbitmq config loaded")
	return rc, nil
}

func BuildRedisConfig(cfg Source, log *zerolog.Logger) RedisConfig {
	rc := RedisConfig{
		Addr:     stringOr(cfg, "redis.addr", "localhost:6379"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
	}
	log.Info().Str("addr", rc.Addr).Int("db", rc.DB).Msg("redis config loaded")
	return rc
}

func BuildAuthConfig(cfg Source) (auth.Config, error) {
	ac := auth.Config{
		Secret: cfg.GetString("auth.jwt_secret"),
		Issuer: cfg.GetString("auth.issuer"),
	}
	if ac.Secret == "" {
		return ac, errors.New("auth.jwt_secret is required")
	}
	return ac, nil
}

func BuildCredentialSecret(cfg Source) (string, error) {
	secret := cfg.GetString("credential.secret")
	if len(secret) < 16 {
		return "", fmt.Errorf("credential.secret must be at least 16 characters, got %d", len(secret))
	}
	return secret, nil
}

func BuildPaymentConfig(cfg Source, log *zerolog.Logger) PaymentConfig {
	pc := PaymentConfig{
		SecretKey:     cfg.GetString("payment.stripe_secret_key"),
		WebhookSecret: cfg.GetString("payment.webhook_secret"),
		Currency:      stringOr(cfg, "payment.currency", "usd"),
	}
	if pc.SecretKey == "" || pc.WebhookSecret == "" {
		log.Warn().Msg("stripe keys are not configured, payment endpoints will fail")
	}
	return pc
}

func BuildMailerConfig(cfg Source, log *zerolog.Logger) mailer.Config {
	mc := mailer.Config{
		Host:     cfg.GetString("mailer.host"),
		Port:     intOr(cfg, "mailer.port", 587),
		Username: cfg.GetString("mailer.username"),
		Password: cfg.GetString("mailer.password"),
		From:     stringOr(cfg, "mailer.from", "no-reply@eventhub.local"),
	}
	if mc.Host == "" {
		log.Info().Msg("mailer.host is empty, email notifications disabled")
	}
	return mc
}

func BuildTimeouts(cfg Source, log *zerolog.Logger) Timeouts {
	return Timeouts{
		Store:    durationOr(cfg, "timeouts.store", 5*time.Second, log),
		Publish:  durationOr(cfg, "timeouts.publish", 2*time.Second, log),
		Shutdown: durationOr(cfg, "timeouts.shutdown", 10*time.Second, log),
	}
}
