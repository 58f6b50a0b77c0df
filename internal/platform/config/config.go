package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Session  SessionConfig  `yaml:"session"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig はヘルスチェック用 gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	HealthInterval    time.Duration `yaml:"-"`
	HealthIntervalRaw string        `yaml:"health_interval"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnectTimeout     time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
	ConnectTimeoutRaw  string        `yaml:"connect_timeout"`
	ApplicationName    string        `yaml:"application_name"`
}

// TelegramConfig はボット接続に関する設定です。
type TelegramConfig struct {
	BotToken          string        `yaml:"bot_token"`
	APIEndpoint       string        `yaml:"api_endpoint"`
	PollTimeout       int           `yaml:"poll_timeout"`
	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// SessionConfig は登録会話セッションの保持に関する設定です。
type SessionConfig struct {
	IdleTTL          time.Duration `yaml:"-"`
	SweepInterval    time.Duration `yaml:"-"`
	IdleTTLRaw       string        `yaml:"idle_ttl"`
	SweepIntervalRaw string        `yaml:"sweep_interval"`
}

// DispatchConfig は新着文書通知の配信に関する設定です。
type DispatchConfig struct {
	Workers         int           `yaml:"workers"`
	MaxAttempts     int           `yaml:"max_attempts"`
	SendTimeout     time.Duration `yaml:"-"`
	RetryBackoff    time.Duration `yaml:"-"`
	SendTimeoutRaw  string        `yaml:"send_timeout"`
	RetryBackoffRaw string        `yaml:"retry_backoff"`
}

// LogConfig はロガーに関する設定です。
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	envBotToken   = "TELEGRAM_BOT_TOKEN"
	envDBPassword = "DATABASE_PASSWORD"
	envLogLevel   = "LOG_LEVEL"
)

// Load は指定されたパスから設定ファイルを読み込み、.env と環境変数で秘匿値を上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(envBotToken); ok && strings.TrimSpace(v) != "" {
		c.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v, ok := lookup(envDBPassword); ok && v != "" {
		c.Database.Password = v
	}
	if v, ok := lookup(envLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	interval, err := parseDurationDefault(c.Server.HealthIntervalRaw, 15*time.Second)
	if err != nil {
		return fmt.Errorf("config: server.health_interval: %w", err)
	}
	c.Server.HealthInterval = interval

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Telegram.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Session.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Dispatch.validateAndNormalize(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "":
		c.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not supported", c.Log.Level)
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationDefault(d.ConnMaxLifetimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationDefault(d.ConnMaxIdleTimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	connectTimeout, err := parseDurationDefault(d.ConnectTimeoutRaw, 5*time.Second)
	if err != nil {
		return fmt.Errorf("config: database.connect_timeout: %w", err)
	}
	d.ConnectTimeout = connectTimeout

	return nil
}

func (t *TelegramConfig) validateAndNormalize() error {
	if t.BotToken == "" {
		return fmt.Errorf("config: telegram.bot_token must be set (or %s)", envBotToken)
	}
	if t.PollTimeout <= 0 {
		t.PollTimeout = 30
	}
	timeout, err := parseDurationDefault(t.RequestTimeoutRaw, 10*time.Second)
	if err != nil {
		return fmt.Errorf("config: telegram.request_timeout: %w", err)
	}
	t.RequestTimeout = timeout
	return nil
}

func (s *SessionConfig) validateAndNormalize() error {
	ttl, err := parseDurationDefault(s.IdleTTLRaw, 30*time.Minute)
	if err != nil {
		return fmt.Errorf("config: session.idle_ttl: %w", err)
	}
	s.IdleTTL = ttl

	sweep, err := parseDurationDefault(s.SweepIntervalRaw, time.Minute)
	if err != nil {
		return fmt.Errorf("config: session.sweep_interval: %w", err)
	}
	s.SweepInterval = sweep
	return nil
}

func (d *DispatchConfig) validateAndNormalize() error {
	if d.Workers <= 0 {
		d.Workers = 8
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = 1
	}
	if d.MaxAttempts > 5 {
		return fmt.Errorf("config: dispatch.max_attempts must be at most 5, got %d", d.MaxAttempts)
	}

	timeout, err := parseDurationDefault(d.SendTimeoutRaw, 10*time.Second)
	if err != nil {
		return fmt.Errorf("config: dispatch.send_timeout: %w", err)
	}
	d.SendTimeout = timeout

	backoff, err := parseDurationDefault(d.RetryBackoffRaw, time.Second)
	if err != nil {
		return fmt.Errorf("config: dispatch.retry_backoff: %w", err)
	}
	d.RetryBackoff = backoff
	return nil
}

func parseDurationDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", raw)
	}
	return d, nil
}

// DSN は pgx および golang-migrate 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
