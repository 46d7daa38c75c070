package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/seismolink/siteapi/tlmt"
	"github.com/seismolink/siteapi/tlmt/gonoop"
	"github.com/seismolink/siteapi/tlmt/goposthog"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

// Config is the process configuration shared by all commands
type Config struct {
	Addr        string
	DatabaseURI string
	DBName      string

	// Mail
	SMTPHost   string
	SMTPPort   int
	EmailUser  string
	EmailPass  string
	EmailFrom  string
	AdminEmail string
	SiteName   string
	MailQueue  bool

	// Admin login
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	TokenTTL          time.Duration

	// Redis backs the cache, limiter, lockout store and mail queue
	RedisURL     string
	DisableCache bool

	RabbitMQURL string

	PosthogKey       string
	PosthogHost      string
	DisableTelemetry bool

	JobsFile     string
	CORSOrigins  []string
	TrustProxy   bool
	SecureCookie bool
	Timezone     string

	WorkerConcurrency int
	Debug             bool
}

// Keys read from the environment. Flags use the same names with dashes.
const (
	KeyPort              = "port"
	KeyMongoURI          = "mongodb_uri"
	KeyDBName            = "db_name"
	KeySMTPHost          = "smtp_host"
	KeySMTPPort          = "smtp_port"
	KeyEmailUser         = "email_user"
	KeyEmailPass         = "email_pass"
	KeyEmailFrom         = "email_from"
	KeyAdminEmail        = "admin_email"
	KeySiteName          = "site_name"
	KeyMailQueue         = "mail_queue"
	KeyAdminPassword     = "admin_password"
	KeyAdminPasswordHash = "admin_password_hash"
	KeyJWTSecret         = "jwt_secret"
	KeyTokenTTL          = "token_ttl"
	KeyRedisURL          = "redis_url"
	KeyDisableCache      = "disable_cache"
	KeyRabbitMQURL       = "rabbitmq_url"
	KeyPosthogKey        = "posthog_key"
	KeyPosthogHost       = "posthog_host"
	KeyDisableTelemetry  = "disable_telemetry"
	KeyJobsFile          = "jobs_file"
	KeyCORSOrigins       = "cors_origins"
	KeyTrustProxy        = "trust_proxy"
	KeySecureCookie      = "secure_cookie"
	KeyTimezone          = "timezone"
	KeyWorkerConcurrency = "worker_concurrency"
	KeyDebug             = "debug"
)

// NewViper returns a viper instance reading the environment with the
// built-in defaults applied
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyPort, "5000")
	v.SetDefault(KeyMongoURI, "siteapi.db")
	v.SetDefault(KeySMTPHost, "smtp.gmail.com")
	v.SetDefault(KeySMTPPort, 587)
	v.SetDefault(KeySiteName, "Seismolink")
	v.SetDefault(KeyTokenTTL, 24*time.Hour)
	v.SetDefault(KeyPosthogHost, "https://eu.i.posthog.com")
	v.SetDefault(KeyCORSOrigins, "*")
	v.SetDefault(KeyTimezone, "UTC")
	v.SetDefault(KeyWorkerConcurrency, 2)

	return v
}

// BindFlags binds every flag in fs to the key of the same name, so a flag
// set on the command line wins over the environment
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error

	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	return err
}

// LoadConfig reads the configuration from v
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Config{
		DatabaseURI:       v.GetString(KeyMongoURI),
		DBName:            v.GetString(KeyDBName),
		SMTPHost:          v.GetString(KeySMTPHost),
		SMTPPort:          v.GetInt(KeySMTPPort),
		EmailUser:         v.GetString(KeyEmailUser),
		EmailPass:         v.GetString(KeyEmailPass),
		EmailFrom:         v.GetString(KeyEmailFrom),
		AdminEmail:        v.GetString(KeyAdminEmail),
		SiteName:          v.GetString(KeySiteName),
		MailQueue:         v.GetBool(KeyMailQueue),
		AdminPassword:     v.GetString(KeyAdminPassword),
		AdminPasswordHash: v.GetString(KeyAdminPasswordHash),
		JWTSecret:         v.GetString(KeyJWTSecret),
		TokenTTL:          v.GetDuration(KeyTokenTTL),
		RedisURL:          v.GetString(KeyRedisURL),
		DisableCache:      v.GetBool(KeyDisableCache),
		RabbitMQURL:       v.GetString(KeyRabbitMQURL),
		PosthogKey:        v.GetString(KeyPosthogKey),
		PosthogHost:       v.GetString(KeyPosthogHost),
		DisableTelemetry:  v.GetBool(KeyDisableTelemetry),
		JobsFile:          v.GetString(KeyJobsFile),
		TrustProxy:        v.GetBool(KeyTrustProxy),
		SecureCookie:      v.GetBool(KeySecureCookie),
		Timezone:          v.GetString(KeyTimezone),
		WorkerConcurrency: v.GetInt(KeyWorkerConcurrency),
		Debug:             v.GetBool(KeyDebug),
	}

	port := strings.TrimPrefix(v.GetString(KeyPort), ":")
	if port == "" {
		return nil, fmt.Errorf("%w: port is empty", ErrInvalidConfig)
	}
	cfg.Addr = ":" + port

	for _, origin := range strings.Split(v.GetString(KeyCORSOrigins), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.EmailUser
	}

	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("%w: smtp port %d", ErrInvalidConfig, cfg.SMTPPort)
	}

	if cfg.MailQueue && cfg.RedisURL == "" {
		return nil, fmt.Errorf("%w: mail queue requires REDIS_URL", ErrInvalidConfig)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the analytics timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}

	return loc, nil
}

// IsMongo reports whether DatabaseURI points at MongoDB rather than a SQLite file
func (c *Config) IsMongo() bool {
	return strings.HasPrefix(c.DatabaseURI, "mongodb://") || strings.HasPrefix(c.DatabaseURI, "mongodb+srv://")
}

// SMTPConfigured reports whether outgoing mail can be delivered
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.EmailUser != "" && c.EmailPass != ""
}

// NewTelemetry returns the PostHog client when a key is configured, a no-op
// otherwise
func NewTelemetry(cfg *Config, logger *zap.Logger) tlmt.Telemetry {
	if cfg.DisableTelemetry || cfg.PosthogKey == "" {
		return gonoop.New()
	}

	val, err := goposthog.New(cfg.PosthogKey, cfg.PosthogHost)
	if err != nil || val == nil {
		logger.Warn("telemetry disabled", zap.Error(err))
		return gonoop.New()
	}

	return val
}

func wrapText(text string, width int) []string {
	var lines []string

	currentLine := ""
	currentWidth := 0

	for _, r := range text {
		runeWidth := runewidth.RuneWidth(r)
		if currentWidth+runeWidth > width {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = runeWidth
		} else {
			currentLine += string(r)
			currentWidth += runeWidth
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func banner(messages []string, width int) string {
	if width <= 0 {
		var err error

		width, _, err = term.GetSize(int(os.Stderr.Fd()))
		if err != nil {
			width = 60
		}
	}

	if width < 20 {
		width = 20
	}

	contentWidth := width - 4

	var wrappedLines []string
	for _, message := range messages {
		wrappedLines = append(wrappedLines, wrapText(message, contentWidth)...)
	}

	var builder strings.Builder

	builder.WriteString("╔" + strings.Repeat("═", width-2) + "╗\n")

	for _, line := range wrappedLines {
		paddingRight := contentWidth - runewidth.StringWidth(line)
		if paddingRight < 0 {
			paddingRight = 0
		}

		builder.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", paddingRight)))
	}

	builder.WriteString("╚" + strings.Repeat("═", width-2) + "╝\n")

	return builder.String()
}

// Banner prints the startup banner to stderr when it is a terminal
func Banner(siteName string) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}

	messages := []string{
		"🌏 " + siteName + " site API",
		fmt.Sprintf("v%s (%s, %s)", Version, Commit, BuildDate),
	}

	fmt.Fprintln(os.Stderr, banner(messages, 0))
}
