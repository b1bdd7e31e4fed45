package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/retry"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "PAPER_SCANNER_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	anthropicKeyEnv = "ANTHROPIC_API_KEY"
	openAIKeyEnv    = "OPENAI_API_KEY"
	serviceKeyEnv   = "ASSESSMENT_API_KEY"
	telegramEnv     = "TELEGRAM_BOT_TOKEN"
	slackTokenEnv   = "SLACK_TOKEN"
	smtpPasswordEnv = "SMTP_PASSWORD"
	logLevelEnv     = "LOG_LEVEL"
)

// Assessment providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderService   = "service"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Health     HealthConfig     `yaml:"health"`
	Retry      RetryConfig      `yaml:"retry"`
	Processing ProcessingConfig `yaml:"processing"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Feeds      []FeedConfig     `yaml:"feeds"`
	Channels   []ChannelConfig  `yaml:"channels"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Slack      SlackConfig      `yaml:"slack"`
	Email      EmailConfig      `yaml:"email"`

	// timezone errors found while binding, reported by Validate
	bindErrs []string
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the storage driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when cycles run. CronExpression wins over PollInterval.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	PollInterval   time.Duration  `yaml:"pollInterval"`
	Timezone       string         `yaml:"timezone"`
	CycleTimeout   time.Duration  `yaml:"cycleTimeout"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// HealthConfig tunes feed health classification.
type HealthConfig struct {
	EmptyThreshold int `yaml:"emptyThreshold"`
}

// RetryConfig is the shared retry policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

// Policy converts the settings to a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{MaxAttempts: r.MaxAttempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay}
}

// ProcessingConfig bounds the work of one cycle.
type ProcessingConfig struct {
	Workers          int           `yaml:"workers"`
	MaxPapersPerFeed int           `yaml:"maxPapersPerFeed"`
	FeedDelay        time.Duration `yaml:"feedDelay"`
	HTTPTimeout      time.Duration `yaml:"httpTimeout"`
}

// AssessmentConfig defines how to contact the assessment service.
type AssessmentConfig struct {
	Provider        string `yaml:"provider"`
	Endpoint        string `yaml:"endpoint"`
	APIKey          string `yaml:"apiKey"`
	Model           string `yaml:"model"`
	MaxTokens       int    `yaml:"maxTokens"`
	SystemPrompt    string `yaml:"systemPrompt"`
	Topic           string `yaml:"topic"`
	MaxContentChars int    `yaml:"maxContentChars"`
}

// FeedConfig describes one monitored feed.
type FeedConfig struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	Kind       string   `yaml:"kind"`
	QuietDays  []string `yaml:"quietDays"`
	QuietDates []string `yaml:"quietDates"`
	Timezone   string   `yaml:"timezone"`
	MaxPapers  int      `yaml:"maxPapers"`

	location *time.Location
}

// ChannelConfig describes one notification channel. Enabled defaults to true.
type ChannelConfig struct {
	Type         string   `yaml:"type"`
	Enabled      *bool    `yaml:"enabled"`
	MinRelevance int      `yaml:"minRelevance"`
	Targets      []string `yaml:"targets"`
}

// IsEnabled reports whether the channel is switched on.
func (c ChannelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken    string `yaml:"botToken"`
	APIEndpoint string `yaml:"apiEndpoint"`
}

// SlackConfig holds the Web API credentials.
type SlackConfig struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"apiUrl"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	SMTPHost string `yaml:"smtpHost"`
	SMTPPort int    `yaml:"smtpPort"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads YAML configuration from path, or from PAPER_SCANNER_CONFIG when
// path is empty, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(configPathEnv)
	}

	var raw []byte
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := defaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	cfg.applyDefaults()
	cfg.bindTimezone()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	keyEnv := map[string]string{
		ProviderAnthropic: anthropicKeyEnv,
		ProviderOpenAI:    openAIKeyEnv,
		ProviderService:   serviceKeyEnv,
	}[c.Assessment.Provider]
	if keyEnv != "" {
		if v := os.Getenv(keyEnv); v != "" {
			c.Assessment.APIKey = v
		}
	}

	if v := os.Getenv(telegramEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(slackTokenEnv); v != "" {
		c.Slack.Token = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Email.Password = v
	}
}

func (c *Config) bindTimezone() {
	c.bindErrs = nil

	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.bindErrs = append(c.bindErrs, fmt.Sprintf("scheduler.timezone: unknown zone %q", tz))
		loc = time.UTC
	}
	c.Scheduler.location = loc

	for i := range c.Feeds {
		f := &c.Feeds[i]
		f.location = loc
		if f.Timezone == "" {
			continue
		}
		feedLoc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			c.bindErrs = append(c.bindErrs, fmt.Sprintf("feeds[%d].timezone: unknown zone %q", i, f.Timezone))
			continue
		}
		f.location = feedLoc
	}
}

func (c *Config) applyDefaults() {
	for i := range c.Feeds {
		if c.Feeds[i].Kind == "" {
			c.Feeds[i].Kind = string(domain.FeedKindRSS)
		}
		if c.Feeds[i].Name == "" {
			c.Feeds[i].Name = c.Feeds[i].URL
		}
	}
	for i := range c.Channels {
		if c.Channels[i].MinRelevance == 0 {
			c.Channels[i].MinRelevance = domain.MinRelevance
		}
	}
}

// Validate reports every problem as one *ValidationError.
func (c Config) Validate() error {
	problems := append([]string(nil), c.bindErrs...)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		add("logging.format: unknown format %q", c.Logging.Format)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		add("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		add("database.dsn: required")
	}

	if c.Scheduler.CronExpression == "" && c.Scheduler.PollInterval <= 0 {
		add("scheduler: cronExpression or a positive pollInterval is required")
	}
	if c.Scheduler.CycleTimeout < 0 {
		add("scheduler.cycleTimeout: must not be negative")
	}

	if c.Health.EmptyThreshold < 1 {
		add("health.emptyThreshold: must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		add("retry.maxAttempts: must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 {
		add("retry.baseDelay: must be positive")
	}
	if c.Processing.Workers < 1 {
		add("processing.workers: must be at least 1")
	}
	if c.Processing.MaxPapersPerFeed < 0 {
		add("processing.maxPapersPerFeed: must not be negative")
	}

	switch c.Assessment.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	case ProviderService:
		if c.Assessment.Endpoint == "" {
			add("assessment.endpoint: required for provider %q", ProviderService)
		}
	default:
		add("assessment.provider: unknown provider %q", c.Assessment.Provider)
	}

	seenFeeds := map[string]bool{}
	for i, f := range c.Feeds {
		if u, err := url.Parse(f.URL); err != nil || !u.IsAbs() || u.Host == "" {
			add("feeds[%d].url: %q is not an absolute URL", i, f.URL)
		}
		if seenFeeds[f.URL] {
			add("feeds[%d].url: duplicate feed %q", i, f.URL)
		}
		seenFeeds[f.URL] = true
		switch domain.FeedKind(f.Kind) {
		case domain.FeedKindRSS, domain.FeedKindArxivListing:
		default:
			add("feeds[%d].kind: unknown kind %q", i, f.Kind)
		}
		for _, d := range f.QuietDays {
			if _, ok := domain.ParseWeekday(d); !ok {
				add("feeds[%d].quietDays: unknown day %q", i, d)
			}
		}
		for _, d := range f.QuietDates {
			if _, err := time.Parse(time.DateOnly, d); err != nil {
				add("feeds[%d].quietDates: %q is not YYYY-MM-DD", i, d)
			}
		}
		if f.MaxPapers < 0 {
			add("feeds[%d].maxPapers: must not be negative", i)
		}
	}

	seenChannels := map[string]bool{}
	for i, ch := range c.Channels {
		if !domain.KnownChannel(domain.ChannelType(ch.Type)) {
			add("channels[%d].type: unknown channel %q", i, ch.Type)
			continue
		}
		if seenChannels[ch.Type] {
			add("channels[%d].type: duplicate channel %q", i, ch.Type)
		}
		seenChannels[ch.Type] = true
		if ch.MinRelevance < domain.MinRelevance || ch.MinRelevance > domain.MaxRelevance {
			add("channels[%d].minRelevance: %d outside %d-%d", i, ch.MinRelevance, domain.MinRelevance, domain.MaxRelevance)
		}
		if !ch.IsEnabled() {
			continue
		}
		if len(ch.Targets) == 0 {
			add("channels[%d].targets: enabled channel needs at least one target", i)
		}
		switch domain.ChannelType(ch.Type) {
		case domain.ChannelTelegram:
			if c.Telegram.BotToken == "" {
				add("telegram.botToken: required by enabled telegram channel")
			}
		case domain.ChannelSlack:
			if c.Slack.Token == "" {
				add("slack.token: required by enabled slack channel")
			}
		case domain.ChannelEmail:
			if c.Email.SMTPHost == "" || c.Email.From == "" {
				add("email.smtpHost and email.from: required by enabled email channel")
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// RequireFeeds fails when no feed is configured; cycle commands need one.
func (c Config) RequireFeeds() error {
	if len(c.Feeds) == 0 {
		return &ValidationError{Problems: []string{"feeds: at least one feed is required"}}
	}
	return nil
}

// FeedSources converts the feed list to domain values.
func (c Config) FeedSources() []domain.FeedSource {
	out := make([]domain.FeedSource, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		quiet := domain.QuietSchedule{Dates: append([]string(nil), f.QuietDates...), Location: f.location}
		if quiet.Location == nil {
			quiet.Location = c.Scheduler.Location()
		}
		for _, d := range f.QuietDays {
			if wd, ok := domain.ParseWeekday(d); ok {
				quiet.Weekdays = append(quiet.Weekdays, wd)
			}
		}
		out = append(out, domain.FeedSource{
			ID:        f.URL,
			Name:      f.Name,
			Kind:      domain.FeedKind(f.Kind),
			Quiet:     quiet,
			MaxPapers: f.MaxPapers,
		})
	}
	return out
}

// ChannelConfigs converts the channel list to domain values.
func (c Config) ChannelConfigs() []domain.ChannelConfig {
	out := make([]domain.ChannelConfig, 0, len(c.Channels))
	for _, ch := range c.Channels {
		out = append(out, domain.ChannelConfig{
			Type:         domain.ChannelType(ch.Type),
			Enabled:      ch.IsEnabled(),
			MinRelevance: ch.MinRelevance,
			Targets:      append([]string(nil), ch.Targets...),
		})
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "./data/papers.db"},
		Scheduler: SchedulerConfig{
			PollInterval: 6 * time.Hour,
			Timezone:     defaultTimezone,
			CycleTimeout: 30 * time.Minute,
			RunOnStart:   true,
		},
		Health: HealthConfig{EmptyThreshold: domain.DefaultEmptyThreshold},
		Retry:  RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 2 * time.Minute},
		Processing: ProcessingConfig{
			Workers:          2,
			MaxPapersPerFeed: 10,
			FeedDelay:        5 * time.Second,
			HTTPTimeout:      20 * time.Second,
		},
		Assessment: AssessmentConfig{
			Provider:        ProviderAnthropic,
			MaxTokens:       2048,
			Topic:           "search, ranking and recommendation systems",
			MaxContentChars: 60000,
		},
	}
}
