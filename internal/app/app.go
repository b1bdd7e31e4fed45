package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"PaperScanner/internal/config"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/format"
	"PaperScanner/internal/infrastructure/content"
	"PaperScanner/internal/infrastructure/email"
	"PaperScanner/internal/infrastructure/feed"
	"PaperScanner/internal/infrastructure/llm"
	"PaperScanner/internal/infrastructure/ml"
	"PaperScanner/internal/infrastructure/parser"
	"PaperScanner/internal/infrastructure/scheduler"
	"PaperScanner/internal/infrastructure/slack"
	"PaperScanner/internal/infrastructure/storage"
	"PaperScanner/internal/infrastructure/telegram"
	"PaperScanner/internal/logging"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/scanner"
	"PaperScanner/internal/usecase"
)

// assessmentTimeout bounds one call to a model provider.
const assessmentTimeout = 2 * time.Minute

// Adapters are the driven ports the application runs against.
type Adapters struct {
	Fetcher   ports.FeedFetcher
	Content   ports.ContentFetcher
	Resolver  ports.MetadataResolver
	Assessor  ports.Assessor
	Formatter ports.MessageFormatter
	Senders   map[domain.ChannelType]ports.ChannelSender
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	repo        *storage.Repository
	resolver    ports.MetadataResolver
	health      *usecase.HealthTracker
	dedup       *usecase.DedupStore
	processor   *usecase.Processor
	distributor *usecase.Distributor
	cycle       *usecase.CycleRunner
	feeds       []domain.FeedSource
	channels    []domain.ChannelConfig
	now         func() time.Time
}

// Open connects storage and builds the production adapters.
func Open(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapters, err := DefaultAdapters(cfg, baseLogger)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return New(cfg, repo, adapters, baseLogger), nil
}

// DefaultAdapters builds HTTP, model and channel adapters from configuration.
func DefaultAdapters(cfg config.Config, baseLogger *slog.Logger) (Adapters, error) {
	httpClient := &http.Client{Timeout: cfg.Processing.HTTPTimeout}

	registry := scanner.NewRegistry(
		feed.NewRSSFetcher(httpClient, baseLogger.With("component", "scanner.rss")),
		parser.NewArxivScanner(httpClient, baseLogger.With("component", "scanner.arxiv")),
	)
	source := parser.NewStrategySource(registry, baseLogger.With("component", "source"))
	fetcher := content.NewHTTPFetcher(httpClient)

	assessor, err := newAssessor(cfg.Assessment)
	if err != nil {
		return Adapters{}, err
	}
	if cfg.Assessment.APIKey == "" && cfg.Assessment.Provider != config.ProviderService {
		baseLogger.Warn("assessment api key is empty; processing will fail", "provider", cfg.Assessment.Provider)
	}

	return Adapters{
		Fetcher:   source,
		Content:   fetcher,
		Resolver:  fetcher,
		Assessor:  assessor,
		Formatter: format.New(),
		Senders:   newSenders(cfg),
	}, nil
}

func newAssessor(cfg config.AssessmentConfig) (ports.Assessor, error) {
	client := &http.Client{Timeout: assessmentTimeout}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicAssessor(cfg, client), nil
	case config.ProviderOpenAI:
		return llm.NewChatGPTClient(cfg, client), nil
	case config.ProviderService:
		return ml.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Topic, cfg.MaxContentChars, client), nil
	default:
		return nil, fmt.Errorf("unknown assessment provider %q", cfg.Provider)
	}
}

// newSenders registers a sender for every channel family with credentials.
func newSenders(cfg config.Config) map[domain.ChannelType]ports.ChannelSender {
	senders := map[domain.ChannelType]ports.ChannelSender{}
	client := &http.Client{Timeout: cfg.Processing.HTTPTimeout}
	if cfg.Telegram.BotToken != "" {
		senders[domain.ChannelTelegram] = telegram.NewSender(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, client)
	}
	if cfg.Slack.Token != "" {
		senders[domain.ChannelSlack] = slack.NewSender(cfg.Slack.Token, cfg.Slack.APIURL, client)
	}
	if cfg.Email.SMTPHost != "" {
		senders[domain.ChannelEmail] = email.NewSender(email.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
	}
	return senders
}

// New wires use cases over an opened repository and the given adapters.
func New(cfg config.Config, repo *storage.Repository, adapters Adapters, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.Discard()
	}
	policy := cfg.Retry.Policy()

	dedup := usecase.NewDedupStore(repo)
	health := usecase.NewHealthTracker(repo, cfg.Health.EmptyThreshold, baseLogger.With("component", "health"))
	processor := usecase.NewProcessor(usecase.ProcessorDeps{
		Content:  adapters.Content,
		Assessor: adapters.Assessor,
		Store:    dedup,
		Retry:    policy,
		Logger:   baseLogger.With("component", "processor"),
	})
	distributor := usecase.NewDistributor(usecase.DistributorDeps{
		Ledger:    repo,
		Formatter: adapters.Formatter,
		Senders:   adapters.Senders,
		Retry:     policy,
		Logger:    baseLogger.With("component", "distributor"),
	})
	cycle := usecase.NewCycleRunner(usecase.CycleDeps{
		Fetcher:     adapters.Fetcher,
		Health:      health,
		Dedup:       dedup,
		Processor:   processor,
		Distributor: distributor,
		Retry:       policy,
		Workers:     cfg.Processing.Workers,
		MaxPerFeed:  cfg.Processing.MaxPapersPerFeed,
		FeedDelay:   cfg.Processing.FeedDelay,
		Logger:      baseLogger.With("component", "cycle"),
	})

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		repo:        repo,
		resolver:    adapters.Resolver,
		health:      health,
		dedup:       dedup,
		processor:   processor,
		distributor: distributor,
		cycle:       cycle,
		feeds:       cfg.FeedSources(),
		channels:    cfg.ChannelConfigs(),
		now:         time.Now,
	}
}

// Close releases storage.
func (a *Application) Close() error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Close()
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.cfg.RequireFeeds(); err != nil {
		return err
	}

	driver, err := scheduler.NewCronScheduler(scheduler.Options{
		Expression: a.cfg.Scheduler.CronExpression,
		Interval:   a.cfg.Scheduler.PollInterval,
		Location:   a.cfg.Scheduler.Location(),
		RunOnStart: a.cfg.Scheduler.RunOnStart,
		Logger:     a.logger.With("component", "scheduler"),
	})
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	sched := usecase.NewScheduler(driver, a.runScheduledCycle, a.cfg.Scheduler.CycleTimeout, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("scheduler stopped")
	return nil
}

func (a *Application) runScheduledCycle(ctx context.Context, trigger time.Time) usecase.CycleReport {
	a.logger.Info("cycle triggered", "at", trigger)
	report := a.cycle.RunCycle(ctx, a.feeds, a.channels)
	a.logReport(report)
	return report
}

func (a *Application) logReport(report usecase.CycleReport) {
	for _, broken := range report.BrokenFeeds() {
		a.logger.Warn("feed broken", "feed", broken.FeedID, "reason", broken.Reason)
	}
	for _, f := range report.Failures {
		a.logger.Warn("paper failed", "paper", f.PaperID, "feed", f.FeedID, "stage", f.Stage, "error", f.Err)
	}
	a.logger.Info("cycle finished", "summary", report.String())
}
