package ports

import (
	"context"
	"time"

	"PaperScanner/internal/domain"
)

// FeedFetcher pulls one feed and reports its outcome. Transport failures are
// returned as errors; the caller turns them into a FetchFailure outcome.
type FeedFetcher interface {
	Fetch(ctx context.Context, feed domain.FeedSource) (domain.FetchOutcome, error)
}

// ContentFetcher downloads the raw document behind a paper's source URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// MetadataResolver fills title, authors and abstract for a paper known only by URL.
type MetadataResolver interface {
	Resolve(ctx context.Context, sourceURL string) (domain.Candidate, error)
}

// AssessmentRequest is the input to the assessment service.
type AssessmentRequest struct {
	PaperID  string
	Title    string
	Authors  string
	Abstract string
	Content  []byte
}

// Assessor scores and summarizes a paper from its full content. Errors must
// wrap domain.ErrAssessmentTransient or domain.ErrAssessmentPermanent.
type Assessor interface {
	Assess(ctx context.Context, req AssessmentRequest) (domain.Assessment, error)
}

// AbstractAssessor is implemented by assessors that can work from the abstract alone.
type AbstractAssessor interface {
	AssessAbstract(ctx context.Context, req AssessmentRequest) (domain.Assessment, error)
}

// ChannelSender delivers one message to one target. It never retries.
type ChannelSender interface {
	Send(ctx context.Context, target string, msg domain.Message) error
}

// MessageFormatter renders a paper for a channel type.
type MessageFormatter interface {
	Format(paper domain.Paper, channel domain.ChannelType) (domain.Message, error)
}

// PaperRepository persists processed papers. InsertPaper must be an atomic
// conditional insert returning domain.ErrAlreadyProcessed on conflict.
type PaperRepository interface {
	ProcessedIDs(ctx context.Context, ids []string) (map[string]bool, error)
	InsertPaper(ctx context.Context, paper domain.Paper) error
	UpsertPaper(ctx context.Context, paper domain.Paper) error
	GetPaper(ctx context.Context, id string) (domain.Paper, error)
	ListPapers(ctx context.Context, filter PaperFilter) ([]domain.Paper, error)
}

// FeedStateRepository persists the health counters of each feed.
type FeedStateRepository interface {
	LoadFeedState(ctx context.Context, feed domain.FeedSource) (domain.FeedSource, error)
	SaveFeedState(ctx context.Context, feed domain.FeedSource) error
}

// LedgerRepository is the append-only store of distribution attempts.
type LedgerRepository interface {
	HasSuccess(ctx context.Context, key domain.AttemptKey) (bool, error)
	AppendAttempt(ctx context.Context, attempt domain.DistributionAttempt) (domain.DistributionAttempt, error)
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]domain.DistributionAttempt, error)
}

// PaperFilter narrows paper queries. Zero values mean "no bound".
type PaperFilter struct {
	From     time.Time
	To       time.Time
	MinScore int
	MaxScore int
	Keyword  string
	Limit    int
}

// AttemptFilter narrows ledger queries.
type AttemptFilter struct {
	PaperID     string
	ChannelType domain.ChannelType
	Success     *bool
	From        time.Time
	To          time.Time
	Limit       int
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
