package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/retry"
)

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

type memoryPapers struct {
	mu     sync.Mutex
	papers map[string]domain.Paper
	writes int
}

var _ ports.PaperRepository = (*memoryPapers)(nil)

func newMemoryPapers(papers ...domain.Paper) *memoryPapers {
	m := &memoryPapers{papers: map[string]domain.Paper{}}
	for _, p := range papers {
		m.papers[p.ID] = p
	}
	return m
}

func (m *memoryPapers) ProcessedIDs(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.papers[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memoryPapers) InsertPaper(_ context.Context, paper domain.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.papers[paper.ID]; ok {
		return domain.ErrAlreadyProcessed
	}
	m.papers[paper.ID] = paper
	m.writes++
	return nil
}

func (m *memoryPapers) UpsertPaper(_ context.Context, paper domain.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.papers[paper.ID] = paper
	m.writes++
	return nil
}

func (m *memoryPapers) GetPaper(_ context.Context, id string) (domain.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return domain.Paper{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memoryPapers) ListPapers(_ context.Context, filter ports.PaperFilter) ([]domain.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Paper
	for _, p := range m.papers {
		if filter.MinScore > 0 && p.RelevanceScore < filter.MinScore {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryPapers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.papers)
}

type memoryFeedStates struct {
	mu     sync.Mutex
	states map[string]domain.FeedSource
}

func newMemoryFeedStates() *memoryFeedStates {
	return &memoryFeedStates{states: map[string]domain.FeedSource{}}
}

func (m *memoryFeedStates) LoadFeedState(_ context.Context, feed domain.FeedSource) (domain.FeedSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.states[feed.ID]
	if !ok {
		return feed, nil
	}
	feed.ConsecutiveEmptyFetches = stored.ConsecutiveEmptyFetches
	feed.LastSuccessfulFetch = stored.LastSuccessfulFetch
	feed.LastEntryCount = stored.LastEntryCount
	feed.LastFetchAt = stored.LastFetchAt
	feed.LastFetchFailed = stored.LastFetchFailed
	feed.Declared = stored.Declared
	return feed, nil
}

func (m *memoryFeedStates) SaveFeedState(_ context.Context, feed domain.FeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[feed.ID] = feed
	return nil
}

type memoryLedger struct {
	mu   sync.Mutex
	rows []domain.DistributionAttempt
}

var _ ports.LedgerRepository = (*memoryLedger)(nil)

func (m *memoryLedger) HasSuccess(_ context.Context, key domain.AttemptKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Success && r.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) AppendAttempt(_ context.Context, attempt domain.DistributionAttempt) (domain.DistributionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, attempt)
	return attempt, nil
}

func (m *memoryLedger) ListAttempts(_ context.Context, filter ports.AttemptFilter) ([]domain.DistributionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DistributionAttempt
	for _, r := range m.rows {
		if filter.PaperID != "" && r.PaperID != filter.PaperID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryLedger) all() []domain.DistributionAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DistributionAttempt(nil), m.rows...)
}

// scriptedSender fails with the queued errors before succeeding.
type scriptedSender struct {
	mu    sync.Mutex
	errs  []error
	sent  []string
	calls int
}

func (s *scriptedSender) Send(_ context.Context, target string, _ domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.sent = append(s.sent, target)
	return nil
}

func (s *scriptedSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticFormatter struct{}

func (staticFormatter) Format(p domain.Paper, channel domain.ChannelType) (domain.Message, error) {
	return domain.Message{Subject: p.Title, Text: string(channel) + ": " + p.Title}, nil
}

type stubContent struct {
	mu    sync.Mutex
	fail  map[string]int // url -> remaining failures; negative fails forever
	calls map[string]int
}

func newStubContent() *stubContent {
	return &stubContent{fail: map[string]int{}, calls: map[string]int{}}
}

func (s *stubContent) Fetch(_ context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++
	if n := s.fail[url]; n != 0 {
		if n > 0 {
			s.fail[url] = n - 1
		}
		return nil, domain.ErrTransport
	}
	return []byte("<html><body>content of " + url + "</body></html>"), nil
}

// stubAssessor scores papers by ID; errs queue per-paper failures.
type stubAssessor struct {
	mu     sync.Mutex
	scores map[string]int
	errs   map[string][]error
	calls  map[string]int
}

func newStubAssessor() *stubAssessor {
	return &stubAssessor{scores: map[string]int{}, errs: map[string][]error{}, calls: map[string]int{}}
}

func (s *stubAssessor) Assess(_ context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.PaperID]++
	if queue := s.errs[req.PaperID]; len(queue) > 0 {
		s.errs[req.PaperID] = queue[1:]
		if queue[0] != nil {
			return domain.Assessment{}, queue[0]
		}
	}
	score, ok := s.scores[req.PaperID]
	if !ok {
		score = 7
	}
	return domain.Assessment{RelevanceScore: score, Summary: "summary of " + req.Title, KeyFindings: "findings", Applications: "applications"}, nil
}

func (s *stubAssessor) callsFor(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

type abstractAssessor struct {
	*stubAssessor
	abstractCalls int
}

func (a *abstractAssessor) AssessAbstract(ctx context.Context, req ports.AssessmentRequest) (domain.Assessment, error) {
	a.mu.Lock()
	a.abstractCalls++
	a.mu.Unlock()
	return a.Assess(ctx, req)
}

type stubFetcher struct {
	mu       sync.Mutex
	outcomes map[string]domain.FetchOutcome
	errs     map[string]error
	calls    map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{outcomes: map[string]domain.FetchOutcome{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (s *stubFetcher) Fetch(_ context.Context, feed domain.FeedSource) (domain.FetchOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[feed.ID]++
	if err := s.errs[feed.ID]; err != nil {
		return domain.FetchOutcome{}, err
	}
	if out, ok := s.outcomes[feed.ID]; ok {
		return out, nil
	}
	return domain.EmptySuccess(), nil
}

func candidate(id string) domain.Candidate {
	return domain.Candidate{
		ID:        id,
		SourceURL: "https://arxiv.org/abs/" + id,
		Title:     "Paper " + id,
		Authors:   "A. Author",
		Abstract:  "Abstract of " + id,
	}
}

func storedPaper(id string, score int) domain.Paper {
	return domain.NewPaper(candidate(id), domain.Assessment{RelevanceScore: score, Summary: "s"}, false, time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC))
}

var errBoom = errors.New("boom")
