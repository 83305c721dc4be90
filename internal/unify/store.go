package unify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unifyiq/unifyiq/internal/metrics"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/normalize"
)

// Source supplies the two raw record sets.
type Source interface {
	Accounts(ctx context.Context) ([]models.RawRecord, error)
	Issues(ctx context.Context) ([]models.RawRecord, error)
}

// Store holds the served dataset. Reload is the only writer; Snapshot readers never block.
type Store struct {
	logger  *slog.Logger
	source  Source
	opts    Options
	now     func() time.Time
	mu      sync.Mutex
	current atomic.Pointer[models.Dataset]
}

// NewStore constructs a dataset store over source.
func NewStore(logger *slog.Logger, source Source, opts Options) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		source: source,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current dataset, or nil before the first successful Reload.
func (s *Store) Snapshot() *models.Dataset {
	return s.current.Load()
}

// Reload fetches both sources, rebuilds the dataset and swaps it in. On failure the
// previous snapshot keeps serving.
func (s *Store) Reload(ctx context.Context) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.build(ctx)
	metrics.ObserveReload(err)
	if err != nil {
		s.logger.Error("dataset reload failed", slog.Any("error", err))
		return nil, err
	}

	s.current.Store(ds)
	metrics.SetDatasetSize(len(ds.Accounts), ds.IssueCount(), len(ds.Orphans), len(ds.Rejections))
	s.logger.Info("dataset loaded",
		slog.Int("accounts", len(ds.Accounts)),
		slog.Int("issues", ds.IssueCount()),
		slog.Int("orphans", len(ds.Orphans)),
		slog.Int("rejections", len(ds.Rejections)),
	)
	return ds, nil
}

func (s *Store) build(ctx context.Context) (*models.Dataset, error) {
	if s.source == nil {
		return nil, fmt.Errorf("dataset source not configured")
	}

	var rawAccounts, rawIssues []models.RawRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawAccounts, err = s.source.Accounts(gctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rawIssues, err = s.source.Issues(gctx)
		if err != nil {
			return fmt.Errorf("load issues: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	accounts, accRejected := normalize.Accounts(rawAccounts)
	issues, issueRejected := normalize.Issues(rawIssues)
	rejections := append(append([]models.Rejection(nil), accRejected...), issueRejected...)
	for _, r := range rejections {
		s.logger.Debug("record rejected", slog.String("source", r.Source), slog.Int("index", r.Index), slog.String("field", r.Field), slog.String("reason", r.Reason))
	}

	res, err := Unify(accounts, issues, s.opts)
	if err != nil {
		return nil, err
	}

	return &models.Dataset{
		Accounts:       res.Accounts,
		Orphans:        res.Orphans,
		Rejections:     rejections,
		BuiltAt:        s.now(),
		SourceAccounts: len(rawAccounts),
		SourceIssues:   len(rawIssues),
	}, nil
}
