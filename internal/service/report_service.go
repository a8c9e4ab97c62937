package service

import (
	"context"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/cache"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReportService computes profit and loss summaries from the store.
type ReportService struct {
	repo  repository.ReportRepository
	cache cache.ProfitLossCache
	now   func() time.Time
	loc   *time.Location
}

type ReportOption func(*ReportService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone in which month and year boundaries are resolved.
func WithLocation(loc *time.Location) ReportOption {
	return func(s *ReportService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewReportService(repo repository.ReportRepository, cacheImpl cache.ProfitLossCache, opts ...ReportOption) *ReportService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopProfitLossCache()
	}
	s := &ReportService{
		repo:  repo,
		cache: cacheImpl,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeProfitLoss aggregates revenue, cost of goods sold and operational costs since
// the start of the requested period and derives the profit figures.
func (s *ReportService) ComputeProfitLoss(ctx context.Context, query domain.ProfitLossQuery) (*domain.ProfitLossSummary, error) {
	period := domain.ParseReportPeriod(string(query.Period))
	now := s.now()
	window := domain.ReportWindow{
		Start:    domain.ResolvePeriodStart(period, now, s.loc),
		BranchID: query.BranchID,
	}

	if summary, ok, err := s.cache.Get(ctx, window, period); err == nil && ok {
		return summary, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("report: cache get profit loss failed")
	}

	var revenue, cogs, operationalCosts decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = s.repo.SumRevenue(gctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		cogs, err = s.repo.SumCOGS(gctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		operationalCosts, err = s.repo.SumOperationalCosts(gctx, window)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("filter", string(period)).Str("branch", window.BranchID).Msg("report: profit loss aggregation failed")
		return nil, apperror.Wrap(err, apperror.KindAggregation, apperror.MsgReportFailed)
	}

	summary := domain.NewProfitLossSummary(revenue, cogs, operationalCosts)
	summary.Filter = period
	summary.BranchID = window.BranchID
	summary.PeriodStart = window.Start
	summary.GeneratedAt = now

	if err := s.cache.Set(ctx, window, period, &summary); err != nil {
		log.Warn().Err(err).Msg("report: cache set profit loss failed")
	}

	log.Debug().
		Str("filter", string(period)).
		Str("branch", window.BranchID).
		Time("period_start", window.Start).
		Str("net_profit", summary.NetProfit.String()).
		Msg("report: profit loss computed")

	return &summary, nil
}
