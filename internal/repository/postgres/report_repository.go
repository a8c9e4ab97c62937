package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type reportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) repository.ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) SumRevenue(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error) {
	filterClause, filterArgs := buildWindowClause(window, "t.", "created_at", 2)

	query := fmt.Sprintf(`
        SELECT COALESCE(SUM(t.total_amount), 0) AS total
        FROM transactions t
        WHERE t.status = $1%s
    `, filterClause)

	return r.sum(ctx, "revenue", query, append([]interface{}{domain.TransactionStatusCompleted}, filterArgs...)...)
}

func (r *reportRepository) SumCOGS(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error) {
	filterClause, filterArgs := buildWindowClause(window, "t.", "created_at", 2)

	query := fmt.Sprintf(`
        SELECT COALESCE(SUM(ti.quantity * p.purchase_price), 0) AS total
        FROM transactions t
        JOIN transaction_items ti ON ti.transaction_id = t.id
        JOIN products p ON p.id = ti.product_id
        WHERE t.status = $1%s
    `, filterClause)

	return r.sum(ctx, "cogs", query, append([]interface{}{domain.TransactionStatusCompleted}, filterArgs...)...)
}

func (r *reportRepository) SumOperationalCosts(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error) {
	filterClause, filterArgs := buildWindowClause(window, "oc.", "date", 1)

	query := fmt.Sprintf(`
        SELECT COALESCE(SUM(oc.amount), 0) AS total
        FROM operational_costs oc
        WHERE TRUE%s
    `, filterClause)

	return r.sum(ctx, "operational_costs", query, filterArgs...)
}

func (r *reportRepository) sum(ctx context.Context, name, query string, args ...interface{}) (decimal.Decimal, error) {
	if err := r.db.acquire(ctx); err != nil {
		return decimal.Zero, err
	}
	defer r.db.release()

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.db, &total, query, args...); err != nil {
		log.Error().Err(err).Str("aggregate", name).Msg("report: postgres aggregation failed")
		return decimal.Zero, fmt.Errorf("sum %s: %w", name, err)
	}

	log.Debug().Str("aggregate", name).Str("total", total.String()).Msg("report: postgres aggregation done")
	return total, nil
}
