package repository

import (
	"context"
	"io"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// ReportRepository runs the three read-only aggregations behind the profit and loss
// summary. Each method returns zero when nothing matches the window.
type ReportRepository interface {
	// SumRevenue totals totalAmount over completed transactions in the window.
	SumRevenue(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error)
	// SumCOGS totals quantity * product purchase price over the line items of those transactions.
	SumCOGS(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error)
	// SumOperationalCosts totals the operating expense ledger over the window.
	SumOperationalCosts(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error)
}

// Dumper exports and imports the whole database as a single artifact.
type Dumper interface {
	Dump(ctx context.Context, w io.Writer) error
	// Restore replaces the current data with the contents of the artifact.
	Restore(ctx context.Context, r io.Reader) error
	// Extension is the file extension of the artifact, without the dot.
	Extension() string
}
