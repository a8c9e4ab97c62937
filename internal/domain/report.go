package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Dashboards consume the summary as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// TransactionStatusCompleted is the only status that counts as revenue.
const TransactionStatusCompleted = "completed"

var hundred = decimal.NewFromInt(100)

// ProfitLossQuery selects the reporting window and an optional branch (cabang).
type ProfitLossQuery struct {
	Period   ReportPeriod
	BranchID string
}

// ReportWindow is the resolved, open-ended window handed to the stores.
// Records with a timestamp at or after Start are included; there is no upper bound.
type ReportWindow struct {
	Start    time.Time
	BranchID string
}

// ProfitLossSummary is computed fresh on every request and never persisted.
type ProfitLossSummary struct {
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalCOGS        decimal.Decimal `json:"totalCOGS"`
	GrossProfit      decimal.Decimal `json:"grossProfit"`
	OperationalCosts decimal.Decimal `json:"operationalCosts"`
	NetProfit        decimal.Decimal `json:"netProfit"`
	ProfitMargin     decimal.Decimal `json:"profitMargin"` // percentage of revenue

	Filter      ReportPeriod `json:"filter"`
	BranchID    string       `json:"branchId,omitempty"`
	PeriodStart time.Time    `json:"periodStart"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// NewProfitLossSummary derives gross profit, net profit and margin from the three
// aggregated totals. The margin is zero whenever revenue is not positive.
func NewProfitLossSummary(revenue, cogs, operationalCosts decimal.Decimal) ProfitLossSummary {
	gross := revenue.Sub(cogs)
	net := gross.Sub(operationalCosts)

	margin := decimal.Zero
	if revenue.IsPositive() {
		margin = net.Div(revenue).Mul(hundred)
	}

	return ProfitLossSummary{
		TotalRevenue:     revenue,
		TotalCOGS:        cogs,
		GrossProfit:      gross,
		OperationalCosts: operationalCosts,
		NetProfit:        net,
		ProfitMargin:     margin,
	}
}
