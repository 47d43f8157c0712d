package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// PROFIT ANALYSIS - Monthly revenue vs. cost per contract
// =============================================================================

// MonthProfit is one row of a profit report.
type MonthProfit struct {
	Month   generic.Month
	Billed  bool
	Revenue generic.Money
	Cost    generic.Money
	Profit  generic.Money
	Deficit bool
}

// ProfitReport aggregates a contract's year.
type ProfitReport struct {
	ContractID   generic.ContractID
	Year         int
	Mode         BillingMode
	Months       []MonthProfit
	TotalRevenue generic.Money
	TotalCost    generic.Money
	TotalProfit  generic.Money
	DeficitCount int
}

// Margin returns profit as a percentage of revenue, zero without revenue.
func (r ProfitReport) Margin() decimal.Decimal {
	if r.TotalRevenue.IsZero() {
		return decimal.Zero
	}
	return r.TotalProfit.Value.Div(r.TotalRevenue.Value).Mul(hundred)
}

// AnalyzeYear builds the profit report of a contract for a calendar year.
//
// Costs are monthly-recurring in both modes, starting from the contract
// start month. In ModeActual revenue lands only in billed months, so
// semiannual and annual plans show deficit months between invoices. In
// ModeAverage revenue is MonthlyAverageValue from the billing anchor month on.
func AnalyzeYear(c Contract, adjustments []Adjustment, year int, mode BillingMode) ProfitReport {
	report := ProfitReport{
		ContractID:   c.ID,
		Year:         year,
		Mode:         mode,
		TotalRevenue: c.BaseValue.Zero(),
		TotalCost:    c.BaseValue.Zero(),
		TotalProfit:  c.BaseValue.Zero(),
	}

	startMonth := c.StartDate.CalendarMonth()
	anchor := BillingAnchorMonth(c)
	cost := c.MonthlyCost()

	for _, m := range generic.YearPeriod(year).Months() {
		row := MonthProfit{Month: m, Revenue: c.BaseValue.Zero(), Cost: c.BaseValue.Zero()}
		if generic.MonthsBetween(startMonth, m) >= 0 {
			row.Cost = cost
		}

		switch mode {
		case ModeAverage:
			if generic.MonthsBetween(anchor, m) >= 0 {
				effective := ResolveEffectiveValue(c, adjustments, m.Last())
				row.Revenue = MonthlyAverageValue(c, effective)
				row.Billed = IsBilledInMonth(c, adjustments, m.Year, m.Month).Billed
			}
		default:
			charge := IsBilledInMonth(c, adjustments, m.Year, m.Month)
			row.Billed = charge.Billed
			row.Revenue = charge.Value
		}

		row.Profit = row.Revenue.Sub(row.Cost)
		row.Deficit = row.Profit.IsNegative()
		if row.Deficit {
			report.DeficitCount++
		}
		report.TotalRevenue = report.TotalRevenue.Add(row.Revenue)
		report.TotalCost = report.TotalCost.Add(row.Cost)
		report.Months = append(report.Months, row)
	}
	report.TotalProfit = report.TotalRevenue.Sub(report.TotalCost)
	return report
}

// =============================================================================
// PORTFOLIO - All contracts, analyzed in parallel
// =============================================================================

// SnapshotLoader supplies a consistent contract+adjustments snapshot.
type SnapshotLoader interface {
	ListContracts(ctx context.Context) ([]Contract, error)
	ListAdjustments(ctx context.Context, contractID generic.ContractID) ([]Adjustment, error)
}

// PortfolioReport sums every contract's report.
type PortfolioReport struct {
	Year         int
	Mode         BillingMode
	Contracts    []ProfitReport
	TotalRevenue generic.Money
	TotalCost    generic.Money
	TotalProfit  generic.Money
}

// MaxPortfolioWorkers bounds concurrent snapshot loads.
const MaxPortfolioWorkers = 8

// AnalyzePortfolio runs AnalyzeYear for every contract. The core is pure, so
// contracts are analyzed concurrently; only snapshot loading can fail.
func AnalyzePortfolio(ctx context.Context, loader SnapshotLoader, year int, mode BillingMode) (PortfolioReport, error) {
	contracts, err := loader.ListContracts(ctx)
	if err != nil {
		return PortfolioReport{}, err
	}

	var (
		mu      sync.Mutex
		reports = make([]ProfitReport, 0, len(contracts))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxPortfolioWorkers)
	for _, c := range contracts {
		c := c
		g.Go(func() error {
			adjustments, err := loader.ListAdjustments(gctx, c.ID)
			if err != nil {
				return err
			}
			r := AnalyzeYear(c, adjustments, year, mode)
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PortfolioReport{}, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].ContractID < reports[j].ContractID })

	currency := generic.DefaultCurrency
	if len(contracts) > 0 {
		currency = contracts[0].Currency()
	}
	zero := generic.NewMoneyFromDecimal(decimal.Zero, currency)
	out := PortfolioReport{
		Year:         year,
		Mode:         mode,
		Contracts:    reports,
		TotalRevenue: lo.Reduce(reports, func(acc generic.Money, r ProfitReport, _ int) generic.Money { return acc.Add(r.TotalRevenue) }, zero),
		TotalCost:    lo.Reduce(reports, func(acc generic.Money, r ProfitReport, _ int) generic.Money { return acc.Add(r.TotalCost) }, zero),
	}
	out.TotalProfit = out.TotalRevenue.Sub(out.TotalCost)
	return out, nil
}
