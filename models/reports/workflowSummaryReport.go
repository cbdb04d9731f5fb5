package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/shopspring/decimal"
)

type WorkflowTotalRow struct {
	WorkflowType  string          `json:"workflow_type"`
	WorkflowLabel string          `json:"workflow_label"`
	Total         decimal.Decimal `json:"total"`
}

type WorkflowSummary struct {
	FromDate       string              `json:"from_date"`
	ToDate         string              `json:"to_date"`
	WorkflowTotals []*WorkflowTotalRow `json:"workflow_totals"`
	TotalGst       decimal.Decimal     `json:"total_gst"`
	CashTotal      decimal.Decimal     `json:"cash_total"`
	PaynowTotal    decimal.Decimal     `json:"paynow_total"`
	OtherTotal     decimal.Decimal     `json:"other_total"`
	JobsheetCount  int                 `json:"jobsheet_count"`
}

// BuildWorkflowSummary aggregates completed jobsheets into one row per
// workflow type. Every workflow type appears even when its total is zero, so
// callers get a stable shape. Parts revenue folds into repairs/parts.
func BuildWorkflowSummary(fromDate models.MyDateString, toDate models.MyDateString, financials []*JobsheetFinancials) *WorkflowSummary {
	totals := map[models.WorkflowType]decimal.Decimal{}
	summary := &WorkflowSummary{
		FromDate:    fromDate.DateString(),
		ToDate:      toDate.DateString(),
		TotalGst:    decimal.Zero,
		CashTotal:   decimal.Zero,
		PaynowTotal: decimal.Zero,
		OtherTotal:  decimal.Zero,
	}
	for _, f := range financials {
		summary.JobsheetCount++
		for wt, amount := range f.LaborByWorkflow {
			totals[wt] = totals[wt].Add(amount)
		}
		totals[models.WorkflowTypeRepairs] = totals[models.WorkflowTypeRepairs].Add(f.ItemsSubtotal)
		summary.TotalGst = summary.TotalGst.Add(f.ItemsSubtotal.Mul(models.GSTRate))
		summary.CashTotal = summary.CashTotal.Add(f.PaymentsByMethod[models.PaymentMethodCash])
		summary.PaynowTotal = summary.PaynowTotal.Add(f.PaymentsByMethod[models.PaymentMethodPaynow])
		summary.OtherTotal = summary.OtherTotal.Add(f.PaymentsByMethod[models.PaymentMethodOther])
	}
	for _, wt := range models.AllWorkflowTypes() {
		summary.WorkflowTotals = append(summary.WorkflowTotals, &WorkflowTotalRow{
			WorkflowType:  string(wt),
			WorkflowLabel: wt.Label(),
			Total:         totals[wt],
		})
	}
	return summary
}

// GetWorkflowSummary returns the period summary, served from the report
// cache when enabled.
func GetWorkflowSummary(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) (*WorkflowSummary, error) {
	started := time.Now()
	defer logSlowReport(ctx, "workflowSummary", started, nil)

	cacheKey := fmt.Sprintf("report:workflowSummary:%s:%s", fromDate.DateString(), toDate.DateString())
	if reportCacheEnabled() {
		var cached WorkflowSummary
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	financials, err := fetchJobsheetFinancials(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	summary := BuildWorkflowSummary(fromDate, toDate, financials)

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, summary, reportCacheTTL())
	}
	return summary, nil
}
