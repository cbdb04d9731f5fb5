package reports

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/shopspring/decimal"
)

type WorkflowPaymentRow struct {
	WorkflowType  string          `json:"workflow_type"`
	WorkflowLabel string          `json:"workflow_label"`
	RowTotal      decimal.Decimal `json:"row_total"`
	GstValue      decimal.Decimal `json:"gst_value"`
	CashAmount    decimal.Decimal `json:"cash_amount"`
	PaynowAmount  decimal.Decimal `json:"paynow_amount"`
	OtherAmount   decimal.Decimal `json:"other_amount"`
}

// BuildWorkflowPaymentBreakdown rolls the per-jobsheet export rows up into
// one row per workflow type plus a synthesized grand-total row. Workflow
// types with no activity still appear with zero amounts; an unattributed
// bucket appears only when some jobsheet produced one.
func BuildWorkflowPaymentBreakdown(financials []*JobsheetFinancials) []*WorkflowPaymentRow {
	byWorkflow := map[string]*WorkflowPaymentRow{}
	ordered := make([]*WorkflowPaymentRow, 0, len(models.AllWorkflowTypes())+2)
	for _, wt := range models.AllWorkflowTypes() {
		row := &WorkflowPaymentRow{
			WorkflowType:  string(wt),
			WorkflowLabel: wt.Label(),
			RowTotal:      decimal.Zero,
			GstValue:      decimal.Zero,
			CashAmount:    decimal.Zero,
			PaynowAmount:  decimal.Zero,
			OtherAmount:   decimal.Zero,
		}
		byWorkflow[string(wt)] = row
		ordered = append(ordered, row)
	}

	var unattributed *WorkflowPaymentRow
	for _, f := range financials {
		for _, export := range BuildExportRows(f) {
			row, ok := byWorkflow[export.WorkflowType]
			if !ok {
				if unattributed == nil {
					unattributed = &WorkflowPaymentRow{
						WorkflowType:  "",
						WorkflowLabel: "Unattributed",
						RowTotal:      decimal.Zero,
						GstValue:      decimal.Zero,
						CashAmount:    decimal.Zero,
						PaynowAmount:  decimal.Zero,
						OtherAmount:   decimal.Zero,
					}
				}
				row = unattributed
			}
			row.RowTotal = row.RowTotal.Add(export.RowTotal)
			row.GstValue = row.GstValue.Add(export.GstValue)
			row.CashAmount = row.CashAmount.Add(export.CashAmount)
			row.PaynowAmount = row.PaynowAmount.Add(export.PaynowAmount)
			row.OtherAmount = row.OtherAmount.Add(export.OtherAmount)
		}
	}
	if unattributed != nil {
		ordered = append(ordered, unattributed)
	}

	total := &WorkflowPaymentRow{
		WorkflowType:  "total",
		WorkflowLabel: "Total",
		RowTotal:      decimal.Zero,
		GstValue:      decimal.Zero,
		CashAmount:    decimal.Zero,
		PaynowAmount:  decimal.Zero,
		OtherAmount:   decimal.Zero,
	}
	for _, row := range ordered {
		total.RowTotal = total.RowTotal.Add(row.RowTotal)
		total.GstValue = total.GstValue.Add(row.GstValue)
		total.CashAmount = total.CashAmount.Add(row.CashAmount)
		total.PaynowAmount = total.PaynowAmount.Add(row.PaynowAmount)
		total.OtherAmount = total.OtherAmount.Add(row.OtherAmount)
	}
	return append(ordered, total)
}

// GetWorkflowByPaymentMethod breaks the period's receipts down by workflow
// type and payment method.
func GetWorkflowByPaymentMethod(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) ([]*WorkflowPaymentRow, error) {
	started := time.Now()
	defer logSlowReport(ctx, "workflowByPaymentMethod", started, nil)

	financials, err := fetchJobsheetFinancials(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return BuildWorkflowPaymentBreakdown(financials), nil
}
