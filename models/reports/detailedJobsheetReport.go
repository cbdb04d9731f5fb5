package reports

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/shopspring/decimal"
)

type DetailedJobsheetRow struct {
	JobsheetId    int             `json:"jobsheet_id"`
	Date          time.Time       `json:"date"`
	CustomerName  string          `json:"customer_name"`
	VehicleInfo   string          `json:"vehicle_info"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	WorkflowType  string          `json:"workflow_type"`
	WorkflowLabel string          `json:"workflow_label"`
}

// DominantWorkflow attributes a jobsheet to the workflow type carrying its
// highest completed-and-billed labor total. Without qualifying labor, a
// jobsheet with items counts as repairs/parts; otherwise the jobsheet's own
// default applies. Ties break toward the lower workflow code.
func DominantWorkflow(f *JobsheetFinancials) models.WorkflowType {
	best := models.WorkflowType("")
	bestAmount := decimal.Zero
	for _, wt := range models.AllWorkflowTypes() {
		amount, ok := f.LaborByWorkflow[wt]
		if !ok || !amount.IsPositive() {
			continue
		}
		if amount.GreaterThan(bestAmount) {
			best = wt
			bestAmount = amount
		}
	}
	if best != "" {
		return best
	}
	if f.ItemsSubtotal.IsPositive() {
		return models.WorkflowTypeRepairs
	}
	if f.DefaultWorkflow.IsValid() {
		return f.DefaultWorkflow
	}
	return models.WorkflowTypeRepairs
}

// GetDetailedJobsheets lists one row per completed jobsheet in the period,
// attributed to its dominant workflow type.
func GetDetailedJobsheets(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) ([]*DetailedJobsheetRow, error) {
	started := time.Now()
	defer logSlowReport(ctx, "detailedJobsheets", started, nil)

	financials, err := fetchJobsheetFinancials(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	rows := make([]*DetailedJobsheetRow, 0, len(financials))
	for _, f := range financials {
		workflow := DominantWorkflow(f)
		rows = append(rows, &DetailedJobsheetRow{
			JobsheetId:    f.JobsheetId,
			Date:          f.Date,
			CustomerName:  f.CustomerName,
			VehicleInfo:   f.VehicleInfo,
			TotalAmount:   f.TotalAmount,
			WorkflowType:  string(workflow),
			WorkflowLabel: workflow.Label(),
		})
	}
	return rows, nil
}
