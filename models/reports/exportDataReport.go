package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportRow is one workflow slice of a completed jobsheet. A jobsheet spans
// as many rows as it has workflow types with billable work; parts and GST
// fold into the repairs/parts row only.
type ExportRow struct {
	JobsheetId    int             `json:"jobsheet_id"`
	Date          time.Time       `json:"date"`
	CustomerName  string          `json:"customer_name"`
	VehicleInfo   string          `json:"vehicle_info"`
	WorkflowType  string          `json:"workflow_type"`
	WorkflowLabel string          `json:"workflow_label"`
	LaborTotal    decimal.Decimal `json:"labor_total"`
	ItemsSubtotal decimal.Decimal `json:"items_subtotal"`
	GstValue      decimal.Decimal `json:"gst_value"`
	RowTotal      decimal.Decimal `json:"row_total"`
	CashAmount    decimal.Decimal `json:"cash_amount"`
	PaynowAmount  decimal.Decimal `json:"paynow_amount"`
	OtherAmount   decimal.Decimal `json:"other_amount"`
}

// BuildExportRows splits one jobsheet into per-workflow rows. Payments are
// allocated across the rows pro-rata by row total, so the allocations sum
// back to the amounts actually received. GST applies to parts only.
func BuildExportRows(f *JobsheetFinancials) []*ExportRow {
	rows := make([]*ExportRow, 0, 2)
	grandTotal := decimal.Zero
	for _, wt := range models.AllWorkflowTypes() {
		laborTotal := f.LaborByWorkflow[wt]
		itemsSubtotal := decimal.Zero
		if wt == models.WorkflowTypeRepairs {
			itemsSubtotal = f.ItemsSubtotal
		}
		rowTotal := laborTotal.Add(itemsSubtotal)
		if !rowTotal.IsPositive() {
			continue
		}
		gstValue := decimal.Zero
		if wt == models.WorkflowTypeRepairs {
			gstValue = itemsSubtotal.Mul(models.GSTRate)
		}
		rows = append(rows, &ExportRow{
			JobsheetId:    f.JobsheetId,
			Date:          f.Date,
			CustomerName:  f.CustomerName,
			VehicleInfo:   f.VehicleInfo,
			WorkflowType:  string(wt),
			WorkflowLabel: wt.Label(),
			LaborTotal:    laborTotal,
			ItemsSubtotal: itemsSubtotal,
			GstValue:      gstValue,
			RowTotal:      rowTotal,
		})
		grandTotal = grandTotal.Add(rowTotal)
	}

	cash := f.PaymentsByMethod[models.PaymentMethodCash]
	paynow := f.PaymentsByMethod[models.PaymentMethodPaynow]
	other := f.PaymentsByMethod[models.PaymentMethodOther]

	for _, row := range rows {
		row.CashAmount = models.AllocateProportional(row.RowTotal, grandTotal, cash)
		row.PaynowAmount = models.AllocateProportional(row.RowTotal, grandTotal, paynow)
		row.OtherAmount = models.AllocateProportional(row.RowTotal, grandTotal, other)
	}

	// Jobsheets that collected money without any billable work still have to
	// show up in the export so the cash totals reconcile.
	if len(rows) == 0 && f.TotalPayments().IsPositive() {
		rows = append(rows, &ExportRow{
			JobsheetId:    f.JobsheetId,
			Date:          f.Date,
			CustomerName:  f.CustomerName,
			VehicleInfo:   f.VehicleInfo,
			WorkflowType:  "",
			WorkflowLabel: "Unattributed",
			LaborTotal:    decimal.Zero,
			ItemsSubtotal: decimal.Zero,
			GstValue:      decimal.Zero,
			RowTotal:      decimal.Zero,
			CashAmount:    cash,
			PaynowAmount:  paynow,
			OtherAmount:   other,
		})
	}
	return rows
}

// GetExportData returns the flattened per-workflow rows for every completed
// jobsheet in the period.
func GetExportData(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) ([]*ExportRow, error) {
	started := time.Now()
	defer logSlowReport(ctx, "exportData", started, nil)

	financials, err := fetchJobsheetFinancials(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	rows := make([]*ExportRow, 0, len(financials))
	for _, f := range financials {
		rows = append(rows, BuildExportRows(f)...)
	}
	return rows, nil
}

var exportHeaders = []string{
	"Jobsheet No", "Date", "Customer", "Vehicle", "Workflow",
	"Labor", "Parts", "GST", "Total", "Cash", "PayNow", "Other",
}

// GetExportDataExcel renders the export rows as a spreadsheet.
func GetExportDataExcel(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) (*excelize.File, error) {
	rows, err := GetExportData(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	sheet := file.GetSheetName(0)

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	timezone := config.ShopTimezone()
	for i, row := range rows {
		rowDate, err := utils.ConvertToDate(row.Date, timezone)
		if err != nil {
			return nil, err
		}
		values := []any{
			row.JobsheetId,
			rowDate.Format("2006-01-02"),
			row.CustomerName,
			row.VehicleInfo,
			row.WorkflowLabel,
			row.LaborTotal.InexactFloat64(),
			row.ItemsSubtotal.InexactFloat64(),
			row.GstValue.InexactFloat64(),
			row.RowTotal.InexactFloat64(),
			row.CashAmount.InexactFloat64(),
			row.PaynowAmount.InexactFloat64(),
			row.OtherAmount.InexactFloat64(),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if err := file.SetColWidth(sheet, "B", "E", 18); err != nil {
		return nil, err
	}
	file.SetSheetName(sheet, fmt.Sprintf("Export %s", fromDate.DateString()))
	return file, nil
}
