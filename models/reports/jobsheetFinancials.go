package reports

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/shopspring/decimal"
)

// JobsheetFinancials is the per-jobsheet raw material every report shape is
// derived from: one completed jobsheet with its qualifying labor grouped by
// workflow type, its items subtotal and its payments grouped by method.
type JobsheetFinancials struct {
	JobsheetId       int
	Date             time.Time
	CustomerName     string
	VehicleInfo      string
	DefaultWorkflow  models.WorkflowType
	TotalAmount      decimal.Decimal
	LaborByWorkflow  map[models.WorkflowType]decimal.Decimal
	ItemsSubtotal    decimal.Decimal
	PaymentsByMethod map[models.PaymentMethod]decimal.Decimal
}

// TotalPayments sums across methods.
func (f *JobsheetFinancials) TotalPayments() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range f.PaymentsByMethod {
		total = total.Add(amount)
	}
	return total
}

type jobsheetHeaderRow struct {
	JobsheetId      int
	CreatedAt       time.Time
	TotalAmount     decimal.Decimal
	DefaultWorkflow string
	CustomerName    *string
	LicensePlate    *string
	VehicleModel    *string
}

type laborSumRow struct {
	JobsheetId   int
	WorkflowType string
	LaborTotal   decimal.Decimal
}

type itemSumRow struct {
	JobsheetId    int
	ItemsSubtotal decimal.Decimal
}

type paymentSumRow struct {
	JobsheetId int
	Method     string
	Amount     decimal.Decimal
}

// fetchJobsheetFinancials pulls committed data for completed jobsheets whose
// creation timestamp falls inside [startOfDay(from), endOfDay(to)] in the shop
// timezone. Read-only; takes no locks.
func fetchJobsheetFinancials(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) ([]*JobsheetFinancials, error) {

	db := config.GetDB()
	timezone := config.ShopTimezone()

	if err := fromDate.StartOfDayUTCTime(timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(timezone); err != nil {
		return nil, err
	}

	args := map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
	}

	var headers []*jobsheetHeaderRow
	if err := db.WithContext(ctx).Raw(`
SELECT
    js.id AS jobsheet_id,
    js.created_at,
    js.total_amount,
    js.workflow_type AS default_workflow,
    customers.name AS customer_name,
    vehicles.license_plate,
    vehicles.model AS vehicle_model
FROM
    jobsheets AS js
        LEFT JOIN
    customers ON customers.id = js.customer_id
        LEFT JOIN
    vehicles ON vehicles.id = js.vehicle_id
WHERE
    js.state = 'completed'
        AND js.created_at BETWEEN @fromDate AND @toDate
ORDER BY js.created_at
`, args).Scan(&headers).Error; err != nil {
		return nil, err
	}

	var laborSums []*laborSumRow
	if err := db.WithContext(ctx).Raw(`
SELECT
    labors.jobsheet_id,
    labors.workflow_type,
    SUM(labors.price) AS labor_total
FROM
    labors
        JOIN
    jobsheets ON jobsheets.id = labors.jobsheet_id
WHERE
    jobsheets.state = 'completed'
        AND jobsheets.created_at BETWEEN @fromDate AND @toDate
        AND labors.is_completed = 1
        AND labors.is_billed = 1
GROUP BY labors.jobsheet_id , labors.workflow_type
`, args).Scan(&laborSums).Error; err != nil {
		return nil, err
	}

	var itemSums []*itemSumRow
	if err := db.WithContext(ctx).Raw(`
SELECT
    jobsheet_items.jobsheet_id,
    SUM(jobsheet_items.quantity * jobsheet_items.price) AS items_subtotal
FROM
    jobsheet_items
        JOIN
    jobsheets ON jobsheets.id = jobsheet_items.jobsheet_id
WHERE
    jobsheets.state = 'completed'
        AND jobsheets.created_at BETWEEN @fromDate AND @toDate
GROUP BY jobsheet_items.jobsheet_id
`, args).Scan(&itemSums).Error; err != nil {
		return nil, err
	}

	var paymentSums []*paymentSumRow
	if err := db.WithContext(ctx).Raw(`
SELECT
    payments.jobsheet_id,
    payments.method,
    SUM(payments.amount) AS amount
FROM
    payments
        JOIN
    jobsheets ON jobsheets.id = payments.jobsheet_id
WHERE
    jobsheets.state = 'completed'
        AND jobsheets.created_at BETWEEN @fromDate AND @toDate
GROUP BY payments.jobsheet_id , payments.method
`, args).Scan(&paymentSums).Error; err != nil {
		return nil, err
	}

	byId := make(map[int]*JobsheetFinancials, len(headers))
	results := make([]*JobsheetFinancials, 0, len(headers))
	for _, h := range headers {
		f := &JobsheetFinancials{
			JobsheetId:       h.JobsheetId,
			Date:             h.CreatedAt,
			CustomerName:     models.WalkInCustomerName,
			VehicleInfo:      models.NoVehicleDisplay,
			DefaultWorkflow:  models.WorkflowType(h.DefaultWorkflow),
			TotalAmount:      h.TotalAmount,
			LaborByWorkflow:  map[models.WorkflowType]decimal.Decimal{},
			ItemsSubtotal:    decimal.Zero,
			PaymentsByMethod: map[models.PaymentMethod]decimal.Decimal{},
		}
		if h.CustomerName != nil && *h.CustomerName != "" {
			f.CustomerName = *h.CustomerName
		}
		if h.LicensePlate != nil && *h.LicensePlate != "" {
			f.VehicleInfo = *h.LicensePlate
			if h.VehicleModel != nil && *h.VehicleModel != "" {
				f.VehicleInfo += " (" + *h.VehicleModel + ")"
			}
		}
		byId[h.JobsheetId] = f
		results = append(results, f)
	}

	for _, row := range laborSums {
		if f, ok := byId[row.JobsheetId]; ok {
			wt := models.WorkflowType(row.WorkflowType)
			f.LaborByWorkflow[wt] = f.LaborByWorkflow[wt].Add(row.LaborTotal)
		}
	}
	for _, row := range itemSums {
		if f, ok := byId[row.JobsheetId]; ok {
			f.ItemsSubtotal = row.ItemsSubtotal
		}
	}
	for _, row := range paymentSums {
		if f, ok := byId[row.JobsheetId]; ok {
			method := models.NormalizePaymentMethod(row.Method)
			f.PaymentsByMethod[method] = f.PaymentsByMethod[method].Add(row.Amount)
		}
	}

	return results, nil
}
