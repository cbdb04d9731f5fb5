package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

type Jobsheet struct {
	ID           int             `gorm:"primary_key" json:"id"`
	State        JobsheetState   `gorm:"type:enum('pending','in progress','completed','cancelled');default:'pending'" json:"state"`
	VehicleId    *int            `gorm:"index" json:"vehicle_id"`
	CustomerId   *int            `gorm:"index" json:"customer_id"`
	UserId       int             `gorm:"index;not null" json:"user_id"`
	WorkflowType WorkflowType    `gorm:"size:2;default:'1'" json:"workflow_type"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Items        []JobsheetItem  `gorm:"foreignKey:JobsheetId" json:"items,omitempty"`
	Labors       []Labor         `gorm:"foreignKey:JobsheetId" json:"labors,omitempty"`
	Payments     []Payment       `gorm:"foreignKey:JobsheetId" json:"payments,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsWalkIn: no vehicle and no customer reference.
func (js *Jobsheet) IsWalkIn() bool {
	return js.VehicleId == nil && js.CustomerId == nil
}

type NewJobsheet struct {
	VehicleId    *int    `json:"vehicle_id"`
	LicensePlate *string `json:"license_plate"`
	CustomerId   *int    `json:"customer_id"`
	UserId       int     `json:"user_id" binding:"required"`
	WorkflowType *string `json:"workflow_type"`
}

// PatchJobsheet enumerates the fields a partial update may touch; nil means
// "leave unchanged". Replaces the legacy build-query-from-present-fields
// patching.
type PatchJobsheet struct {
	State        *string `json:"state"`
	VehicleId    *int    `json:"vehicle_id"`
	CustomerId   *int    `json:"customer_id"`
	WorkflowType *string `json:"workflow_type"`
}

// CreateJobsheet resolves the vehicle by explicit id or case-insensitive
// license-plate match. A resolved vehicle contributes its owner as the
// customer unless one is given explicitly; a failed lookup falls back to a
// walk-in silently.
func CreateJobsheet(ctx context.Context, input *NewJobsheet) (*Jobsheet, error) {

	db := config.GetDB()

	if input.UserId == 0 {
		return nil, utils.NewValidationError("user_id is required")
	}

	workflowType := WorkflowTypeRepairs
	if input.WorkflowType != nil {
		wt, err := WorkflowTypeFromString(*input.WorkflowType)
		if err != nil {
			return nil, utils.NewValidationError(err.Error())
		}
		workflowType = wt
	}

	var vehicle *Vehicle
	if input.VehicleId != nil {
		if v, err := GetVehicle(ctx, *input.VehicleId); err == nil {
			vehicle = v
		}
	} else if input.LicensePlate != nil && *input.LicensePlate != "" {
		if v, err := GetVehicleByPlate(ctx, *input.LicensePlate); err == nil {
			vehicle = v
		}
	}

	jobsheet := Jobsheet{
		State:        JobsheetStatePending,
		UserId:       input.UserId,
		CustomerId:   input.CustomerId,
		WorkflowType: workflowType,
		TotalAmount:  decimal.Zero,
	}
	if vehicle != nil {
		jobsheet.VehicleId = &vehicle.ID
		if jobsheet.CustomerId == nil {
			jobsheet.CustomerId = vehicle.CustomerId
		}
	}

	if err := db.WithContext(ctx).Create(&jobsheet).Error; err != nil {
		return nil, err
	}
	return &jobsheet, nil
}

// UpdateJobsheet applies a partial update. Transitioning into cancelled is a
// side-effecting state change: stock is restored for every attached item and
// jobsheet-caused compatibility records are retracted, all in one transaction.
// Completed and cancelled are terminal: leaving either state is rejected.
// Re-cancelling an already cancelled jobsheet is a no-op guard, not an error.
func UpdateJobsheet(ctx context.Context, id int, patch *PatchJobsheet) (*Jobsheet, error) {

	db := config.GetDB()

	jobsheet, err := utils.FetchModel[Jobsheet](ctx, id, "Items")
	if err != nil {
		return nil, err
	}

	// validate before any write
	var newState *JobsheetState
	if patch.State != nil {
		s := JobsheetState(*patch.State)
		if !s.IsValid() {
			return nil, utils.NewValidationError("invalid jobsheet state")
		}
		// Terminal states have no outgoing transitions. Re-submitting the
		// current state (re-cancel included) is a no-op, not an error.
		if s != jobsheet.State {
			if jobsheet.State == JobsheetStateCancelled || jobsheet.State == JobsheetStateCompleted {
				return nil, utils.NewValidationError("jobsheet is " + string(jobsheet.State))
			}
			newState = &s
		}
	}
	var newWorkflowType *WorkflowType
	if patch.WorkflowType != nil {
		wt, err := WorkflowTypeFromString(*patch.WorkflowType)
		if err != nil {
			return nil, utils.NewValidationError(err.Error())
		}
		newWorkflowType = &wt
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if newState != nil && *newState == JobsheetStateCancelled {
		for _, item := range jobsheet.Items {
			if err := AdjustStock(tx, item.ProductId, item.Quantity,
				StockReferenceTypeJobsheetCancel, jobsheet.ID, "jobsheet cancelled"); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if err := retractCompatibilityForJobsheet(tx, jobsheet.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// Re-assign vehicle ownership when both references move together to new
	// values: deliberate denormalization repair.
	if patch.VehicleId != nil && patch.CustomerId != nil &&
		(jobsheet.VehicleId == nil || *jobsheet.VehicleId != *patch.VehicleId) &&
		(jobsheet.CustomerId == nil || *jobsheet.CustomerId != *patch.CustomerId) {
		if err := tx.Model(&Vehicle{}).Where("id = ?", *patch.VehicleId).
			Update("customer_id", *patch.CustomerId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if newState != nil {
		updates["State"] = *newState
	}
	if patch.VehicleId != nil {
		updates["VehicleId"] = *patch.VehicleId
	}
	if patch.CustomerId != nil {
		updates["CustomerId"] = *patch.CustomerId
	}
	if newWorkflowType != nil {
		updates["WorkflowType"] = *newWorkflowType
	}

	if len(updates) > 0 {
		if err := tx.Model(&jobsheet).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return jobsheet, nil
}

// DeleteJobsheet restores stock for every attached item, retracts
// jobsheet-caused compatibility records, then cascade-deletes items, labor,
// payments and the jobsheet row.
func DeleteJobsheet(ctx context.Context, id int) error {

	db := config.GetDB()

	jobsheet, err := utils.FetchModel[Jobsheet](ctx, id, "Items")
	if err != nil {
		return err
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	// Cancelled jobsheets already returned their stock.
	if jobsheet.State != JobsheetStateCancelled {
		for _, item := range jobsheet.Items {
			if err := AdjustStock(tx, item.ProductId, item.Quantity,
				StockReferenceTypeJobsheetDelete, jobsheet.ID, "jobsheet deleted"); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	if err := retractCompatibilityForJobsheet(tx, jobsheet.ID); err != nil {
		tx.Rollback()
		return err
	}

	for _, model := range []interface{}{&JobsheetItem{}, &Labor{}, &Payment{}} {
		if err := tx.Where("jobsheet_id = ?", jobsheet.ID).Delete(model).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Delete(&jobsheet).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func GetJobsheet(ctx context.Context, id int) (*Jobsheet, error) {
	return utils.FetchModel[Jobsheet](ctx, id, "Items", "Labors", "Payments")
}

// GetJobsheetDetail is the single-jobsheet read with display enrichment.
func GetJobsheetDetail(ctx context.Context, id int) (*JobsheetListRow, error) {
	jobsheet, err := GetJobsheet(ctx, id)
	if err != nil {
		return nil, err
	}
	row := &JobsheetListRow{
		Jobsheet:     *jobsheet,
		CustomerName: GetCustomerDisplayName(ctx, jobsheet.CustomerId),
		VehicleInfo:  NoVehicleDisplay,
	}
	if jobsheet.VehicleId != nil {
		if vehicle, err := GetVehicle(ctx, *jobsheet.VehicleId); err == nil {
			row.VehicleInfo = vehicle.LicensePlate
		}
	}
	return row, nil
}

// JobsheetListRow enriches a jobsheet with display fields. Walk-ins render
// sentinel values, never null.
type JobsheetListRow struct {
	Jobsheet
	CustomerName string `json:"customer_name"`
	VehicleInfo  string `json:"vehicle_info"`
}

func GetJobsheets(ctx context.Context, state *string) ([]*JobsheetListRow, error) {

	db := config.GetDB()
	var jobsheets []*Jobsheet
	dbCtx := db.WithContext(ctx)
	if state != nil && *state != "" {
		dbCtx = dbCtx.Where("state = ?", *state)
	}
	if err := dbCtx.Order("created_at DESC").Find(&jobsheets).Error; err != nil {
		return nil, err
	}

	// Batch the display lookups instead of one query per row.
	customerIds := make([]int, 0, len(jobsheets))
	vehicleIds := make([]int, 0, len(jobsheets))
	for _, js := range jobsheets {
		if js.CustomerId != nil {
			customerIds = append(customerIds, *js.CustomerId)
		}
		if js.VehicleId != nil {
			vehicleIds = append(vehicleIds, *js.VehicleId)
		}
	}
	customerNames := map[int]string{}
	if len(customerIds) > 0 {
		var customers []*Customer
		if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(customerIds)).Find(&customers).Error; err != nil {
			return nil, err
		}
		for _, c := range customers {
			customerNames[c.ID] = c.Name
		}
	}
	vehiclePlates := map[int]string{}
	if len(vehicleIds) > 0 {
		var vehicles []*Vehicle
		if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(vehicleIds)).Find(&vehicles).Error; err != nil {
			return nil, err
		}
		for _, v := range vehicles {
			vehiclePlates[v.ID] = v.LicensePlate
		}
	}

	rows := make([]*JobsheetListRow, 0, len(jobsheets))
	for _, js := range jobsheets {
		row := &JobsheetListRow{
			Jobsheet:     *js,
			CustomerName: WalkInCustomerName,
			VehicleInfo:  NoVehicleDisplay,
		}
		if js.CustomerId != nil {
			if name, ok := customerNames[*js.CustomerId]; ok {
				row.CustomerName = name
			}
		}
		if js.VehicleId != nil {
			if plate, ok := vehiclePlates[*js.VehicleId]; ok {
				row.VehicleInfo = plate
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetJobsheetBalance = total_amount - sum of payments.
func GetJobsheetBalance(ctx context.Context, id int) (decimal.Decimal, error) {

	db := config.GetDB()

	jobsheet, err := utils.FetchModel[Jobsheet](ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	var paid decimal.Decimal
	if err := db.WithContext(ctx).Model(&Payment{}).
		Where("jobsheet_id = ?", id).
		Select("COALESCE(SUM(amount), 0)").Scan(&paid).Error; err != nil {
		return decimal.Zero, err
	}

	return jobsheet.TotalAmount.Sub(paid), nil
}
