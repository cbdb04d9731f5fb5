package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

// Labor is one billable work line. Only rows that are both completed and
// billed contribute to the jobsheet total and to workflow reporting.
type Labor struct {
	ID            int             `gorm:"primary_key" json:"id"`
	JobsheetId    int             `gorm:"index;not null" json:"jobsheet_id"`
	Description   string          `gorm:"size:255;not null" json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	IsCompleted   *bool           `gorm:"not null;default:false" json:"is_completed"`
	IsBilled      *bool           `gorm:"not null;default:false" json:"is_billed"`
	WorkflowType  WorkflowType    `gorm:"size:2;default:'1'" json:"workflow_type"`
	TrackingNotes *string         `gorm:"type:text" json:"tracking_notes"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLabor struct {
	Description   string          `json:"description" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	IsCompleted   *BoolFlag       `json:"is_completed"`
	IsBilled      *BoolFlag       `json:"is_billed"`
	WorkflowType  *string         `json:"workflow_type"`
	TrackingNotes *string         `json:"tracking_notes"`
}

type PatchLabor struct {
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	IsCompleted   *BoolFlag        `json:"is_completed"`
	IsBilled      *BoolFlag        `json:"is_billed"`
	WorkflowType  *string          `json:"workflow_type"`
	TrackingNotes *string          `json:"tracking_notes"`
}

func AddLabor(ctx context.Context, jobsheetId int, input *NewLabor) (*Labor, error) {

	db := config.GetDB()

	if jobsheetId == 0 {
		return nil, utils.NewValidationError("jobsheet_id is required")
	}
	if err := utils.ValidateResourceId[Jobsheet](ctx, jobsheetId); err != nil {
		return nil, err
	}

	workflowType := WorkflowTypeRepairs
	if input.WorkflowType != nil {
		wt, err := WorkflowTypeFromString(*input.WorkflowType)
		if err != nil {
			return nil, utils.NewValidationError(err.Error())
		}
		workflowType = wt
	}

	labor := Labor{
		JobsheetId:    jobsheetId,
		Description:   input.Description,
		Price:         input.Price,
		IsCompleted:   utils.NewFalse(),
		IsBilled:      utils.NewFalse(),
		WorkflowType:  workflowType,
		TrackingNotes: input.TrackingNotes,
	}
	if input.IsCompleted != nil && input.IsCompleted.Bool() {
		labor.IsCompleted = utils.NewTrue()
		now := time.Now()
		labor.CompletedAt = &now
	}
	if input.IsBilled != nil && input.IsBilled.Bool() {
		labor.IsBilled = utils.NewTrue()
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Create(&labor).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recomputeJobsheetTotal(tx, jobsheetId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &labor, nil
}

// UpdateLabor applies a partial update. CompletedAt is set exactly once, on
// the first transition into completed; later toggles never overwrite it.
func UpdateLabor(ctx context.Context, id int, patch *PatchLabor) (*Labor, error) {

	db := config.GetDB()

	labor, err := utils.FetchModel[Labor](ctx, id)
	if err != nil {
		return nil, err
	}

	var newWorkflowType *WorkflowType
	if patch.WorkflowType != nil {
		wt, err := WorkflowTypeFromString(*patch.WorkflowType)
		if err != nil {
			return nil, utils.NewValidationError(err.Error())
		}
		newWorkflowType = &wt
	}

	updates := map[string]interface{}{}
	if patch.Description != nil {
		updates["Description"] = *patch.Description
	}
	if patch.Price != nil {
		updates["Price"] = *patch.Price
	}
	if patch.IsCompleted != nil {
		completed := patch.IsCompleted.Bool()
		updates["IsCompleted"] = completed
		if completed && labor.CompletedAt == nil {
			updates["CompletedAt"] = time.Now()
		}
	}
	if patch.IsBilled != nil {
		updates["IsBilled"] = patch.IsBilled.Bool()
	}
	if newWorkflowType != nil {
		updates["WorkflowType"] = *newWorkflowType
	}
	if patch.TrackingNotes != nil {
		updates["TrackingNotes"] = *patch.TrackingNotes
	}

	if len(updates) == 0 {
		return labor, nil
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Model(&labor).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recomputeJobsheetTotal(tx, labor.JobsheetId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return labor, nil
}

func DeleteLabor(ctx context.Context, id int) error {

	db := config.GetDB()

	labor, err := utils.FetchModel[Labor](ctx, id)
	if err != nil {
		return err
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Delete(&labor).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := recomputeJobsheetTotal(tx, labor.JobsheetId); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
