package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CompatibilityRecord asserts that a product fits a vehicle model. Records
// with a nil CreatedByJobsheet are curator-entered and never touched by the
// inference engine; tagged records are inserted and deleted as a byproduct of
// jobsheet part usage. Rows are never mutated in place.
type CompatibilityRecord struct {
	ID                int       `gorm:"primary_key" json:"id"`
	ProductId         int       `gorm:"index;not null" json:"product_id"`
	VehicleModel      string    `gorm:"size:100;index;not null" json:"vehicle_model"`
	CreatedByJobsheet *int      `gorm:"index" json:"created_by_jobsheet"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// resolveJobsheetVehicleModel returns the model of the jobsheet's vehicle, or
// "" when the jobsheet is a walk-in or the vehicle has no recorded model.
func resolveJobsheetVehicleModel(tx *gorm.DB, jobsheet *Jobsheet) (string, error) {
	if jobsheet.VehicleId == nil {
		return "", nil
	}
	var vehicle Vehicle
	if err := tx.Where("id = ?", *jobsheet.VehicleId).First(&vehicle).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return vehicle.Model, nil
}

// ensureCompatibilityOnAttach inserts a (product, model) record tagged with
// the jobsheet the first time the product is attached. Idempotent: an existing
// record for the pair, tagged or curated, suppresses the insert.
func ensureCompatibilityOnAttach(tx *gorm.DB, jobsheet *Jobsheet, productId int) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	if jobsheet.State == JobsheetStateCancelled {
		return nil
	}

	model, err := resolveJobsheetVehicleModel(tx, jobsheet)
	if err != nil {
		return err
	}
	if model == "" {
		return nil
	}

	var count int64
	if err := tx.Model(&CompatibilityRecord{}).
		Where("product_id = ? AND vehicle_model = ?", productId, model).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	jobsheetId := jobsheet.ID
	record := CompatibilityRecord{
		ProductId:         productId,
		VehicleModel:      model,
		CreatedByJobsheet: &jobsheetId,
	}
	return tx.Create(&record).Error
}

// retractCompatibilityForJobsheet removes every record this jobsheet caused.
// Conservative: another jobsheet may justify the same pair, but re-attachment
// recreates it.
func retractCompatibilityForJobsheet(tx *gorm.DB, jobsheetId int) error {
	return tx.Where("created_by_jobsheet = ?", jobsheetId).
		Delete(&CompatibilityRecord{}).Error
}

// retractCompatibilityOnDetach removes the jobsheet-tagged record for a
// product once its last line leaves the jobsheet. A completed jobsheet's
// inferred compatibility is treated as confirmed and retained.
func retractCompatibilityOnDetach(tx *gorm.DB, jobsheet *Jobsheet, productId int) error {
	if jobsheet.State == JobsheetStateCompleted {
		return nil
	}

	var remaining int64
	if err := tx.Model(&JobsheetItem{}).
		Where("jobsheet_id = ? AND product_id = ?", jobsheet.ID, productId).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	return tx.Where("created_by_jobsheet = ? AND product_id = ?", jobsheet.ID, productId).
		Delete(&CompatibilityRecord{}).Error
}
