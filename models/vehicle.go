package models

import (
	"context"
	"errors"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"gorm.io/gorm"
)

type Vehicle struct {
	ID           int       `gorm:"primary_key" json:"id"`
	CustomerId   *int      `gorm:"index" json:"customer_id"`
	Model        string    `gorm:"size:100" json:"model"`
	LicensePlate string    `gorm:"size:20;uniqueIndex;not null" json:"license_plate" binding:"required"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVehicle struct {
	CustomerId   *int   `json:"customer_id"`
	Model        string `json:"model"`
	LicensePlate string `json:"license_plate" binding:"required"`
}

func CreateVehicle(ctx context.Context, input *NewVehicle) (*Vehicle, error) {

	db := config.GetDB()

	if err := utils.ValidateUnique[Vehicle](ctx, "license_plate", input.LicensePlate, 0); err != nil {
		return nil, err
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, *input.CustomerId); err != nil {
			return nil, utils.NewValidationError("customer not found")
		}
	}

	vehicle := Vehicle{
		CustomerId:   input.CustomerId,
		Model:        input.Model,
		LicensePlate: input.LicensePlate,
	}
	if err := db.WithContext(ctx).Create(&vehicle).Error; err != nil {
		if utils.IsDuplicateEntryError(err) {
			return nil, utils.NewValidationError("license plate already registered")
		}
		return nil, err
	}
	return &vehicle, nil
}

func GetVehicle(ctx context.Context, id int) (*Vehicle, error) {
	return utils.FetchModel[Vehicle](ctx, id)
}

// GetVehicleByPlate matches the license plate exactly, case-insensitively.
func GetVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error) {
	db := config.GetDB()
	var vehicle Vehicle
	err := db.WithContext(ctx).
		Where("LOWER(license_plate) = LOWER(?)", plate).
		First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// NoVehicleDisplay is what display surfaces render when a jobsheet carries no
// vehicle reference.
const NoVehicleDisplay = "N/A"
