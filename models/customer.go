package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:30" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	db := config.GetDB()
	customer := Customer{
		Name:  input.Name,
		Phone: input.Phone,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return utils.FetchModel[Customer](ctx, id)
}

// WalkInCustomerName is what display surfaces render when a jobsheet carries no
// customer reference.
const WalkInCustomerName = "Walk-in"

// GetCustomerDisplayName degrades gracefully: a nil or dangling reference
// never aborts the surrounding read.
func GetCustomerDisplayName(ctx context.Context, customerId *int) string {
	if customerId == nil {
		return WalkInCustomerName
	}
	customer, err := GetCustomer(ctx, *customerId)
	if err != nil {
		return WalkInCustomerName
	}
	return customer.Name
}
