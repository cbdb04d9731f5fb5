package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku       string          `gorm:"size:100;uniqueIndex;not null" json:"sku" binding:"required"`
	Stock     int             `gorm:"not null;default:0" json:"stock"`
	Cost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	Sale      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name  string          `json:"name" binding:"required"`
	Sku   string          `json:"sku" binding:"required"`
	Stock int             `json:"stock"`
	Cost  decimal.Decimal `json:"cost"`
	Sale  decimal.Decimal `json:"sale"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProduct) validate(ctx context.Context, id int) error {
	if input.Stock < 0 {
		return utils.NewValidationError("stock cannot be negative")
	}
	// sku
	if err := utils.ValidateUnique[Product](ctx, "sku", input.Sku, id); err != nil {
		return err
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	db := config.GetDB()

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	product := Product{
		Name:  input.Name,
		Sku:   input.Sku,
		Stock: input.Stock,
		Cost:  input.Cost,
		Sale:  input.Sale,
	}

	err := db.WithContext(ctx).Create(&product).Error
	if err != nil {
		if utils.IsDuplicateEntryError(err) {
			return nil, utils.NewValidationError("sku already exists")
		}
		return nil, err
	}

	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id)
}

func GetProducts(ctx context.Context, name *string, sku *string) ([]*Product, error) {

	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if sku != nil && len(*sku) > 0 {
		dbCtx = dbCtx.Where("sku = ?", *sku)
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
