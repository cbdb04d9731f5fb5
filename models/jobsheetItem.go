package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

// JobsheetItem is one part line on a jobsheet. Price is a unit-price snapshot
// taken at attachment time, independent of later product price changes.
type JobsheetItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	JobsheetId int             `gorm:"index;not null" json:"jobsheet_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewJobsheetItem struct {
	ProductId int              `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,gt=0"`
	Price     *decimal.Decimal `json:"price"`
}

type PatchJobsheetItem struct {
	Quantity *int             `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

// AddJobsheetItem attaches a part to a jobsheet: consumes stock, infers
// compatibility and recomputes the total, atomically. Fails with
// ErrorInsufficientStock before any write sticks.
func AddJobsheetItem(ctx context.Context, jobsheetId int, input *NewJobsheetItem) (*JobsheetItem, error) {

	db := config.GetDB()

	jobsheet, err := utils.FetchModel[Jobsheet](ctx, jobsheetId)
	if err != nil {
		return nil, err
	}
	if jobsheet.State == JobsheetStateCancelled {
		return nil, utils.NewValidationError("jobsheet is cancelled")
	}
	product, err := GetProduct(ctx, input.ProductId)
	if err != nil {
		return nil, err
	}

	price := product.Sale
	if input.Price != nil {
		price = *input.Price
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	item := JobsheetItem{
		JobsheetId: jobsheet.ID,
		ProductId:  product.ID,
		Quantity:   input.Quantity,
		Price:      price,
	}
	if err := tx.Create(&item).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := AdjustStock(tx, product.ID, -input.Quantity,
		StockReferenceTypeJobsheetItem, item.ID, "part attached"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ensureCompatibilityOnAttach(tx, jobsheet, product.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recomputeJobsheetTotal(tx, jobsheet.ID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateJobsheetItem adjusts quantity and/or price. A quantity change moves
// stock by the signed difference under the same insufficient-stock guard as
// attachment.
func UpdateJobsheetItem(ctx context.Context, id int, patch *PatchJobsheetItem) (*JobsheetItem, error) {

	db := config.GetDB()

	item, err := utils.FetchModel[JobsheetItem](ctx, id)
	if err != nil {
		return nil, err
	}
	jobsheet, err := utils.FetchModel[Jobsheet](ctx, item.JobsheetId)
	if err != nil {
		return nil, err
	}
	if jobsheet.State == JobsheetStateCancelled {
		return nil, utils.NewValidationError("jobsheet is cancelled")
	}
	if patch.Quantity != nil && *patch.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity must be positive")
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	updates := map[string]interface{}{}
	if patch.Quantity != nil && *patch.Quantity != item.Quantity {
		// attached more => negative delta (consumption)
		delta := item.Quantity - *patch.Quantity
		if err := AdjustStock(tx, item.ProductId, delta,
			StockReferenceTypeJobsheetItem, item.ID, "part quantity changed"); err != nil {
			tx.Rollback()
			return nil, err
		}
		updates["Quantity"] = *patch.Quantity
	}
	if patch.Price != nil {
		updates["Price"] = *patch.Price
	}

	if len(updates) > 0 {
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := recomputeJobsheetTotal(tx, item.JobsheetId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteJobsheetItem detaches a part: restores stock, retracts the inferred
// compatibility when this was the product's last line (unless the jobsheet is
// completed) and recomputes the total.
func DeleteJobsheetItem(ctx context.Context, id int) error {

	db := config.GetDB()

	item, err := utils.FetchModel[JobsheetItem](ctx, id)
	if err != nil {
		return err
	}
	jobsheet, err := utils.FetchModel[Jobsheet](ctx, item.JobsheetId)
	if err != nil {
		return err
	}
	// Cancellation already restored this item's stock; detaching now would
	// restore it a second time.
	if jobsheet.State == JobsheetStateCancelled {
		return utils.NewValidationError("jobsheet is cancelled")
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Delete(&item).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := AdjustStock(tx, item.ProductId, item.Quantity,
		StockReferenceTypeJobsheetItem, item.ID, "part detached"); err != nil {
		tx.Rollback()
		return err
	}
	if err := retractCompatibilityOnDetach(tx, jobsheet, item.ProductId); err != nil {
		tx.Rollback()
		return err
	}
	if err := recomputeJobsheetTotal(tx, jobsheet.ID); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
