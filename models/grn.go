package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

// SupplierInvoice is a goods-received note: it restocks inventory and can
// auto-attach the received items to a jobsheet in the same transaction.
type SupplierInvoice struct {
	ID            int                   `gorm:"primary_key" json:"id"`
	SupplierName  string                `gorm:"size:100;not null" json:"supplier_name"`
	InvoiceNumber string                `gorm:"size:100;not null" json:"invoice_number"`
	JobsheetId    *int                  `gorm:"index" json:"jobsheet_id"`
	Items         []SupplierInvoiceItem `gorm:"foreignKey:SupplierInvoiceId" json:"items"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

type SupplierInvoiceItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SupplierInvoiceId int             `gorm:"index;not null" json:"supplier_invoice_id"`
	ProductId         int             `gorm:"index;not null" json:"product_id"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
}

type NewSupplierInvoice struct {
	SupplierName  string                   `json:"supplier_name" binding:"required"`
	InvoiceNumber string                   `json:"invoice_number" binding:"required"`
	JobsheetId    *int                     `json:"jobsheet_id"`
	Items         []NewSupplierInvoiceItem `json:"items" binding:"required,dive"`
}

type NewSupplierInvoiceItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// CreateSupplierInvoice ingests a GRN. Items are processed sequentially so
// per-product row locks are acquired and released in turn; a Redis lock
// additionally serializes bulk ingestion best-effort. When a jobsheet is
// given, each received item is also attached to it (at the product's current
// sale price) and the jobsheet total recomputed, all in one transaction.
func CreateSupplierInvoice(ctx context.Context, input *NewSupplierInvoice) (*SupplierInvoice, error) {

	db := config.GetDB()

	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("items are required")
	}
	for _, line := range input.Items {
		if err := utils.ValidateResourceId[Product](ctx, line.ProductId); err != nil {
			return nil, err
		}
	}
	var jobsheet *Jobsheet
	if input.JobsheetId != nil {
		js, err := utils.FetchModel[Jobsheet](ctx, *input.JobsheetId)
		if err != nil {
			return nil, err
		}
		jobsheet = js
	}

	release, err := utils.StockLock(ctx, "grn", "grn.go", "CreateSupplierInvoice")
	if err != nil {
		return nil, err
	}
	defer release()

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	invoice := SupplierInvoice{
		SupplierName:  input.SupplierName,
		InvoiceNumber: input.InvoiceNumber,
		JobsheetId:    input.JobsheetId,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, line := range input.Items {
		item := SupplierInvoiceItem{
			SupplierInvoiceId: invoice.ID,
			ProductId:         line.ProductId,
			Quantity:          line.Quantity,
			UnitCost:          line.UnitCost,
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		invoice.Items = append(invoice.Items, item)

		if err := AdjustStock(tx, line.ProductId, line.Quantity,
			StockReferenceTypeGRN, invoice.ID, "goods received"); err != nil {
			tx.Rollback()
			return nil, err
		}
		// Latest supplier cost becomes the product cost.
		if err := tx.Model(&Product{}).Where("id = ?", line.ProductId).
			Update("cost", line.UnitCost).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		if jobsheet != nil {
			var product Product
			if err := tx.Where("id = ?", line.ProductId).First(&product).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			jsItem := JobsheetItem{
				JobsheetId: jobsheet.ID,
				ProductId:  line.ProductId,
				Quantity:   line.Quantity,
				Price:      product.Sale,
			}
			if err := tx.Create(&jsItem).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := AdjustStock(tx, line.ProductId, -line.Quantity,
				StockReferenceTypeJobsheetItem, jsItem.ID, "part attached from GRN"); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := ensureCompatibilityOnAttach(tx, jobsheet, line.ProductId); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if jobsheet != nil {
		if err := recomputeJobsheetTotal(tx, jobsheet.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}
