package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockMovement is the append-only trail behind every product quantity change.
// Rows are only ever inserted, inside the same transaction as the change they
// describe.
type StockMovement struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ProductId     int                `gorm:"index;not null" json:"product_id"`
	Qty           int                `gorm:"not null" json:"qty"`
	ClosingQty    int                `gorm:"not null" json:"closing_qty"`
	ReferenceType StockReferenceType `gorm:"type:enum('JS_ITEM','JS_CANCEL','JS_DELETE','GRN');not null" json:"reference_type"`
	ReferenceId   int                `json:"reference_id"`
	Description   string             `gorm:"size:100" json:"description"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// AdjustStock applies a signed quantity delta to a product row inside the
// caller's transaction. Negative deltas consume stock and fail with
// ErrorInsufficientStock when the result would go below zero; positive deltas
// (returns, restores, GRN receipts) never fail on quantity grounds.
//
// The product row is read FOR UPDATE so concurrent adjustments on the same
// product serialize; the lock is held until the enclosing transaction ends.
func AdjustStock(tx *gorm.DB, productId int, delta int, refType StockReferenceType, refId int, description string) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	if delta == 0 {
		return nil
	}

	var product Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productId).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	closingQty := product.Stock + delta
	if closingQty < 0 {
		return utils.ErrorInsufficientStock
	}

	if err := tx.Model(&Product{}).Where("id = ?", productId).
		Update("stock", closingQty).Error; err != nil {
		return err
	}

	movement := StockMovement{
		ProductId:     productId,
		Qty:           delta,
		ClosingQty:    closingQty,
		ReferenceType: refType,
		ReferenceId:   refId,
		Description:   description,
	}
	return tx.Create(&movement).Error
}

// GetStockMovements lists the audit trail, newest first, optionally narrowed
// to one product and/or reference type.
func GetStockMovements(ctx context.Context, productId *int, refType *string) ([]*StockMovement, error) {

	db := config.GetDB()

	sqlTemplate := `
SELECT *
FROM stock_movements
WHERE 1 = 1
{{if .hasProductId}}    AND product_id = @productId{{end}}
{{if .hasRefType}}    AND reference_type = @refType{{end}}
ORDER BY id DESC
`
	templateData := map[string]interface{}{
		"hasProductId": productId != nil,
		"hasRefType":   refType != nil && *refType != "",
	}
	sql, err := utils.ExecTemplate(sqlTemplate, templateData)
	if err != nil {
		return nil, err
	}

	var movements []*StockMovement
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"productId": utils.DereferencePtr(productId),
		"refType":   utils.DereferencePtr(refType),
	}).Scan(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
