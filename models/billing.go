package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GSTRate applies to parts (items) only, never to labor.
var GSTRate = decimal.NewFromFloat(0.09)

// recomputeJobsheetTotal refreshes the jobsheet's materialized total from
// persisted rows: items at their snapshot price plus labor entries that are
// both completed and billed. Must run inside the same transaction as whatever
// mutation changed either sum; the cached column is never trusted stale.
func recomputeJobsheetTotal(tx *gorm.DB, jobsheetId int) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	sql := `
UPDATE jobsheets
SET total_amount = (
        SELECT COALESCE(SUM(quantity * price), 0)
        FROM jobsheet_items
        WHERE jobsheet_id = @jobsheetId
    ) + (
        SELECT COALESCE(SUM(price), 0)
        FROM labors
        WHERE jobsheet_id = @jobsheetId
          AND is_completed = 1
          AND is_billed = 1
    )
WHERE id = @jobsheetId
`
	return tx.Exec(sql, map[string]interface{}{
		"jobsheetId": jobsheetId,
	}).Error
}

// AllocateProportional scales payment by share/total. A non-positive share or
// total yields zero, never a fault.
func AllocateProportional(share, total, payment decimal.Decimal) decimal.Decimal {
	if share.IsPositive() && total.IsPositive() {
		return payment.Mul(share).Div(total)
	}
	return decimal.Zero
}
