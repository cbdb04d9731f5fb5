package models

import (
	"context"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

// Payment is pure bookkeeping against a jobsheet. Payments never adjust
// stock, compatibility or total_amount; the outstanding balance is reconciled
// at read time.
type Payment struct {
	ID         int             `gorm:"primary_key" json:"id"`
	JobsheetId int             `gorm:"index;not null" json:"jobsheet_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method     PaymentMethod   `gorm:"size:20;not null;default:'cash'" json:"method"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	Amount *decimal.Decimal `json:"amount"`
	Method *string          `json:"method"`
}

type PatchPayment struct {
	Amount *decimal.Decimal `json:"amount"`
	Method *string          `json:"method"`
}

func AddPayment(ctx context.Context, jobsheetId int, input *NewPayment) (*Payment, error) {

	db := config.GetDB()

	if input.Amount == nil {
		return nil, utils.NewValidationError("amount is required")
	}
	if err := utils.ValidateResourceId[Jobsheet](ctx, jobsheetId); err != nil {
		return nil, err
	}

	payment := Payment{
		JobsheetId: jobsheetId,
		Amount:     *input.Amount,
		Method:     NormalizePaymentMethod(utils.DereferencePtr(input.Method)),
	}
	if err := db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func UpdatePayment(ctx context.Context, id int, patch *PatchPayment) (*Payment, error) {

	db := config.GetDB()

	payment, err := utils.FetchModel[Payment](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Amount != nil {
		updates["Amount"] = *patch.Amount
	}
	if patch.Method != nil {
		updates["Method"] = NormalizePaymentMethod(*patch.Method)
	}
	if len(updates) == 0 {
		return payment, nil
	}

	if err := db.WithContext(ctx).Model(&payment).Updates(updates).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func DeletePayment(ctx context.Context, id int) error {

	db := config.GetDB()

	payment, err := utils.FetchModel[Payment](ctx, id)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&payment).Error
}
