package reports_test

import (
	"testing"

	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/sgmotoworks/workshop_backend/models/reports"
)

func TestBuildWorkflowPaymentBreakdown(t *testing.T) {
	a := fixtureFinancials(t)
	a.LaborByWorkflow[models.WorkflowTypeRepairs] = dec(t, "120")
	a.LaborByWorkflow[models.WorkflowTypeRoadTax] = dec(t, "80")
	a.PaymentsByMethod[models.PaymentMethodCash] = dec(t, "100")

	b := fixtureFinancials(t)
	b.JobsheetId = 42
	b.ItemsSubtotal = dec(t, "50")
	b.PaymentsByMethod[models.PaymentMethodPaynow] = dec(t, "54.50")

	rows := reports.BuildWorkflowPaymentBreakdown([]*reports.JobsheetFinancials{a, b})

	// Six workflow rows plus a total row; no unattributed bucket here.
	if len(rows) != len(models.AllWorkflowTypes())+1 {
		t.Fatalf("row count = %d, want %d", len(rows), len(models.AllWorkflowTypes())+1)
	}

	byType := map[string]*reports.WorkflowPaymentRow{}
	for _, row := range rows {
		byType[row.WorkflowType] = row
	}

	repairs := byType[string(models.WorkflowTypeRepairs)]
	// Jobsheet a contributes 120 labor, jobsheet b contributes 50 parts.
	if !repairs.RowTotal.Equal(dec(t, "170")) {
		t.Fatalf("repairs row total = %s, want 170", repairs.RowTotal)
	}
	if !repairs.GstValue.Equal(dec(t, "4.5")) {
		t.Fatalf("repairs GST = %s, want 4.5", repairs.GstValue)
	}
	// Jobsheet a's cash splits 120/200 to repairs.
	if !repairs.CashAmount.Equal(dec(t, "60")) {
		t.Fatalf("repairs cash = %s, want 60", repairs.CashAmount)
	}
	if !repairs.PaynowAmount.Equal(dec(t, "54.50")) {
		t.Fatalf("repairs paynow = %s, want 54.50", repairs.PaynowAmount)
	}

	roadTax := byType[string(models.WorkflowTypeRoadTax)]
	if !roadTax.RowTotal.Equal(dec(t, "80")) || !roadTax.CashAmount.Equal(dec(t, "40")) {
		t.Fatalf("road tax row = total %s cash %s", roadTax.RowTotal, roadTax.CashAmount)
	}

	// Idle workflows still appear, zero-valued.
	bikeSale := byType[string(models.WorkflowTypeBikeSale)]
	if bikeSale == nil || !bikeSale.RowTotal.IsZero() {
		t.Fatalf("bike sale row missing or non-zero")
	}

	total := rows[len(rows)-1]
	if total.WorkflowType != "total" || total.WorkflowLabel != "Total" {
		t.Fatalf("last row is %q/%q, want total", total.WorkflowType, total.WorkflowLabel)
	}
	if !total.RowTotal.Equal(dec(t, "250")) {
		t.Fatalf("grand total = %s, want 250", total.RowTotal)
	}
	if !total.CashAmount.Equal(dec(t, "100")) || !total.PaynowAmount.Equal(dec(t, "54.50")) {
		t.Fatalf("grand payments = cash %s paynow %s", total.CashAmount, total.PaynowAmount)
	}
}

func TestBuildWorkflowPaymentBreakdownUnattributedBucket(t *testing.T) {
	f := fixtureFinancials(t)
	f.PaymentsByMethod[models.PaymentMethodOther] = dec(t, "25")

	rows := reports.BuildWorkflowPaymentBreakdown([]*reports.JobsheetFinancials{f})
	if len(rows) != len(models.AllWorkflowTypes())+2 {
		t.Fatalf("row count = %d, want workflows + unattributed + total", len(rows))
	}

	unattributed := rows[len(rows)-2]
	if unattributed.WorkflowLabel != "Unattributed" {
		t.Fatalf("second-to-last row = %q", unattributed.WorkflowLabel)
	}
	if !unattributed.OtherAmount.Equal(dec(t, "25")) {
		t.Fatalf("unattributed other = %s, want 25", unattributed.OtherAmount)
	}

	total := rows[len(rows)-1]
	if !total.OtherAmount.Equal(dec(t, "25")) {
		t.Fatalf("total other = %s, want 25", total.OtherAmount)
	}
}
