package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sgmotoworks/workshop_backend/models"
)

func TestBoolFlagUnmarshalJSON(t *testing.T) {
	cases := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`"true"`, true, false},
		{`"false"`, false, false},
		{`"TRUE"`, true, false},
		{`"1"`, true, false},
		{`"0"`, false, false},
		{`1`, true, false},
		{`0`, false, false},
		{`"yes"`, false, true},
		{`2`, false, true},
		{`null`, false, true},
		{`{}`, false, true},
	}
	for _, tc := range cases {
		var flag models.BoolFlag
		err := json.Unmarshal([]byte(tc.raw), &flag)
		if tc.wantErr {
			if err == nil {
				t.Errorf("unmarshal %s: expected error, got %v", tc.raw, flag)
			}
			continue
		}
		if err != nil {
			t.Errorf("unmarshal %s: %v", tc.raw, err)
			continue
		}
		if flag.Bool() != tc.want {
			t.Errorf("unmarshal %s = %v, want %v", tc.raw, flag.Bool(), tc.want)
		}
	}
}

func TestNormalizePaymentMethod(t *testing.T) {
	cases := []struct {
		raw  string
		want models.PaymentMethod
	}{
		{"", models.PaymentMethodCash},
		{"   ", models.PaymentMethodCash},
		{"cash", models.PaymentMethodCash},
		{"CASH", models.PaymentMethodCash},
		{"PayNow", models.PaymentMethodPaynow},
		{"paynow", models.PaymentMethodPaynow},
		{"cheque", models.PaymentMethodOther},
		{"bank transfer", models.PaymentMethodOther},
	}
	for _, tc := range cases {
		if got := models.NormalizePaymentMethod(tc.raw); got != tc.want {
			t.Errorf("NormalizePaymentMethod(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestWorkflowTypeFromString(t *testing.T) {
	for _, wt := range models.AllWorkflowTypes() {
		got, err := models.WorkflowTypeFromString(string(wt))
		if err != nil {
			t.Fatalf("WorkflowTypeFromString(%q): %v", wt, err)
		}
		if got != wt {
			t.Fatalf("WorkflowTypeFromString(%q) = %q", wt, got)
		}
	}
	for _, bad := range []string{"", "0", "7", "repairs"} {
		if _, err := models.WorkflowTypeFromString(bad); err == nil {
			t.Errorf("WorkflowTypeFromString(%q): expected error", bad)
		}
	}
}

func TestWorkflowTypeLabels(t *testing.T) {
	if got := models.WorkflowTypeRepairs.Label(); got != "Repairs / Parts" {
		t.Fatalf("repairs label = %q", got)
	}
	if got := models.WorkflowTypeHPNU.Label(); got != "HP - NU" {
		t.Fatalf("HP-NU label = %q", got)
	}
	// Unknown codes fall back to the raw code rather than blowing up.
	if got := models.WorkflowType("9").Label(); got != "9" {
		t.Fatalf("unknown label = %q", got)
	}
}

func TestJobsheetStateIsValid(t *testing.T) {
	for _, s := range []models.JobsheetState{
		models.JobsheetStatePending,
		models.JobsheetStateInProgress,
		models.JobsheetStateCompleted,
		models.JobsheetStateCancelled,
	} {
		if !s.IsValid() {
			t.Errorf("state %q should be valid", s)
		}
	}
	for _, s := range []models.JobsheetState{"", "done", "in-progress", "Pending"} {
		if s.IsValid() {
			t.Errorf("state %q should be invalid", s)
		}
	}
}

func TestParseMyDateString(t *testing.T) {
	d, err := models.ParseMyDateString("2026-03-15")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if got := d.DateString(); got != "2026-03-15" {
		t.Fatalf("DateString = %q", got)
	}

	dt, err := models.ParseMyDateString("2026-03-15T18:30:00")
	if err != nil {
		t.Fatalf("parse datetime: %v", err)
	}
	if !time.Time(dt).Equal(time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)) {
		t.Fatalf("parsed datetime = %v", time.Time(dt))
	}

	if _, err := models.ParseMyDateString("15/03/2026"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

func TestMyDateStringDayBounds(t *testing.T) {
	d, err := models.ParseMyDateString("2026-03-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	start := d
	if err := start.StartOfDayUTCTime("Asia/Singapore"); err != nil {
		t.Fatalf("StartOfDayUTCTime: %v", err)
	}
	// Singapore is UTC+8, so local midnight is 16:00 UTC the previous day.
	wantStart := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	if !time.Time(start).Equal(wantStart) {
		t.Fatalf("start of day = %v, want %v", time.Time(start), wantStart)
	}

	end := d
	if err := end.EndOfDayUTCTime("Asia/Singapore"); err != nil {
		t.Fatalf("EndOfDayUTCTime: %v", err)
	}
	if got := time.Time(end); got.Before(wantStart) || got.After(wantStart.Add(24*time.Hour)) {
		t.Fatalf("end of day = %v outside expected day window", got)
	}
}
