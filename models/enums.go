package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type JobsheetState string

const (
	JobsheetStatePending    JobsheetState = "pending"
	JobsheetStateInProgress JobsheetState = "in progress"
	JobsheetStateCompleted  JobsheetState = "completed"
	JobsheetStateCancelled  JobsheetState = "cancelled"
)

func (s JobsheetState) IsValid() bool {
	switch s {
	case JobsheetStatePending, JobsheetStateInProgress, JobsheetStateCompleted, JobsheetStateCancelled:
		return true
	}
	return false
}

// WorkflowType is the billing category attached to labor entries. Stored as
// the legacy "1".."6" codes; named constants keep comparisons typed.
type WorkflowType string

const (
	WorkflowTypeRepairs   WorkflowType = "1"
	WorkflowTypeBikeSale  WorkflowType = "2"
	WorkflowTypeInsurance WorkflowType = "3"
	WorkflowTypeHPBQ      WorkflowType = "4"
	WorkflowTypeRoadTax   WorkflowType = "5"
	WorkflowTypeHPNU      WorkflowType = "6"
)

// AllWorkflowTypes returns every workflow type in report order. Reports emit a
// row per type even when the period total is zero, so the shape stays stable.
func AllWorkflowTypes() []WorkflowType {
	return []WorkflowType{
		WorkflowTypeRepairs,
		WorkflowTypeBikeSale,
		WorkflowTypeInsurance,
		WorkflowTypeHPBQ,
		WorkflowTypeRoadTax,
		WorkflowTypeHPNU,
	}
}

var workflowTypeLabels = map[WorkflowType]string{
	WorkflowTypeRepairs:   "Repairs / Parts",
	WorkflowTypeBikeSale:  "Bike Sale",
	WorkflowTypeInsurance: "Insurance",
	WorkflowTypeHPBQ:      "HP - BQ",
	WorkflowTypeRoadTax:   "Road Tax",
	WorkflowTypeHPNU:      "HP - NU",
}

func (t WorkflowType) Label() string {
	if label, ok := workflowTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

func (t WorkflowType) IsValid() bool {
	_, ok := workflowTypeLabels[t]
	return ok
}

func WorkflowTypeFromString(s string) (WorkflowType, error) {
	t := WorkflowType(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid workflow type %q", s)
	}
	return t, nil
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodPaynow PaymentMethod = "paynow"
	PaymentMethodOther  PaymentMethod = "other"
)

// NormalizePaymentMethod case-folds the raw method. Absent defaults to cash;
// anything unrecognized buckets into other.
func NormalizePaymentMethod(raw string) PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PaymentMethodCash
	case "cash":
		return PaymentMethodCash
	case "paynow":
		return PaymentMethodPaynow
	default:
		return PaymentMethodOther
	}
}

type StockReferenceType string

const (
	StockReferenceTypeJobsheetItem   StockReferenceType = "JS_ITEM"
	StockReferenceTypeJobsheetCancel StockReferenceType = "JS_CANCEL"
	StockReferenceTypeJobsheetDelete StockReferenceType = "JS_DELETE"
	StockReferenceTypeGRN            StockReferenceType = "GRN"
)

// BoolFlag normalizes the loose completed/billed representations accepted at
// the API boundary (true/"true"/1/"1" and their false forms) into a strict
// bool. Any other representation is rejected.
type BoolFlag bool

func (b *BoolFlag) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = BoolFlag(v)
		return nil
	case string:
		switch strings.ToLower(v) {
		case "true", "1":
			*b = true
			return nil
		case "false", "0":
			*b = false
			return nil
		}
	case float64:
		if v == 1 {
			*b = true
			return nil
		}
		if v == 0 {
			*b = false
			return nil
		}
	}
	return fmt.Errorf("invalid boolean flag %s", string(data))
}

func (b BoolFlag) Bool() bool { return bool(b) }

type MyDateString time.Time

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format("2006-01-02T15:04:05"))
}

func (t *MyDateString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("date must be string")
	}
	parsed, err := ParseMyDateString(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseMyDateString accepts a plain date or a date-time without zone.
func ParseMyDateString(str string) (MyDateString, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05"} {
		if localTime, err := time.Parse(layout, str); err == nil {
			return MyDateString(localTime), nil
		}
	}
	return MyDateString{}, fmt.Errorf("error parsing date %q", str)
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Asia/Singapore"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)

	*t = MyDateString(localTimeInZone.In(time.UTC))

	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Asia/Singapore"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 999, // Max nanoseconds
		location,
	)

	*t = MyDateString(localTimeInZone.In(time.UTC))

	return nil
}

// DateString renders just the calendar date, for cache keys and filenames.
func (t MyDateString) DateString() string {
	return time.Time(t).Format("2006-01-02")
}

// Value implements the driver.Valuer interface
func (t MyDateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *MyDateString) Scan(value interface{}) error {
	if value == nil {
		*t = MyDateString(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = MyDateString(v)
	default:
		return fmt.Errorf("cannot convert %T to MyDateString", value)
	}
	return nil
}
