package models

import (
	"fmt"
	"time"
)

// Platform tags the ad platform a weekly report came from.
type Platform string

const (
	PlatformMeta   Platform = "Meta Ads"
	PlatformGoogle Platform = "Google Ads"
)

// Valid reports whether the platform is one of the supported tags.
func (p Platform) Valid() bool {
	return p == PlatformMeta || p == PlatformGoogle
}

// WeeklyReport is one observation period for one client. Reports are
// immutable once created; they are only removed when the owning client
// is deleted.
type WeeklyReport struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Platform  Platform  `json:"platform"`

	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Reach       int64   `json:"reach"`
	Clicks      int64   `json:"clicks"`
	Leads       int64   `json:"leads"`
	Sales       int64   `json:"sales"`
	Revenue     float64 `json:"revenue"`

	Notes string `json:"notes,omitempty"`
}

// fieldError is a named validation failure for a single input field.
type fieldError struct {
	Field  string
	Reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}

// ErrFieldRequired marks a missing required field.
func ErrFieldRequired(field string) error {
	return &fieldError{Field: field, Reason: "is required"}
}

// ErrFieldInvalid marks a field whose value cannot be accepted.
func ErrFieldInvalid(field string) error {
	return &fieldError{Field: field, Reason: "is invalid"}
}

// IsFieldError reports whether err is a validation failure and, if so,
// which field it names.
func IsFieldError(err error) (string, bool) {
	if fe, ok := err.(*fieldError); ok {
		return fe.Field, true
	}
	return "", false
}

// ReportInput is the payload accepted when recording a weekly report.
// Spend, impressions, clicks, leads and sales are required and carried
// as pointers so that absent fields are distinguishable from zero.
// Reach and revenue default to zero, platform defaults to Meta Ads.
type ReportInput struct {
	ClientID  string    `json:"client_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Platform  Platform  `json:"platform"`

	Spend       *float64 `json:"spend"`
	Impressions *int64   `json:"impressions"`
	Clicks      *int64   `json:"clicks"`
	Leads       *int64   `json:"leads"`
	Sales       *int64   `json:"sales"`
	Reach       *int64   `json:"reach"`
	Revenue     *float64 `json:"revenue"`

	Notes string `json:"notes,omitempty"`
}

// Validate rejects missing or negative numeric fields with a named
// error before the input reaches the store.
func (in *ReportInput) Validate() error {
	if in.ClientID == "" {
		return ErrFieldRequired("client_id")
	}
	if in.StartDate.IsZero() {
		return ErrFieldRequired("start_date")
	}
	if in.EndDate.IsZero() {
		return ErrFieldRequired("end_date")
	}
	required := []struct {
		name string
		ok   bool
		neg  bool
	}{
		{"spend", in.Spend != nil, in.Spend != nil && *in.Spend < 0},
		{"impressions", in.Impressions != nil, in.Impressions != nil && *in.Impressions < 0},
		{"clicks", in.Clicks != nil, in.Clicks != nil && *in.Clicks < 0},
		{"leads", in.Leads != nil, in.Leads != nil && *in.Leads < 0},
		{"sales", in.Sales != nil, in.Sales != nil && *in.Sales < 0},
	}
	for _, f := range required {
		if !f.ok {
			return ErrFieldRequired(f.name)
		}
		if f.neg {
			return ErrFieldInvalid(f.name)
		}
	}
	if in.Reach != nil && *in.Reach < 0 {
		return ErrFieldInvalid("reach")
	}
	if in.Revenue != nil && *in.Revenue < 0 {
		return ErrFieldInvalid("revenue")
	}
	if in.Platform != "" && !in.Platform.Valid() {
		return ErrFieldInvalid("platform")
	}
	return nil
}

// Materialize builds the immutable report record from a validated
// input, applying the documented defaults.
func (in *ReportInput) Materialize(id string) *WeeklyReport {
	r := &WeeklyReport{
		ID:        id,
		ClientID:  in.ClientID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Platform:  in.Platform,
		Notes:     in.Notes,
	}
	if r.Platform == "" {
		r.Platform = PlatformMeta
	}
	if in.Spend != nil {
		r.Spend = *in.Spend
	}
	if in.Impressions != nil {
		r.Impressions = *in.Impressions
	}
	if in.Clicks != nil {
		r.Clicks = *in.Clicks
	}
	if in.Leads != nil {
		r.Leads = *in.Leads
	}
	if in.Sales != nil {
		r.Sales = *in.Sales
	}
	if in.Reach != nil {
		r.Reach = *in.Reach
	}
	if in.Revenue != nil {
		r.Revenue = *in.Revenue
	}
	return r
}
