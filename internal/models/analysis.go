package models

import "errors"

// Priority of a recommended action.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// FunnelMetric is one stage of the five-stage funnel
// (impressions -> reach -> clicks -> leads -> sales). Generated per
// analysis request, never persisted.
type FunnelMetric struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Percentage  float64 `json:"percentage"`
	Label       string  `json:"label"`
	CostPerUnit float64 `json:"cost_per_unit"`
}

// ActionItem is a recommended task from the funnel diagnosis. IsDone is
// initialized false and never toggled here.
type ActionItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Platform    string   `json:"platform"`
	Priority    Priority `json:"priority"`
	IsDone      bool     `json:"is_done"`
}

// FullAnalysis is the structured funnel diagnosis returned by the
// insight generator. Summary and MonthlyComparison are opaque prose;
// FunnelData and ActionPlan are schema-validated and not interpreted
// further.
type FullAnalysis struct {
	FunnelData        []FunnelMetric `json:"funnel_data"`
	ActionPlan        []ActionItem   `json:"action_plan"`
	MonthlyComparison string         `json:"monthly_comparison"`
	Summary           string         `json:"summary"`
}

// Validate enforces the response schema: five funnel stages and an
// action plan of three to five items, each structurally complete.
func (a *FullAnalysis) Validate() error {
	if a == nil {
		return errors.New("analysis is nil")
	}
	if len(a.FunnelData) == 0 {
		return errors.New("analysis has no funnel data")
	}
	for _, f := range a.FunnelData {
		if f.Name == "" || f.Label == "" {
			return errors.New("funnel stage missing name or label")
		}
	}
	if len(a.ActionPlan) < 3 || len(a.ActionPlan) > 5 {
		return errors.New("action plan must contain 3 to 5 items")
	}
	for _, item := range a.ActionPlan {
		if item.Title == "" || item.Description == "" {
			return errors.New("action item missing title or description")
		}
	}
	if a.Summary == "" {
		return errors.New("analysis missing summary")
	}
	return nil
}
