package dashboard

import "github.com/adflowhq/adflow/internal/models"

// Summary holds the aggregated view of a client's weekly reports.
type Summary struct {
	Spend       float64 `json:"spend"`
	Leads       int64   `json:"leads"`
	Sales       int64   `json:"sales"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`

	// CPL floors the lead count at 1 so that a spend with zero leads
	// still reads as a cost, not an undefined ratio. The dashboard's
	// zero state depends on this.
	CPL float64 `json:"cpl"`
	CR  float64 `json:"cr"`
	CPM float64 `json:"cpm"`
	CTR float64 `json:"ctr"`
}

// Aggregate reduces a client's reports into a Summary. It is a pure
// function: an empty slice yields the zero Summary, never an error.
func Aggregate(reports []*models.WeeklyReport) Summary {
	var s Summary
	if len(reports) == 0 {
		return s
	}
	for _, r := range reports {
		s.Spend += r.Spend
		s.Leads += r.Leads
		s.Sales += r.Sales
		s.Impressions += r.Impressions
		s.Clicks += r.Clicks
	}
	leads := s.Leads
	if leads == 0 {
		leads = 1
	}
	s.CPL = s.Spend / float64(leads)
	s.CR = float64(s.Sales) / float64(leads) * 100
	if s.Impressions > 0 {
		s.CPM = s.Spend / float64(s.Impressions) * 1000
		s.CTR = float64(s.Clicks) / float64(s.Impressions) * 100
	}
	return s
}
