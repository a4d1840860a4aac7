package dashboard

import (
	"testing"

	"github.com/adflowhq/adflow/internal/models"
)

func report(spend float64, impressions, clicks, leads, sales int64) *models.WeeklyReport {
	return &models.WeeklyReport{
		Spend:       spend,
		Impressions: impressions,
		Clicks:      clicks,
		Leads:       leads,
		Sales:       sales,
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	if s != (Summary{}) {
		t.Fatalf("empty input should aggregate to zero summary, got %+v", s)
	}
}

func TestAggregateSingleWeek(t *testing.T) {
	s := Aggregate([]*models.WeeklyReport{report(100, 1000, 20, 10, 2)})

	if s.Spend != 100 || s.Leads != 10 || s.Sales != 2 {
		t.Fatalf("totals wrong: %+v", s)
	}
	if s.CPL != 10 {
		t.Errorf("cpl = %v, want 10", s.CPL)
	}
	if s.CR != 20 {
		t.Errorf("cr = %v, want 20", s.CR)
	}
	if s.CPM != 100 {
		t.Errorf("cpm = %v, want 100", s.CPM)
	}
	if s.CTR != 2 {
		t.Errorf("ctr = %v, want 2", s.CTR)
	}
}

func TestAggregateMultipleWeeks(t *testing.T) {
	s := Aggregate([]*models.WeeklyReport{
		report(50, 500, 10, 5, 1),
		report(150, 1500, 40, 15, 3),
	})

	if s.Spend != 200 {
		t.Errorf("spend = %v, want 200", s.Spend)
	}
	if s.CPL != 10 {
		t.Errorf("cpl = %v, want 10", s.CPL)
	}
	if s.CTR != 2.5 {
		t.Errorf("ctr = %v, want 2.5", s.CTR)
	}
}

func TestAggregateZeroLeadsFloorsDenominator(t *testing.T) {
	s := Aggregate([]*models.WeeklyReport{report(80, 0, 0, 0, 0)})

	// spend / max(leads, 1): zero leads never divides by zero.
	if s.CPL != 80 {
		t.Errorf("cpl = %v, want 80", s.CPL)
	}
	if s.CR != 0 {
		t.Errorf("cr = %v, want 0", s.CR)
	}
}

func TestAggregateCPLZeroOnlyWhenSpendAndLeadsZero(t *testing.T) {
	if s := Aggregate([]*models.WeeklyReport{report(0, 100, 5, 0, 0)}); s.CPL != 0 {
		t.Errorf("cpl = %v, want 0 for zero spend and zero leads", s.CPL)
	}
	if s := Aggregate([]*models.WeeklyReport{report(10, 100, 5, 0, 0)}); s.CPL == 0 {
		t.Error("cpl should be non-zero when spend is non-zero")
	}
}

func TestAggregateZeroImpressions(t *testing.T) {
	s := Aggregate([]*models.WeeklyReport{report(40, 0, 10, 4, 1)})

	if s.CPM != 0 {
		t.Errorf("cpm = %v, want 0 when impressions are 0", s.CPM)
	}
	if s.CTR != 0 {
		t.Errorf("ctr = %v, want 0 when impressions are 0", s.CTR)
	}
}
