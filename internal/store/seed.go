package store

import (
	"time"

	"github.com/adflowhq/adflow/internal/models"
)

// seedClients is the state a fresh install starts from: one example
// client and no reports.
func seedClients() []*models.Client {
	return []*models.Client{
		{
			ID:           "1",
			Name:         "Example Aesthetics Clinic",
			BusinessType: "Local Service",
			Niche:        "Aesthetics",
			TargetRoas:   3,
			TargetCpl:    15,
			CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			IsConnected:  false,
		},
	}
}
