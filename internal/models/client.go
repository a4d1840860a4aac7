package models

import (
	"errors"
	"time"
)

// ConnectionLevel is the granularity at which a client's ad account is
// analyzed: per campaign or per ad set.
type ConnectionLevel string

const (
	ConnectionLevelCampaign ConnectionLevel = "campaign"
	ConnectionLevelAdset    ConnectionLevel = "adset"
)

// Valid reports whether the level is one of the supported values.
func (l ConnectionLevel) Valid() bool {
	return l == ConnectionLevelCampaign || l == ConnectionLevelAdset
}

// Client represents an agency client (tenant). A client owns weekly
// reports and may be linked to a Meta ad account. The invariant held by
// the store: MetaAccountID, MetaBMID and ConnectionLevel are set if and
// only if IsConnected is true.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BusinessType string    `json:"business_type"`
	Niche        string    `json:"niche"`
	TargetRoas   float64   `json:"target_roas"`
	TargetCpl    float64   `json:"target_cpl"`
	CreatedAt    time.Time `json:"created_at"`
	IsConnected  bool      `json:"is_connected"`

	// Set by the connect flow, empty otherwise.
	MetaAccountID   string          `json:"meta_account_id,omitempty"`
	MetaBMID        string          `json:"meta_bm_id,omitempty"`
	ConnectionLevel ConnectionLevel `json:"connection_level,omitempty"`
}

// Validate checks that required fields are present.
func (c *Client) Validate() error {
	if c == nil {
		return errors.New("client is nil")
	}
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.IsConnected {
		if c.MetaAccountID == "" || c.MetaBMID == "" || !c.ConnectionLevel.Valid() {
			return errors.New("connected client must carry account, business manager and level")
		}
	} else if c.MetaAccountID != "" || c.MetaBMID != "" || c.ConnectionLevel != "" {
		return errors.New("connection fields set on a disconnected client")
	}
	return nil
}

// ClientInput is the payload accepted when creating a client.
type ClientInput struct {
	Name         string  `json:"name"`
	BusinessType string  `json:"business_type"`
	Niche        string  `json:"niche"`
	TargetRoas   float64 `json:"target_roas"`
	TargetCpl    float64 `json:"target_cpl"`
}

// Validate rejects inputs that cannot become a well-formed client.
func (in *ClientInput) Validate() error {
	if in.Name == "" {
		return ErrFieldRequired("name")
	}
	if in.TargetRoas < 0 {
		return ErrFieldInvalid("target_roas")
	}
	if in.TargetCpl < 0 {
		return ErrFieldInvalid("target_cpl")
	}
	return nil
}
