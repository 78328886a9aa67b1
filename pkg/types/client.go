package types

import (
	"fmt"
	"strconv"
	"time"
)

// Endpoint is one monitored automation system of a client.
type Endpoint struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"endpoint" yaml:"endpoint"`
}

// Client is an organisation whose automation systems are monitored.
type Client struct {
	ID               string            `json:"client_id"`
	Name             string            `json:"name"`
	Industry         string            `json:"industry,omitempty"`
	ContactEmail     string            `json:"contact_email,omitempty"`
	AlertPreferences map[string]string `json:"alert_preferences,omitempty"`
	Systems          []Endpoint        `json:"systems"`
	Active           bool              `json:"active"`
	CreatedAt        time.Time         `json:"created_at"`
}

// SystemName returns the display name of the i-th system, falling back to
// a synthetic "system_<n>" label (1-based) when the name is blank.
func (c *Client) SystemName(i int) string {
	if i >= 0 && i < len(c.Systems) && c.Systems[i].Name != "" {
		return c.Systems[i].Name
	}
	return "system_" + strconv.Itoa(i+1)
}

// Clone returns a deep copy of c.
func (c *Client) Clone() *Client {
	cp := *c
	cp.Systems = append([]Endpoint(nil), c.Systems...)
	if c.AlertPreferences != nil {
		cp.AlertPreferences = make(map[string]string, len(c.AlertPreferences))
		for k, v := range c.AlertPreferences {
			cp.AlertPreferences[k] = v
		}
	}
	return &cp
}

// Validate checks the structural constraints of a client record.
func (c *Client) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("client_id is required: %w", ErrConfiguration)
	}
	for i, s := range c.Systems {
		if s.URL == "" {
			return fmt.Errorf("client %q system %d: endpoint is required: %w", c.ID, i+1, ErrConfiguration)
		}
	}
	return nil
}
