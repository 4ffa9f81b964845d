package domain

import "time"

type ClientID string
type ViewerID string

type ClientStatus string

const (
	ClientOnline  ClientStatus = "online"
	ClientOffline ClientStatus = "offline"
)

// Client is a remote capture agent. Records are soft-retained: a client
// that goes offline keeps its entry with status flipped.
type Client struct {
	ID       ClientID          `json:"id"`
	Address  string            `json:"address"`
	Status   ClientStatus      `json:"status"`
	LastSeen time.Time         `json:"last_seen"`
	Settings map[string]string `json:"settings,omitempty"`
}

func (c *Client) Online() bool {
	return c.Status == ClientOnline
}
