package concrnt

import (
	"encoding/json"
	"time"
)

type ConcrntEndpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type WellKnownConcrnt struct {
	Version   string                     `json:"version"`
	Domain    string                     `json:"domain"`
	CSID      string                     `json:"csid"`
	Layer     string                     `json:"layer"`
	Endpoints map[string]ConcrntEndpoint `json:"endpoints"`
}

// Event is the envelope delivered over signal channels and the realtime socket.
type Event struct {
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type CreateCommunityRequest struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type CreateCouncilRequest struct {
	Members []string `json:"members"`
}

type Community struct {
	URI      string   `json:"uri"`
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Owner    string   `json:"owner"`
	Councils []string `json:"councils"`
}

type LatestCommunityID struct {
	ID uint64 `json:"id"`
}
