package api

import "time"

// NodeSummary is one row of the node list.
type NodeSummary struct {
	ID        string `json:"id"`
	Number    uint32 `json:"number"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
	LastHeard int64  `json:"last_heard"`
	HopsAway  int    `json:"hops_away"`
}

// Candidate is a possible relay with its signal score.
type Candidate struct {
	ID        string  `json:"id"`
	ShortName string  `json:"short_name"`
	LongName  string  `json:"long_name"`
	SNR       float64 `json:"snr"`
	RSSI      int     `json:"rssi"`
	Score     float64 `json:"score"`
}

// RelayAttribution describes which known node most likely relayed a packet.
type RelayAttribution struct {
	Suffix     uint8       `json:"suffix"`
	Hex        string      `json:"hex"`
	Kind       string      `json:"kind"`
	Text       string      `json:"text"`
	Best       *Candidate  `json:"best,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// NodeDetail is the per-node diagnostic view.
type NodeDetail struct {
	ID            string            `json:"id"`
	Number        string            `json:"number"`
	ShortName     string            `json:"short_name"`
	LongName      string            `json:"long_name"`
	Role          string            `json:"role,omitempty"`
	LastHeard     int64             `json:"last_heard"`
	LastHeardText string            `json:"last_heard_text"`
	UptimeText    string            `json:"uptime_text,omitempty"`
	SNR           float64           `json:"snr"`
	RSSI          int               `json:"rssi"`
	HopsAway      int               `json:"hops_away"`
	HopStart      int               `json:"hop_start"`
	HopText       string            `json:"hop_text,omitempty"`
	Relay         *RelayAttribution `json:"relay,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Nodes     int       `json:"nodes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is pushed to websocket subscribers after each snapshot reload.
type Event struct {
	Type      string      `json:"type"`
	UpdatedAt time.Time   `json:"updated_at"`
	Nodes     int         `json:"nodes"`
	Node      *NodeDetail `json:"node,omitempty"`
}
