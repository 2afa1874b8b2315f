package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RelaySuffixMask truncates a node id to the single byte carried in relay telemetry.
const RelaySuffixMask = 0xFF

// NodeID is the 32-bit node number used on the mesh.
type NodeID uint32

// Suffix returns the low byte of the id, as it appears in relay telemetry.
func (id NodeID) Suffix() uint8 {
	return uint8(uint32(id) & RelaySuffixMask)
}

// String renders the id in user id form (!0000abcd).
func (id NodeID) String() string {
	return fmt.Sprintf("!%08x", uint32(id))
}

// ParseNodeID accepts "!0000abcd", "0xabcd" or a decimal node number.
func ParseNodeID(value string) (NodeID, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("empty node id")
	}

	var (
		n   uint64
		err error
	)
	switch {
	case strings.HasPrefix(v, "!"):
		n, err = strconv.ParseUint(v[1:], 16, 32)
	case strings.HasPrefix(v, "0x"), strings.HasPrefix(v, "0X"):
		n, err = strconv.ParseUint(v[2:], 16, 32)
	default:
		n, err = strconv.ParseUint(v, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", value, err)
	}
	return NodeID(n), nil
}

// Node is one known mesh participant as last reported by the radio.
type Node struct {
	ID            NodeID
	ShortName     string
	LongName      string
	Role          string
	LastHeard     int64 // unix seconds; 0 = never heard
	SNR           float64
	RSSI          int
	HopsAway      int
	HopStart      int
	RelaySuffix   *uint8 // nil when no relay was recorded
	UptimeSeconds uint32
}

// Heard reports whether the node has been received at least once.
func (n Node) Heard() bool {
	return n.LastHeard != 0
}

// Snapshot maps node ids to their last known state. Treat as read-only.
type Snapshot map[NodeID]Node

// Attribution is a single relay attribution row for reporting.
type Attribution struct {
	Timestamp   time.Time
	NodeID      NodeID
	RelaySuffix uint8
	Kind        string // none|unambiguous|ambiguous
	Candidates  int
	BestID      NodeID // zero when Candidates == 0
	BestScore   float64
	HopsAway    int
	HopStart    int
}
