package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"meshdiag/internal/model"
	"meshdiag/internal/relay"
)

// Document is the on-disk form of a node snapshot.
type Document struct {
	UpdatedAt time.Time    `yaml:"updated_at"`
	Owner     string       `yaml:"owner,omitempty"`
	Nodes     []NodeRecord `yaml:"nodes"`
}

// NodeRecord is one node as written by the radio repository.
type NodeRecord struct {
	ID            string  `yaml:"id"`
	ShortName     string  `yaml:"short_name,omitempty"`
	LongName      string  `yaml:"long_name,omitempty"`
	Role          string  `yaml:"role,omitempty"`
	LastHeard     int64   `yaml:"last_heard"`
	SNR           float64 `yaml:"snr"`
	RSSI          int     `yaml:"rssi"`
	HopsAway      int     `yaml:"hops_away"`
	HopStart      int     `yaml:"hop_start"`
	RelaySuffix   *int    `yaml:"relay_suffix,omitempty"`
	UptimeSeconds uint32  `yaml:"uptime_seconds,omitempty"`
}

// State is an immutable, decoded snapshot.
type State struct {
	UpdatedAt time.Time
	Owner     *model.NodeID
	Nodes     model.Snapshot
}

// LoadState loads a snapshot from disk. If the file is missing, returns an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Nodes: model.Snapshot{}}, nil
		}
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return decode(doc)
}

// SaveState writes the snapshot to disk.
func SaveState(path string, st *State) error {
	if st == nil {
		return nil
	}
	doc := encode(st)
	doc.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func decode(doc Document) (*State, error) {
	st := &State{
		UpdatedAt: doc.UpdatedAt,
		Nodes:     make(model.Snapshot, len(doc.Nodes)),
	}
	if doc.Owner != "" {
		owner, err := model.ParseNodeID(doc.Owner)
		if err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
		st.Owner = &owner
	}

	for i, rec := range doc.Nodes {
		id, err := model.ParseNodeID(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		if _, dup := st.Nodes[id]; dup {
			return nil, fmt.Errorf("nodes[%d]: duplicate id %s", i, id)
		}
		node := model.Node{
			ID:            id,
			ShortName:     rec.ShortName,
			LongName:      rec.LongName,
			Role:          rec.Role,
			LastHeard:     rec.LastHeard,
			SNR:           rec.SNR,
			RSSI:          rec.RSSI,
			HopsAway:      rec.HopsAway,
			HopStart:      rec.HopStart,
			UptimeSeconds: rec.UptimeSeconds,
		}
		if rec.RelaySuffix != nil {
			s, err := relay.ParseSuffix(*rec.RelaySuffix)
			if err != nil {
				return nil, fmt.Errorf("nodes[%d] %s: %w", i, id, err)
			}
			node.RelaySuffix = &s
		}
		st.Nodes[id] = node
	}
	return st, nil
}

func encode(st *State) Document {
	doc := Document{UpdatedAt: st.UpdatedAt}
	if st.Owner != nil {
		doc.Owner = st.Owner.String()
	}

	ids := make([]model.NodeID, 0, len(st.Nodes))
	for id := range st.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	doc.Nodes = make([]NodeRecord, 0, len(ids))
	for _, id := range ids {
		n := st.Nodes[id]
		rec := NodeRecord{
			ID:            id.String(),
			ShortName:     n.ShortName,
			LongName:      n.LongName,
			Role:          n.Role,
			LastHeard:     n.LastHeard,
			SNR:           n.SNR,
			RSSI:          n.RSSI,
			HopsAway:      n.HopsAway,
			HopStart:      n.HopStart,
			UptimeSeconds: n.UptimeSeconds,
		}
		if n.RelaySuffix != nil {
			v := int(*n.RelaySuffix)
			rec.RelaySuffix = &v
		}
		doc.Nodes = append(doc.Nodes, rec)
	}
	return doc
}
