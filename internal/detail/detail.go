// Package detail assembles the per-node diagnostic view from a snapshot.
package detail

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"meshdiag/internal/api"
	"meshdiag/internal/format"
	"meshdiag/internal/model"
	"meshdiag/internal/relay"
)

// ErrNodeNotFound is returned when the requested node is not in the snapshot.
var ErrNodeNotFound = errors.New("node not found")

// Options controls what the detail view includes.
type Options struct {
	// Owner is the local node; it is never attributed as a relay.
	Owner *model.NodeID
	// ShowRelayInfo enables the relay block for relayed nodes.
	ShowRelayInfo bool
	Now           time.Time
}

// Build returns the detail view for id.
func Build(snap model.Snapshot, id model.NodeID, opts Options) (api.NodeDetail, error) {
	node, ok := snap[id]
	if !ok {
		return api.NodeDetail{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.ID = id

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	short := node.ShortName
	if short == "" {
		short = format.UnknownShortName
	}

	d := api.NodeDetail{
		ID:            id.String(),
		Number:        strconv.FormatUint(uint64(id), 10),
		ShortName:     short,
		LongName:      node.LongName,
		Role:          node.Role,
		LastHeard:     node.LastHeard,
		LastHeardText: format.LastHeard(node.LastHeard, now),
		SNR:           node.SNR,
		RSSI:          node.RSSI,
		HopsAway:      node.HopsAway,
		HopStart:      node.HopStart,
	}
	if node.UptimeSeconds > 0 {
		d.UptimeText = format.Uptime(node.UptimeSeconds)
	}
	if node.HopsAway > 0 {
		d.HopText = format.HopText(node.HopsAway, node.HopStart)
	}

	// Direct receptions already show SNR/RSSI; relay info only applies to relayed packets.
	if opts.ShowRelayInfo && node.HopsAway > 0 && node.RelaySuffix != nil {
		res := relay.ResolveSuffix(snap, opts.Owner, *node.RelaySuffix)
		attr := Attribution(res)
		d.Relay = &attr
	}
	return d, nil
}

// Attribution converts a resolution into its API form.
func Attribution(res relay.Resolution) api.RelayAttribution {
	out := api.RelayAttribution{
		Suffix:     res.Suffix,
		Hex:        format.SuffixHex(res.Suffix),
		Kind:       res.Kind.String(),
		Text:       format.RelayText(res),
		Candidates: make([]api.Candidate, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		out.Candidates = append(out.Candidates, candidate(c))
	}
	if best, ok := res.Best(); ok {
		b := candidate(best)
		out.Best = &b
	}
	return out
}

func candidate(c relay.Candidate) api.Candidate {
	return api.Candidate{
		ID:        c.Node.ID.String(),
		ShortName: c.Node.ShortName,
		LongName:  c.Node.LongName,
		SNR:       c.Node.SNR,
		RSSI:      c.Node.RSSI,
		Score:     c.Score,
	}
}

// Summaries lists the snapshot ordered by node id.
func Summaries(snap model.Snapshot) []api.NodeSummary {
	out := make([]api.NodeSummary, 0, len(snap))
	for id, n := range snap {
		out = append(out, api.NodeSummary{
			ID:        id.String(),
			Number:    uint32(id),
			ShortName: n.ShortName,
			LongName:  n.LongName,
			LastHeard: n.LastHeard,
			HopsAway:  n.HopsAway,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Report resolves the recorded relay of every relayed node, ordered by node id.
func Report(snap model.Snapshot, owner *model.NodeID, now time.Time) []model.Attribution {
	ids := make([]model.NodeID, 0, len(snap))
	for id, n := range snap {
		if n.HopsAway > 0 && n.RelaySuffix != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.Attribution, 0, len(ids))
	for _, id := range ids {
		n := snap[id]
		res := relay.ResolveSuffix(snap, owner, *n.RelaySuffix)
		row := model.Attribution{
			Timestamp:   now.UTC(),
			NodeID:      id,
			RelaySuffix: res.Suffix,
			Kind:        res.Kind.String(),
			Candidates:  len(res.Candidates),
			HopsAway:    n.HopsAway,
			HopStart:    n.HopStart,
		}
		if best, ok := res.Best(); ok {
			row.BestID = best.Node.ID
			row.BestScore = best.Score
		}
		out = append(out, row)
	}
	return out
}
