package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"meshdiag/internal/model"
)

// ReadCSV loads attribution rows from a CSV file.
func ReadCSV(path string) ([]model.Attribution, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]model.Attribution, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if len(records[0]) > 0 && records[0][0] == "timestamp" {
		start = 1
	}

	items := make([]model.Attribution, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) < len(header) {
			return nil, fmt.Errorf("invalid record at line %d", i+1)
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", i+1, err)
		}
		nodeID, err := model.ParseNodeID(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		suffix, err := strconv.ParseUint(rec[2], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid relay_suffix at line %d: %w", i+1, err)
		}
		var bestID model.NodeID
		if rec[5] != "" {
			bestID, err = model.ParseNodeID(rec[5])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		candidates, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("invalid candidates at line %d: %w", i+1, err)
		}
		score, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid best_score at line %d: %w", i+1, err)
		}
		hopsAway, err := strconv.Atoi(rec[7])
		if err != nil {
			return nil, fmt.Errorf("invalid hops_away at line %d: %w", i+1, err)
		}
		hopStart, err := strconv.Atoi(rec[8])
		if err != nil {
			return nil, fmt.Errorf("invalid hop_start at line %d: %w", i+1, err)
		}
		items = append(items, model.Attribution{
			Timestamp:   ts,
			NodeID:      nodeID,
			RelaySuffix: uint8(suffix),
			Kind:        rec[3],
			Candidates:  candidates,
			BestID:      bestID,
			BestScore:   score,
			HopsAway:    hopsAway,
			HopStart:    hopStart,
		})
	}

	return items, nil
}
