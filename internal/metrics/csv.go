package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"meshdiag/internal/format"
	"meshdiag/internal/model"
)

var header = []string{
	"timestamp",
	"node_id",
	"relay_suffix",
	"kind",
	"candidates",
	"best_id",
	"best_score",
	"hops_away",
	"hop_start",
}

// WriteCSV writes attribution rows to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []model.Attribution) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// AppendCSV appends rows to path, writing the header only when the file is new or empty.
func AppendCSV(path string, items []model.Attribution) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func writeRecords(writer *csv.Writer, items []model.Attribution) error {
	for _, a := range items {
		bestID := ""
		if a.Candidates > 0 {
			bestID = a.BestID.String()
		}
		record := []string{
			a.Timestamp.UTC().Format(time.RFC3339Nano),
			a.NodeID.String(),
			format.SuffixHex(a.RelaySuffix),
			a.Kind,
			strconv.Itoa(a.Candidates),
			bestID,
			strconv.FormatFloat(a.BestScore, 'f', 3, 64),
			strconv.Itoa(a.HopsAway),
			strconv.Itoa(a.HopStart),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
