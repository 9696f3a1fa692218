package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

var csvHeader = []string{"at", "actor", "office", "action", "entity", "entity_id", "meta"}

// WriteCSV encodes rows as CSV with a header line.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			data, err := json.Marshal(row.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(data)
		}
		record := []string{row.At.UTC().Format(time.RFC3339), row.Actor, row.Office, row.Action, row.Entity, row.EntityID, meta}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
