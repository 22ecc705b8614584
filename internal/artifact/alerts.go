package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"alertlens/internal/normalize"
)

// ReadAlertRecords loads raw alerts from path. Accepted layouts are a
// {"alerts": [...]} document, a bare JSON array, or JSON lines.
func ReadAlertRecords(path string) ([]normalize.Record, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := DecodeAlertRecords(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// DecodeAlertRecords decodes raw alerts from any accepted layout.
func DecodeAlertRecords(b []byte) ([]normalize.Record, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return []normalize.Record{}, nil
	}

	switch trimmed[0] {
	case '[':
		var recs []normalize.Record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode alert array: %w", err)
		}
		return recs, nil
	case '{':
		var doc struct {
			Alerts []normalize.Record `json:"alerts"`
		}
		if err := json.Unmarshal(trimmed, &doc); err == nil && doc.Alerts != nil {
			return doc.Alerts, nil
		}
	}
	return decodeLines(trimmed)
}

func decodeLines(b []byte) ([]normalize.Record, error) {
	recs := make([]normalize.Record, 0, 64)
	for i, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var r normalize.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("line %d: decode alert: %w", i+1, err)
		}
		recs = append(recs, r)
	}
	return recs, nil
}
