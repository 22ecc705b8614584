// Package normalize turns heterogeneous alert and rule records into the
// canonical forms used for matching.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"alertlens/pkg/models"
)

// Record is a raw alert or rule with no fixed schema.
type Record map[string]any

// Alias maps a canonical field to the keys it may appear under, in priority
// order, and the value used when none of them is set.
type Alias struct {
	Field   string
	Keys    []string
	Default string
}

// AlertAliases is the coalescing table for raw alerts.
var AlertAliases = []Alias{
	{Field: "source", Keys: []string{"source"}, Default: "Unknown"},
	{Field: "alert_id", Keys: []string{"alert_id", "id", "uuid"}},
	{Field: "title", Keys: []string{"title", "alert_name", "Name", "threatName", "event_type"}, Default: "Unknown Alert"},
	{Field: "tactic", Keys: []string{"tactic", "Tactic", "attack_tactic", "mitreTactic"}},
	{Field: "technique", Keys: []string{"technique", "Technique", "attack_technique", "mitreTechnique"}},
	{Field: "technique_id", Keys: []string{"technique_id", "attack_id", "techniqueId", "mitreID"}},
	{Field: "process", Keys: []string{"process", "application", "processName", "Process"}},
	{Field: "host", Keys: []string{"host", "host_name", "HostName", "agentComputerName", "asset_id", "resource", "src_device"}},
	{Field: "user", Keys: []string{"user", "user_name", "User", "username", "principal", "userName"}},
	{Field: "timestamp", Keys: []string{"timestamp", "log_time", "time", "event_time", "Timestamp", "time_detected"}},
}

// AlertTextFields is the field order used to build an alert's query text.
var AlertTextFields = []string{"title", "description", "tactic", "technique", "process", "host", "user"}

// Resolve returns the first non-empty value among keys, or def.
func (r Record) Resolve(keys []string, def string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return def
}

// Field returns the value stored under name as a string.
func (r Record) Field(name string) string {
	return stringify(r[name])
}

// Coalesce resolves every alias in table into a flat record.
func Coalesce(r Record, table []Alias) Record {
	out := make(Record, len(table))
	for _, a := range table {
		out[a.Field] = r.Resolve(a.Keys, a.Default)
	}
	return out
}

// Alert coalesces a raw alert and synthesizes its description.
func Alert(r Record) models.Alert {
	c := Coalesce(r, AlertAliases)
	a := models.Alert{
		Source:      c.Field("source"),
		AlertID:     c.Field("alert_id"),
		Title:       c.Field("title"),
		Tactic:      c.Field("tactic"),
		Technique:   c.Field("technique"),
		TechniqueID: c.Field("technique_id"),
		Process:     c.Field("process"),
		Host:        c.Field("host"),
		User:        c.Field("user"),
		Timestamp:   c.Field("timestamp"),
	}
	a.Description = fmt.Sprintf("%s involving %s on %s by %s", a.Title, a.Process, a.Host, a.User)
	return a
}

// Text joins the trimmed values of fields in order, skipping empty ones.
func Text(r Record, fields []string, sep string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(r.Field(f)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

// AlertText is the embedding query for an alert.
func AlertText(a models.Alert) string {
	return Text(AlertRecord(a), AlertTextFields, " ")
}

// RuleText is the embedding document for a rule.
func RuleText(r models.Rule) string {
	return fmt.Sprintf("%s\n%s %s (%s)\n%s\n%s", r.Title, r.TechniqueID, r.Technique, r.Tactic, r.Description, r.Query)
}

// AlertRecord exposes a normalized alert as a Record.
func AlertRecord(a models.Alert) Record {
	return Record{
		"source":       a.Source,
		"alert_id":     a.AlertID,
		"title":        a.Title,
		"tactic":       a.Tactic,
		"technique":    a.Technique,
		"technique_id": a.TechniqueID,
		"process":      a.Process,
		"host":         a.Host,
		"user":         a.User,
		"timestamp":    a.Timestamp,
		"description":  a.Description,
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return ""
	case int:
		if val == 0 {
			return ""
		}
		return strconv.Itoa(val)
	case int64:
		if val == 0 {
			return ""
		}
		return strconv.FormatInt(val, 10)
	case float64:
		if val == 0 {
			return ""
		}
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
