package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Export renders events in the requested format. Unknown formats render as JSON.
func Export(events []*AuditEvent, format ExportFormat) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case ExportFormatCSV:
		err = writeCSV(&buf, events)
	case ExportFormatNDJSON:
		enc := json.NewEncoder(&buf)
		for _, event := range events {
			if err = enc.Encode(event); err != nil {
				err = fmt.Errorf("failed to encode event %d: %w", event.ID, err)
				break
			}
		}
	default:
		if events == nil {
			events = []*AuditEvent{}
		}
		var out []byte
		out, err = json.MarshalIndent(events, "", "  ")
		buf.Write(out)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// csvColumns mirrors the JSON field names so both exports line up.
var csvColumns = []struct {
	name  string
	value func(e *AuditEvent) string
}{
	{"id", func(e *AuditEvent) string { return strconv.FormatInt(e.ID, 10) }},
	{"timestamp", func(e *AuditEvent) string { return e.Timestamp.UTC().Format(time.RFC3339) }},
	{"event_type", func(e *AuditEvent) string { return string(e.EventType) }},
	{"status", func(e *AuditEvent) string { return string(e.Status) }},
	{"account_id", func(e *AuditEvent) string {
		if e.AccountID == nil {
			return ""
		}
		return strconv.FormatInt(*e.AccountID, 10)
	}},
	{"username", func(e *AuditEvent) string { return e.Username }},
	{"resource_type", func(e *AuditEvent) string { return string(e.ResourceType) }},
	{"resource_id", func(e *AuditEvent) string { return e.ResourceID }},
	{"ip_address", func(e *AuditEvent) string { return e.IPAddress }},
	{"user_agent", func(e *AuditEvent) string { return e.UserAgent }},
	{"request_id", func(e *AuditEvent) string { return e.RequestID }},
	{"message", func(e *AuditEvent) string { return e.Message }},
	{"metadata", func(e *AuditEvent) string {
		if len(e.Metadata) == 0 {
			return ""
		}
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return ""
		}
		return string(b)
	}},
}

func csvHeader() []string {
	header := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		header[i] = c.name
	}
	return header
}

func writeCSV(buf *bytes.Buffer, events []*AuditEvent) error {
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(csvColumns))
	for _, event := range events {
		for i, c := range csvColumns {
			row[i] = neutralizeFormula(c.value(event))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for event %d: %w", event.ID, err)
		}
	}

	w.Flush()
	return w.Error()
}

// neutralizeFormula prefixes cells a spreadsheet would evaluate. Usernames and
// user agents in the log are attacker controlled.
func neutralizeFormula(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
