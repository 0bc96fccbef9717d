// Package scanner evaluates ordered regex pattern sets against repository file contents.
package scanner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity represents the importance level of a finding
type Severity int

const (
	SeverityCritical Severity = iota + 1
	SeverityHigh
	SeverityMedium
	SeverityInfo
)

// Severities lists every severity in rank order
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityInfo}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a string to Severity. Returns 0 if unrecognized.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM":
		return SeverityMedium
	case "INFO":
		return SeverityInfo
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed := ParseSeverity(string(text))
	if parsed == 0 {
		return fmt.Errorf("unknown severity %q", string(text))
	}
	*s = parsed
	return nil
}

// Finding is one fired pattern with every file that matched it
type Finding struct {
	Pattern     string
	Severity    Severity
	Description string
	Files       []string
	Count       int
	Branch      string
}

// findingJSON is the persisted form; files are stored comma-joined
type findingJSON struct {
	Pattern     string   `json:"pattern"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Files       string   `json:"files"`
	Count       int      `json:"count"`
	Branch      string   `json:"branch"`
}

// MarshalJSON implements json.Marshaler
func (f Finding) MarshalJSON() ([]byte, error) {
	return json.Marshal(findingJSON{
		Pattern:     f.Pattern,
		Severity:    f.Severity,
		Description: f.Description,
		Files:       strings.Join(f.Files, ","),
		Count:       f.Count,
		Branch:      f.Branch,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw findingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var files []string
	if raw.Files != "" {
		files = strings.Split(raw.Files, ",")
	}

	*f = Finding{
		Pattern:     raw.Pattern,
		Severity:    raw.Severity,
		Description: raw.Description,
		Files:       files,
		Count:       raw.Count,
		Branch:      raw.Branch,
	}
	return nil
}

// FirstFile returns the first matching file, or "" when the finding has none
func (f Finding) FirstFile() string {
	if len(f.Files) == 0 {
		return ""
	}
	return f.Files[0]
}

// HighestSeverity returns the most severe level among findings, or 0 when empty
func HighestSeverity(findings []Finding) Severity {
	var highest Severity
	for _, f := range findings {
		if highest == 0 || f.Severity < highest {
			highest = f.Severity
		}
	}
	return highest
}
