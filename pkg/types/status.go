package types

import (
	"fmt"
	"strings"
)

// Severity orders status entries. The zero value means OK.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityFatal
)

// String returns the string representation of Severity
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// SourceContext points a status entry at a region of a source file.
type SourceContext struct {
	File    string
	Start   int
	End     int
	Line    int
	Snippet string
}

func (c *SourceContext) String() string {
	if c == nil {
		return ""
	}
	if c.Line > 0 {
		return fmt.Sprintf("%s:%d", c.File, c.Line)
	}
	return fmt.Sprintf("%s[%d,%d]", c.File, c.Start, c.End-c.Start)
}

// StatusEntry is a single message of a Status.
type StatusEntry struct {
	Severity Severity
	Message  string
	Code     string
	Context  *SourceContext
}

// Status is an ordered, severity-leveled list of messages produced by the
// checking and rewriting stages.
type Status struct {
	entries []StatusEntry
}

// NewStatus returns an empty (OK) status.
func NewStatus() *Status {
	return &Status{}
}

// FatalStatus returns a status holding one fatal entry.
func FatalStatus(msg string, ctx *SourceContext) *Status {
	s := NewStatus()
	s.AddFatal(msg, ctx)
	return s
}

func (s *Status) add(sev Severity, code, msg string, ctx *SourceContext) {
	s.entries = append(s.entries, StatusEntry{Severity: sev, Message: msg, Code: code, Context: ctx})
}

func (s *Status) AddInfo(msg string, ctx *SourceContext)    { s.add(SeverityInfo, "", msg, ctx) }
func (s *Status) AddWarning(msg string, ctx *SourceContext) { s.add(SeverityWarning, "", msg, ctx) }
func (s *Status) AddError(msg string, ctx *SourceContext)   { s.add(SeverityError, "", msg, ctx) }
func (s *Status) AddFatal(msg string, ctx *SourceContext)   { s.add(SeverityFatal, "", msg, ctx) }

// AddEntry appends an entry carrying a machine readable code.
func (s *Status) AddEntry(sev Severity, code, msg string, ctx *SourceContext) {
	s.add(sev, code, msg, ctx)
}

// Merge appends all entries of other.
func (s *Status) Merge(other *Status) {
	if other == nil {
		return
	}
	s.entries = append(s.entries, other.entries...)
}

// Severity returns the highest severity of all entries.
func (s *Status) Severity() Severity {
	if s == nil {
		return SeverityOK
	}
	max := SeverityOK
	for _, e := range s.entries {
		if e.Severity > max {
			max = e.Severity
		}
	}
	return max
}

func (s *Status) IsOK() bool       { return s.Severity() == SeverityOK }
func (s *Status) HasFatal() bool   { return s.Severity() == SeverityFatal }
func (s *Status) HasError() bool   { return s.Severity() >= SeverityError }
func (s *Status) HasWarning() bool { return s.Severity() >= SeverityWarning }
func (s *Status) Len() int         { return len(s.entries) }
func (s *Status) Entries() []StatusEntry {
	if s == nil {
		return nil
	}
	out := make([]StatusEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FirstMessage returns the message of the first entry at or above sev.
func (s *Status) FirstMessage(sev Severity) string {
	if s == nil {
		return ""
	}
	for _, e := range s.entries {
		if e.Severity >= sev {
			return e.Message
		}
	}
	return ""
}

// EntryWithCode returns the first entry with the given code.
func (s *Status) EntryWithCode(code string) (StatusEntry, bool) {
	if s != nil {
		for _, e := range s.entries {
			if e.Code == code {
				return e, true
			}
		}
	}
	return StatusEntry{}, false
}

func (s *Status) String() string {
	if s == nil || len(s.entries) == 0 {
		return "<OK>"
	}
	var b strings.Builder
	for i, e := range s.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", e.Severity, e.Message)
		if e.Context != nil {
			fmt.Fprintf(&b, " (%s)", e.Context)
		}
	}
	return b.String()
}
