package core

import (
	"fmt"
	"log/slog"
)

// WarningCode represents structured warning types
type WarningCode string

const (
	WarningUnknownReference  WarningCode = "UNKNOWN_REFERENCE"  // edge target not defined in the ontology
	WarningSelfReference     WarningCode = "SELF_REFERENCE"     // term relates to itself
	WarningMalformedRow      WarningCode = "MALFORMED_ROW"      // association row could not be parsed
	WarningUnknownTerm       WarningCode = "UNKNOWN_TERM"       // term id absent from the graph
	WarningObsoleteTerm      WarningCode = "OBSOLETE_TERM"      // obsolete term reached the tested universe
	WarningUnresolvedClosure WarningCode = "UNRESOLVED_CLOSURE" // obsolete term with no relatives
	WarningCycle             WarningCode = "CYCLE"              // relationship graph is not acyclic
)

// Warning is a recoverable problem surfaced to the caller instead of being swallowed.
type Warning struct {
	Code    WarningCode `json:"code"`
	Entity  string      `json:"entity"`
	Line    int         `json:"line,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s line %d %s: %s", w.Code, w.Line, w.Entity, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Code, w.Entity, w.Message)
}

// LogWarnings writes each warning at WARN level.
func LogWarnings(logger *slog.Logger, warnings []Warning) {
	if logger == nil {
		return
	}
	for _, w := range warnings {
		attrs := []any{"code", string(w.Code), "entity", w.Entity}
		if w.Line > 0 {
			attrs = append(attrs, "line", w.Line)
		}
		logger.Warn(w.Message, attrs...)
	}
}
