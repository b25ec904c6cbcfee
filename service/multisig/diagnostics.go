package multisig

import "fmt"

// DiagnosticKind classifies a recoverable per-record problem.
type DiagnosticKind string

const (
	DiagMissingPayload      DiagnosticKind = "missing-payload"
	DiagUnknownType         DiagnosticKind = "unknown-type"
	DiagPayloadTypeMismatch DiagnosticKind = "payload-type-mismatch"
	DiagMalformedField      DiagnosticKind = "malformed-field"
	DiagOverlappingVotes    DiagnosticKind = "overlapping-votes"
	DiagUnusedPayloads      DiagnosticKind = "unused-payloads"
)

// Diagnostic reports a record that was skipped or degraded. Diagnostics never
// abort a reconciliation.
type Diagnostic struct {
	Kind          DiagnosticKind `json:"kind"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Type          TypeTag        `json:"type,omitempty"`
	Position      int            `json:"position"`
	Field         string         `json:"field,omitempty"`
	Message       string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.TransactionID == "" {
		return fmt.Sprintf("%s [%s]: %s", d.Kind, d.Type, d.Message)
	}
	return fmt.Sprintf("%s [%s #%s]: %s", d.Kind, d.Type, d.TransactionID, d.Message)
}

// diagnostics collects diagnostics for one pipeline stage.
type diagnostics []Diagnostic

func (ds *diagnostics) add(kind DiagnosticKind, id string, tag TypeTag, pos int, format string, args ...any) {
	*ds = append(*ds, Diagnostic{
		Kind:          kind,
		TransactionID: id,
		Type:          tag,
		Position:      pos,
		Message:       fmt.Sprintf(format, args...),
	})
}

func (ds *diagnostics) malformed(id string, tag TypeTag, field, value string, err error) {
	*ds = append(*ds, Diagnostic{
		Kind:          DiagMalformedField,
		TransactionID: id,
		Type:          tag,
		Position:      -1,
		Field:         field,
		Message:       fmt.Sprintf("%s %q: %v", field, value, err),
	})
}

// CountByKind tallies diagnostics per kind.
func CountByKind(ds []Diagnostic) map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	for _, d := range ds {
		counts[d.Kind]++
	}
	return counts
}
