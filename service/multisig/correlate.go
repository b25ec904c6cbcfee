package multisig

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// cursors tracks, per type tag, the index of the next unconsumed payload.
type cursors map[TypeTag]int

func (c cursors) peek(tag TypeTag) int { return c[tag] }

func (c cursors) advance(tag TypeTag) { c[tag]++ }

// Correlate pairs every raw record with the next unconsumed payload of its
// type. Payload lists carry no join key: the Nth record of a type matches the
// Nth payload of that type. Records without a payload are skipped with a
// diagnostic; output order follows raw order.
func Correlate(raw []RawTransaction, payloads map[TypeTag][]Payload) ([]Transaction, []Diagnostic) {
	var diags diagnostics
	cur := make(cursors, len(TypeTags))
	out := make([]Transaction, 0, len(raw))

	for _, rec := range raw {
		tag, err := ParseTypeTag(string(rec.Type))
		list, hasList := payloads[tag]
		pos := cur.peek(tag)

		if err != nil {
			diags.add(DiagUnknownType, rec.ID, tag, pos, "transaction type %q is not recognized", rec.Type)
			var p Payload
			if hasList && pos < len(list) {
				p = list[pos]
				cur.advance(tag)
			} else {
				pos = -1
			}
			out = append(out, buildTransaction(rec, tag, p, pos, &diags))
			continue
		}

		if pos >= len(list) {
			diags.add(DiagMissingPayload, rec.ID, tag, pos,
				"payload not found for position %d (%d %s payloads available)", pos, len(list), tag)
			continue
		}

		p := list[pos]
		cur.advance(tag)
		if p == nil || p.Type() != tag {
			diags.add(DiagPayloadTypeMismatch, rec.ID, tag, pos, "payload at position %d is %s", pos, payloadTypeName(p))
			continue
		}

		out = append(out, buildTransaction(rec, tag, p, pos, &diags))
	}

	for _, tag := range payloadTags(payloads) {
		if left := len(payloads[tag]) - cur.peek(tag); left > 0 {
			diags.add(DiagUnusedPayloads, "", tag, cur.peek(tag),
				"%d %s payloads were not matched to any transaction", left, tag)
		}
	}

	return out, diags
}

func buildTransaction(rec RawTransaction, tag TypeTag, p Payload, pos int, diags *diagnostics) Transaction {
	tx := Transaction{
		ID:       rec.ID,
		Type:     tag,
		Proposer: rec.Proposer,
		Executor: rec.Executor,
		Payload:  p,
		Position: pos,
	}

	created, err := parseTimestamp(rec.DateCreated)
	if err != nil {
		diags.malformed(rec.ID, tag, "date_created", rec.DateCreated, err)
	}
	tx.CreatedAt = created

	if rec.DateExecuted != "" {
		executed, err := parseTimestamp(rec.DateExecuted)
		if err != nil {
			diags.malformed(rec.ID, tag, "date_executed", rec.DateExecuted, err)
		} else if executed.Unix() > 0 {
			tx.ExecutedAt = &executed
		}
	}
	tx.Executed = rec.Executed || tx.ExecutedAt != nil

	tx.ApprovedBy = uniqueAddresses(rec.ApprovedBy)
	tx.RejectedBy = uniqueAddresses(rec.RejectedBy)
	if overlap := intersect(tx.ApprovedBy, tx.RejectedBy); len(overlap) > 0 {
		diags.add(DiagOverlappingVotes, rec.ID, tag, pos,
			"%s both approved and rejected", strings.Join(overlap, ", "))
	}

	return tx
}

// parseTimestamp parses epoch seconds in decimal or hex. Unparseable input
// yields the epoch together with the error.
func parseTimestamp(s string) (time.Time, error) {
	v, err := ParseInteger(s)
	if err != nil {
		return time.Unix(0, 0).UTC(), err
	}
	if !v.IsInt64() {
		return time.Unix(0, 0).UTC(), strconv.ErrRange
	}
	return time.Unix(v.Int64(), 0).UTC(), nil
}

// uniqueAddresses drops repeated addresses, keeping first occurrences.
func uniqueAddresses(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if strings.TrimSpace(a) == "" {
			continue
		}
		key := NormalizeAddress(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

func intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, x := range b {
		in[NormalizeAddress(x)] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := in[NormalizeAddress(x)]; ok {
			out = append(out, x)
		}
	}
	return out
}

// payloadTags returns the registered tags followed by any extra tags present in
// payloads, sorted, so diagnostics come out in a deterministic order.
func payloadTags(payloads map[TypeTag][]Payload) []TypeTag {
	tags := slices.Clone(TypeTags)
	var extra []TypeTag
	for tag := range payloads {
		if !tag.Known() {
			extra = append(extra, tag)
		}
	}
	slices.Sort(extra)
	return append(tags, extra...)
}

func payloadTypeName(p Payload) string {
	if p == nil {
		return "empty"
	}
	return string(p.Type())
}
