package multisig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes inputs whose payload lists are keyed by type tag or
// alias. Lists of unregistered tags decode into OpaquePayload values.
func (in *Inputs) UnmarshalJSON(b []byte) error {
	var wire struct {
		Raw      []RawTransaction             `json:"transactions"`
		Payloads map[string][]json.RawMessage `json:"payloads"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	in.Raw = wire.Raw
	in.Payloads = make(map[TypeTag][]Payload, len(wire.Payloads))
	for key, items := range wire.Payloads {
		if items == nil {
			continue
		}
		tag, _ := ParseTypeTag(key)
		list := make([]Payload, 0, len(items))
		for i, item := range items {
			p, err := DecodePayload(tag, item)
			if err != nil {
				return fmt.Errorf("decode %s payload %d: %w", key, i, err)
			}
			list = append(list, p)
		}
		in.Payloads[tag] = list
	}
	return nil
}

// DecodePayload decodes one payload of the given type. JSON null decodes to a
// nil payload.
func DecodePayload(tag TypeTag, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	info, ok := Lookup(tag)
	if !ok {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		return OpaquePayload{Tag: tag, Fields: fields}, nil
	}
	p := info.New()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return derefPayload(p), nil
}

// MarshalJSON encodes only the payload fields so opaque payloads round-trip
// through DecodePayload.
func (p OpaquePayload) MarshalJSON() ([]byte, error) {
	if p.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Fields)
}

// UnmarshalJSON decodes a transaction, dispatching its payload on the type tag.
func (tx *Transaction) UnmarshalJSON(b []byte) error {
	type plain Transaction
	var wire struct {
		plain
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	p, err := DecodePayload(wire.Type, wire.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", wire.Type, err)
	}
	*tx = Transaction(wire.plain)
	tx.Payload = p
	return nil
}
