package source

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a snapshot from a JSON file of the form
// {"account": {...}, "inputs": {"transactions": [...], "payloads": {...}}}.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}
