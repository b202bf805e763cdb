package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeArgs serializes a git argument list for storage in a TEXT
// column. JSON is used so arguments containing spaces round-trip.
func EncodeArgs(args []string) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode args: %w", err)
	}
	return string(data), nil
}

// DecodeArgs reverses EncodeArgs.
func DecodeArgs(s string) ([]string, error) {
	var args []string
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, fmt.Errorf("decode args %q: %w", s, err)
	}
	return args, nil
}

// FormatOperation renders an argument list as the human-readable
// operation description used in events, metrics, and diagnostics.
func FormatOperation(args []string) string {
	return "git " + strings.Join(args, " ")
}
