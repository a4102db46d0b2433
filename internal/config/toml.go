package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// tomlParser adapts BurntSushi/toml to koanf's Parser interface, the same
// two-method shape mutagen-io/mutagen's pkg/encoding/toml.go wraps around
// the same library. Koanf ships no first-party TOML parser, so gnosisvpnd
// wires BurntSushi/toml directly instead of adding another dependency.
type tomlParser struct{}

// Unmarshal implements koanf.Parser.
func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("config: parse toml: %w", err)
	}

	return out, nil
}

// Marshal implements koanf.Parser; unused by Load (config is read-only at
// runtime) but required to satisfy the interface.
func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer

	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("config: encode toml: %w", err)
	}

	return buf.Bytes(), nil
}
