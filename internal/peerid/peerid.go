// Package peerid implements the opaque base58 peer identity handle used to
// name exit nodes and mixnet intermediates.
package peerid

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eknkc/basex"
)

// base58Alphabet is the Bitcoin/IPFS base58 alphabet (no 0, O, I, l).
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// encoding is the shared base58 codec. basex.NewEncoding only fails on a
// malformed alphabet, which base58Alphabet is not, so the panic can never
// trigger in practice.
var encoding = mustEncoding()

func mustEncoding() *basex.Encoding {
	enc, err := basex.NewEncoding(base58Alphabet)
	if err != nil {
		panic(fmt.Sprintf("peerid: invalid base58 alphabet: %v", err))
	}

	return enc
}

// ErrEmpty indicates an empty peer identity string.
var ErrEmpty = errors.New("peer identity must not be empty")

// ID is an opaque peer identity. Equality is byte equality; the printed
// form is base58, matching the original libp2p PeerId semantics.
type ID struct {
	raw string
}

// Parse decodes a base58-encoded peer identity. The decoded bytes are not
// otherwise interpreted: this package does not validate multihash/protobuf
// structure, only that the string is valid base58 and non-empty.
func Parse(s string) (ID, error) {
	if s == "" {
		return ID{}, ErrEmpty
	}

	if _, err := encoding.Decode(s); err != nil {
		return ID{}, fmt.Errorf("parse peer identity %q: %w", s, err)
	}

	return ID{raw: s}, nil
}

// Empty reports whether this ID is the zero value.
func (id ID) Empty() bool {
	return id.raw == ""
}

// Equal reports byte equality between two identities.
func (id ID) Equal(other ID) bool {
	return id.raw == other.raw
}

// String returns the base58 printed form.
func (id ID) String() string {
	return id.raw
}

// MarshalJSON renders the identity as its base58 string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.raw)
}

// UnmarshalJSON parses the identity from its base58 string.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode peer identity: %w", err)
	}

	if s == "" {
		*id = ID{}
		return nil
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}
