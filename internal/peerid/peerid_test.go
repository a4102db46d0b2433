package peerid_test

import (
	"encoding/json"
	"testing"

	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
)

const validID = "12D3KooWExit1111111111111111111111111111111111111"

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	id, err := peerid.Parse(validID)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if id.String() != validID {
		t.Errorf("String() = %q, want %q", id.String(), validID)
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	if _, err := peerid.Parse(""); err == nil {
		t.Error("expected error for empty identity")
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a, err := peerid.Parse(validID)
	if err != nil {
		t.Fatalf("parse a: %v", err)
	}

	b, err := peerid.Parse(validID)
	if err != nil {
		t.Fatalf("parse b: %v", err)
	}

	if !a.Equal(b) {
		t.Error("expected equal identities to compare equal")
	}

	other, err := peerid.Parse("12D3KooWAbcde2222222222222222222222222222222222222")
	if err != nil {
		t.Fatalf("parse other: %v", err)
	}

	if a.Equal(other) {
		t.Error("expected different identities to compare unequal")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	id, err := peerid.Parse(validID)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded peerid.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !decoded.Equal(id) {
		t.Errorf("round-tripped id %q != original %q", decoded, id)
	}
}

func TestJSONEmptyString(t *testing.T) {
	t.Parallel()

	var id peerid.ID
	if err := json.Unmarshal([]byte(`""`), &id); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}

	if !id.Empty() {
		t.Error("expected empty id to decode to zero value")
	}
}
