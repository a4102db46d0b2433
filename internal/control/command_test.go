package control

import (
	"encoding/json"
	"testing"
)

func TestStatusMarshalsAsBareString(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Command{Kind: KindStatus})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if string(data) != `"Status"` {
		t.Errorf("Marshal(Status) = %s, want %q", data, `"Status"`)
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cmd.Kind != KindStatus {
		t.Errorf("Kind = %v, want KindStatus", cmd.Kind)
	}
}

func TestEntryNodeRoundTrip(t *testing.T) {
	t.Parallel()

	host := "0.0.0.0:51820"
	hop := uint8(2)

	want := Command{Kind: KindEntryNode, EntryNode: &EntryNodeInput{
		Endpoint:   "https://entry.example:1234",
		APIToken:   "secret",
		ListenHost: &host,
		Hop:        &hop,
	}}

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Command
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Kind != KindEntryNode || got.EntryNode == nil {
		t.Fatalf("got = %+v, want an EntryNode command", got)
	}

	if got.EntryNode.Endpoint != want.EntryNode.Endpoint || got.EntryNode.APIToken != want.EntryNode.APIToken {
		t.Errorf("EntryNode payload = %+v, want %+v", got.EntryNode, want.EntryNode)
	}

	if got.EntryNode.Hop == nil || *got.EntryNode.Hop != hop {
		t.Errorf("Hop = %v, want %d", got.EntryNode.Hop, hop)
	}
}

func TestExitNodeRoundTrip(t *testing.T) {
	t.Parallel()

	want := Command{Kind: KindExitNode, ExitNode: &ExitNodeInput{PeerID: "11111111111111111111111111"}}

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Command
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Kind != KindExitNode || got.ExitNode == nil || got.ExitNode.PeerID != want.ExitNode.PeerID {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestUnmarshalRejectsUnknownVariant(t *testing.T) {
	t.Parallel()

	var cmd Command
	if err := json.Unmarshal([]byte(`{"Bogus":{}}`), &cmd); err == nil {
		t.Fatal("expected an error for an unknown command variant")
	}
}

func TestRedactedHidesAPIToken(t *testing.T) {
	t.Parallel()

	cmd := Command{Kind: KindEntryNode, EntryNode: &EntryNodeInput{APIToken: "secret"}}

	redacted := cmd.Redacted()
	if redacted.EntryNode.APIToken != "*****" {
		t.Errorf("Redacted().EntryNode.APIToken = %q, want *****", redacted.EntryNode.APIToken)
	}

	if cmd.EntryNode.APIToken != "secret" {
		t.Error("Redacted() mutated the original command")
	}
}
