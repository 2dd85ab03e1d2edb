package identity

import "testing"

func TestParseHexRoundTrip(t *testing.T) {
	id, err := ParseHex("0x37cbf3210017a2d3")
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if id.String() != "37cbf3210017a2d3" {
		t.Fatalf("unexpected string %q", id.String())
	}

	empty, err := ParseHex("")
	if err != nil {
		t.Fatalf("ParseHex empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected non-nil empty id")
	}
	if empty.String() != "<empty>" {
		t.Fatalf("unexpected string for empty id: %q", empty.String())
	}

	if _, err := ParseHex("zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}

func TestCloneKeepsNilDistinction(t *testing.T) {
	var absent ID
	if absent.Clone() != nil {
		t.Fatalf("clone of nil id should be nil")
	}
	empty := ID{}
	if c := empty.Clone(); c == nil || len(c) != 0 {
		t.Fatalf("clone of empty id should be empty, non-nil")
	}
	a := ID{0x01}
	b := a.Clone()
	b[0] = 0x02
	if a[0] != 0x01 {
		t.Fatalf("clone aliases the original")
	}
	if !a.Equal(ID{0x01}) {
		t.Fatalf("Equal mismatch")
	}
}
