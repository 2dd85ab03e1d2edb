package envelope

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Envelope{
		{PartialIV: []byte{0x14}, KID: []byte{}},
		{PartialIV: []byte{0x14}, KID: []byte{0x01}},
		{PartialIV: []byte{0x01, 0x02, 0x03, 0x04, 0x05}, IDContext: []byte{0x37, 0xcb, 0xf3, 0x21, 0x00, 0x17, 0xa2, 0xd3}, KID: []byte{0x00}},
		{PartialIV: []byte{0x07}},
		{KID: []byte{0xaa, 0xbb}},
		{PartialIV: []byte{0x01}, IDContext: []byte{}, KID: []byte{}},
	}
	for i, in := range cases {
		b, err := in.Encode()
		if err != nil {
			t.Fatalf("case %d: Encode: %v", i, err)
		}
		out, err := Decode(b)
		if err != nil {
			t.Fatalf("case %d: Decode: %v", i, err)
		}
		if !bytes.Equal(out.PartialIV, in.PartialIV) || !bytes.Equal(out.KID, in.KID) || !bytes.Equal(out.IDContext, in.IDContext) {
			t.Fatalf("case %d: mismatch %+v != %+v", i, out, in)
		}
		if out.HasKID() != in.HasKID() || out.HasIDContext() != in.HasIDContext() {
			t.Fatalf("case %d: presence flags lost", i)
		}
	}
}

func TestEncodeKnownValues(t *testing.T) {
	// RFC 8613 C.4 request: PIV 0x14, empty kid.
	b, _ := Envelope{PartialIV: []byte{0x14}, KID: []byte{}}.Encode()
	if !bytes.Equal(b, []byte{0x09, 0x14}) {
		t.Fatalf("got %x", b)
	}
	// RFC 8613 C.6 request: PIV 0x14, kid context, kid 0x00.
	b, _ = Envelope{PartialIV: []byte{0x14}, IDContext: []byte{0x37, 0xcb, 0xf3, 0x21, 0x00, 0x17, 0xa2, 0xd3}, KID: []byte{0x00}}.Encode()
	want := []byte{0x19, 0x14, 0x08, 0x37, 0xcb, 0xf3, 0x21, 0x00, 0x17, 0xa2, 0xd3, 0x00}
	if !bytes.Equal(b, want) {
		t.Fatalf("got %x, want %x", b, want)
	}
	b, _ = Envelope{}.Encode()
	if len(b) != 0 {
		t.Fatalf("empty envelope must encode to the empty value, got %x", b)
	}
}

func TestDecodeEmpty(t *testing.T) {
	e, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if e.PartialIV != nil || e.HasKID() || e.HasIDContext() {
		t.Fatalf("expected zero envelope, got %+v", e)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"reserved bits":     {0x21, 0x01},
		"piv length 6":      {0x06, 1, 2, 3, 4, 5, 6},
		"piv length 7":      {0x07, 1, 2, 3, 4, 5, 6, 7},
		"truncated piv":     {0x03, 0x01},
		"missing s":         {0x11, 0x01},
		"truncated context": {0x11, 0x01, 0x04, 0xaa},
		"trailing bytes":    {0x01, 0x01, 0xff},
		"zero flags":        {0x00},
	}
	for name, b := range cases {
		if _, err := Decode(b); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("%s: expected ErrMalformedEnvelope, got %v", name, err)
		}
	}
}

func TestEncodeRejectsLongPartialIV(t *testing.T) {
	if _, err := (Envelope{PartialIV: make([]byte, 6)}).Encode(); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}
