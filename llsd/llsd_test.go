package llsd

import (
	"testing"

	"github.com/google/uuid"
)

func roundTripValues() []Value {
	return []Value{
		Undef(),
		Bool(true),
		Bool(false),
		Int(-42),
		Real(3.14159),
		UUID(uuid.New()),
		String("hello region"),
		Binary([]byte{0x00, 0x01, 0xff, 0x10}),
		URI("http://example.com/caps/abc"),
		Array(Int(1), String("two"), Bool(true)),
		Map(map[string]Value{
			"name":   String("prim"),
			"count":  Int(7),
			"nested": Array(Real(1.5), Real(2.5)),
		}),
	}
}

func TestJSONRoundTripIsIdentity(t *testing.T) {
	for _, v := range roundTripValues() {
		data, err := EncodeJSON(v)
		if err != nil {
			t.Fatalf("EncodeJSON(%v): %v", v.Kind, err)
		}
		got, err := DecodeJSON(data)
		if err != nil {
			t.Fatalf("DecodeJSON(%v): %v", v.Kind, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch for kind %v: got %+v, want %+v", v.Kind, got, v)
		}
	}
}

func TestBinaryRoundTripIsIdentity(t *testing.T) {
	for _, v := range roundTripValues() {
		data, err := EncodeBinary(v)
		if err != nil {
			t.Fatalf("EncodeBinary(%v): %v", v.Kind, err)
		}
		got, err := DecodeBinary(data)
		if err != nil {
			t.Fatalf("DecodeBinary(%v): %v", v.Kind, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch for kind %v: got %+v, want %+v", v.Kind, got, v)
		}
	}
}

func TestParseLegacyBooleanUsesStandardSemantics(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"0":     false,
		"false": false,
		"":      false,
	}
	for text, want := range cases {
		if got := ParseLegacyBoolean(text); got != want {
			t.Fatalf("ParseLegacyBoolean(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestParseLegacyBooleanDefaultsUnknownTextToFalse(t *testing.T) {
	if ParseLegacyBoolean("maybe") != false {
		t.Fatalf("expected an unrecognized boolean text to default to false")
	}
}

func TestValueEqualDetectsMismatchedKinds(t *testing.T) {
	if Int(1).Equal(Real(1)) {
		t.Fatalf("an int and a real with the same numeric value should not compare equal")
	}
}
