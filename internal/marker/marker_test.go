package marker

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Truncation loses strictly less than one hundredth; the extra epsilon absorbs
// float64 rounding in v*100.
const tolerance = 0.01 + 1e-9

func TestEncode_Deterministic(t *testing.T) {
	p := Payload{Building: "B1", Room: "R2", X: 1.005, Y: 2.0, Z: -3.333, YRot: 90.0, FileReference: "f"}

	first, err := Encode(p)
	require.NoError(t, err)
	second, err := Encode(p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "B1;R2;100;200;-333;9000;f", Pack(p))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("B1;R2;100;200;-333;9000;f")), first)
}

func TestDecode(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("Main;101;150;-25;300;4500;http://host/files/abc/download"))

	got, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, &Payload{
		Building:      "Main",
		Room:          "101",
		X:             1.5,
		Y:             -0.25,
		Z:             3,
		YRot:          45,
		FileReference: "http://host/files/abc/download",
	}, got)
}

func TestDecode_FileReferenceWithDelimiter(t *testing.T) {
	p := Payload{Building: "B", Room: "R", FileReference: "http://host/a;b"}
	encoded, err := Encode(p)
	require.NoError(t, err)

	got, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "http://host/a;b", got.FileReference)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not base64", payload: "%%%"},
		{name: "too few fields", payload: base64.StdEncoding.EncodeToString([]byte("B;R;1;2;3;4"))},
		{name: "non numeric", payload: base64.StdEncoding.EncodeToString([]byte("B;R;x;2;3;4;f"))},
		{name: "fractional", payload: base64.StdEncoding.EncodeToString([]byte("B;R;1.5;2;3;4;f"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestEncode_InvalidFields(t *testing.T) {
	valid := Payload{Building: "B", Room: "R", FileReference: "f"}

	tests := []struct {
		name   string
		mutate func(*Payload)
	}{
		{name: "missing building", mutate: func(p *Payload) { p.Building = "" }},
		{name: "missing room", mutate: func(p *Payload) { p.Room = " " }},
		{name: "missing file reference", mutate: func(p *Payload) { p.FileReference = "" }},
		{name: "delimiter in building", mutate: func(p *Payload) { p.Building = "a;b" }},
		{name: "delimiter in room", mutate: func(p *Payload) { p.Room = "1;2" }},
		{name: "nan", mutate: func(p *Payload) { p.X = math.NaN() }},
		{name: "inf", mutate: func(p *Payload) { p.YRot = math.Inf(-1) }},
		{name: "huge", mutate: func(p *Payload) { p.Z = 1e300 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := Encode(p)
			assert.ErrorIs(t, err, ErrInvalidField)
		})
	}
}

func TestEncodeDecode_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := Payload{
			Building:      rapid.StringMatching(`[A-Za-z0-9_-][A-Za-z0-9 _-]{0,15}`).Draw(rt, "building"),
			Room:          rapid.StringMatching(`[A-Za-z0-9._-][A-Za-z0-9 ._-]{0,15}`).Draw(rt, "room"),
			X:             rapid.Float64Range(-10000, 10000).Draw(rt, "x"),
			Y:             rapid.Float64Range(-10000, 10000).Draw(rt, "y"),
			Z:             rapid.Float64Range(-1000, 1000).Draw(rt, "z"),
			YRot:          rapid.Float64Range(-360, 360).Draw(rt, "yrot"),
			FileReference: rapid.StringMatching(`https://[a-z]{1,8}/[a-z0-9;/]{1,24}`).Draw(rt, "ref"),
		}

		encoded, err := Encode(p)
		require.NoError(rt, err)
		got, err := Decode(encoded)
		require.NoError(rt, err)

		assert.Equal(rt, p.Building, got.Building)
		assert.Equal(rt, p.Room, got.Room)
		assert.Equal(rt, p.FileReference, got.FileReference)
		assert.InDelta(rt, p.X, got.X, tolerance)
		assert.InDelta(rt, p.Y, got.Y, tolerance)
		assert.InDelta(rt, p.Z, got.Z, tolerance)
		assert.InDelta(rt, p.YRot, got.YRot, tolerance)
	})
}
