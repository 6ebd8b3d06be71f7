// Package marker packs QR marker placement data into the text payload that is
// embedded in a QR symbol.
//
// The payload is the base64 encoding of
//
//	building;room;x;y;z;yrot;fileReference
//
// where x, y, z (meters) and yrot (degrees) are scaled by 100 and truncated
// towards zero. Decoding divides by 100 again, so precision below a
// hundredth is lost.
package marker

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Delimiter separates payload fields.
	Delimiter = ";"
	// Scale is the fixed-point factor for numeric fields.
	Scale = 100
	// FieldCount is the number of fields in a payload.
	FieldCount = 7
)

var (
	// ErrMalformedPayload is returned when a payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed marker payload")

	// ErrInvalidField is returned when a payload field cannot be encoded.
	ErrInvalidField = errors.New("invalid marker field")
)

// Payload is the placement data carried by a marker.
type Payload struct {
	Building      string  `json:"building"`
	Room          string  `json:"room"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	YRot          float64 `json:"yrot"`
	FileReference string  `json:"file_reference"`
}

// Validate checks that every field survives the delimited format.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Building) == "" {
		return fmt.Errorf("%w: building is required", ErrInvalidField)
	}
	if strings.TrimSpace(p.Room) == "" {
		return fmt.Errorf("%w: room is required", ErrInvalidField)
	}
	if strings.TrimSpace(p.FileReference) == "" {
		return fmt.Errorf("%w: file reference is required", ErrInvalidField)
	}
	for name, v := range map[string]string{"building": p.Building, "room": p.Room} {
		if strings.Contains(v, Delimiter) {
			return fmt.Errorf("%w: %s must not contain %q", ErrInvalidField, name, Delimiter)
		}
	}
	for name, v := range map[string]float64{"x": p.X, "y": p.Y, "z": p.Z, "yrot": p.YRot} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidField, name)
		}
		if math.Abs(v*Scale) > math.MaxInt64/2 {
			return fmt.Errorf("%w: %s is out of range", ErrInvalidField, name)
		}
	}
	return nil
}

// Encode returns the QR payload for p.
func Encode(p Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(Pack(p))), nil
}

// Pack returns the delimited text form of p without the base64 layer.
func Pack(p Payload) string {
	fields := []string{
		p.Building,
		p.Room,
		strconv.FormatInt(scale(p.X), 10),
		strconv.FormatInt(scale(p.Y), 10),
		strconv.FormatInt(scale(p.Z), 10),
		strconv.FormatInt(scale(p.YRot), 10),
		p.FileReference,
	}
	return strings.Join(fields, Delimiter)
}

// Decode reverses Encode.
func Decode(payload string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return Unpack(string(raw))
}

// Unpack parses the delimited text form. The file reference is the last
// field and may itself contain the delimiter.
func Unpack(text string) (*Payload, error) {
	fields := strings.SplitN(text, Delimiter, FieldCount)
	if len(fields) != FieldCount {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedPayload, FieldCount, len(fields))
	}

	numbers := make([]float64, 4)
	for i, name := range []string{"x", "y", "z", "yrot"} {
		n, err := strconv.ParseInt(fields[2+i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, name, err)
		}
		numbers[i] = float64(n) / Scale
	}

	return &Payload{
		Building:      fields[0],
		Room:          fields[1],
		X:             numbers[0],
		Y:             numbers[1],
		Z:             numbers[2],
		YRot:          numbers[3],
		FileReference: fields[6],
	}, nil
}

// scale converts v to hundredths, truncating towards zero.
func scale(v float64) int64 {
	return int64(v * Scale)
}
