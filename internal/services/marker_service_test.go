package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifc-service/internal/marker"
	"ifc-service/internal/models"
)

func TestCreateMarker(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	file := upload(t, e, "tower.ifc").File

	m, err := e.marks.CreateMarker(ctx, models.MarkerRequest{
		FileID:   file.ID.String(),
		Building: " Main ",
		Room:     "101",
		X:        1.5,
		Y:        -0.25,
		Z:        3,
		YRot:     45,
	})
	require.NoError(t, err)

	wantRef := "http://ifc.local/api/ifc/files/" + file.ID.String() + "/download"
	assert.Equal(t, "Main", m.Building)
	assert.Equal(t, wantRef, m.FileReference)

	decoded, err := e.marks.DecodePayload(m.Payload)
	require.NoError(t, err)
	assert.Equal(t, &marker.Payload{
		Building:      "Main",
		Room:          "101",
		X:             1.5,
		Y:             -0.25,
		Z:             3,
		YRot:          45,
		FileReference: wantRef,
	}, decoded)

	got, err := e.marks.GetMarker(ctx, m.ID.String())
	require.NoError(t, err)
	assert.Equal(t, m.Payload, got.Payload)

	byFile, err := e.marks.ListMarkers(ctx, file.ID.String())
	require.NoError(t, err)
	assert.Len(t, byFile, 1)

	require.NoError(t, e.marks.DeleteMarker(ctx, m.ID.String()))
	assert.ErrorIs(t, e.marks.DeleteMarker(ctx, m.ID.String()), ErrNotFound)
}

func TestCreateMarker_Invalid(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	file := upload(t, e, "tower.ifc").File

	tests := []struct {
		name string
		req  models.MarkerRequest
		want error
	}{
		{name: "bad file id", req: models.MarkerRequest{FileID: "x", Building: "B", Room: "R"}, want: ErrInvalidInput},
		{name: "unknown file", req: models.MarkerRequest{FileID: uuid.NewString(), Building: "B", Room: "R"}, want: ErrNotFound},
		{name: "missing room", req: models.MarkerRequest{FileID: file.ID.String(), Building: "B"}, want: ErrInvalidInput},
		{name: "delimiter", req: models.MarkerRequest{FileID: file.ID.String(), Building: "B;1", Room: "R"}, want: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.marks.CreateMarker(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	e := newEnv(t, envOptions{})

	_, err := e.marks.DecodePayload("")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.marks.DecodePayload("%%%")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
