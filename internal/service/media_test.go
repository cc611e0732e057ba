package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/models"
)

func TestAttachMedia(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c := f.newComplaint(t, "+15556001")

	tests := []struct {
		name string
		id   uuid.UUID
		in   MediaInput
		want apperr.Kind
	}{
		{"no complaint id", uuid.Nil, MediaInput{MediaType: "image", StoragePath: "a.jpg"}, apperr.InvalidInput},
		{"bad type", c.ID, MediaInput{MediaType: "video", StoragePath: "a.mp4"}, apperr.InvalidInput},
		{"no path", c.ID, MediaInput{MediaType: "audio", StoragePath: "  "}, apperr.InvalidInput},
		{"unknown complaint", uuid.New(), MediaInput{MediaType: "image", StoragePath: "a.jpg"}, apperr.NotFound},
	}
	for _, tt := range tests {
		_, err := f.complaints.AttachMedia(ctx, tt.id, tt.in, Actor{})
		assert.ErrorIs(t, err, tt.want, tt.name)
	}

	m, err := f.complaints.AttachMedia(ctx, c.ID, MediaInput{
		MediaType:   " AUDIO ",
		StoragePath: "calls/77.mp3",
		MimeType:    ptr("audio/mpeg"),
		DurationSec: ptr(12.5),
	}, Actor{ID: ptr("officer-3"), Type: models.ActorAdmin})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, c.ID, m.ComplaintID)
	assert.Equal(t, "audio", m.MediaType)
	assert.Equal(t, DefaultBucket, m.StorageBucket)

	listed, err := f.complaints.ListMedia(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, m.ID, listed[0].ID)
	assert.Equal(t, int64(1), f.countEvents(t, c.ID, models.EventMediaAttached))

	_, err = f.complaints.Delete(ctx, c.ID, Actor{Type: models.ActorAdmin})
	require.NoError(t, err)
	_, err = f.complaints.ListMedia(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.NotFound, "deleted complaints hide their media")
	_, err = f.complaints.AttachMedia(ctx, c.ID, MediaInput{MediaType: "image", StoragePath: "late.jpg"}, Actor{})
	assert.ErrorIs(t, err, apperr.NotFound)
}
