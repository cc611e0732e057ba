package service

import (
	"context"
	"time"

	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/models"
)

// Actor is who performed a mutation, recorded on every audit row.
type Actor struct {
	ID   *string
	Type string
	Note *string
}

func SystemActor(note string) Actor {
	a := Actor{Type: models.ActorSystem}
	if note != "" {
		a.Note = &note
	}
	return a
}

func (a Actor) orSystem() Actor {
	if a.Type == "" {
		a.Type = models.ActorSystem
	}
	return a
}

func (a Actor) withDefaultNote(note string) Actor {
	if a.Note == nil && note != "" {
		a.Note = &note
	}
	return a
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}

func publish(ctx context.Context, bus *eventbus.Bus, p eventbus.Payload) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, p)
}
