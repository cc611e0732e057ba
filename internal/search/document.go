package search

import (
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/models"
)

// Document is the indexed shape of a complaint.
type Document struct {
	ID              uuid.UUID `json:"id"`
	ComplaintNumber int64     `json:"complaint_number"`
	Status          string    `json:"status"`
	Channel         string    `json:"channel"`
	Priority        string    `json:"priority"`
	Category        *string   `json:"category,omitempty"`
	RawText         *string   `json:"raw_text,omitempty"`
	TranslatedText  *string   `json:"translated_text,omitempty"`
	LocationText    *string   `json:"location_text,omitempty"`
	WardID          *string   `json:"ward_id,omitempty"`
	DepartmentID    *string   `json:"department_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func FromComplaint(c *models.Complaint) Document {
	return Document{
		ID:              c.ID,
		ComplaintNumber: c.ComplaintNumber,
		Status:          string(c.Status),
		Channel:         c.Channel,
		Priority:        c.Priority,
		Category:        c.Category,
		RawText:         c.RawText,
		TranslatedText:  c.TranslatedText,
		LocationText:    c.LocationText,
		WardID:          c.WardID,
		DepartmentID:    c.DepartmentID,
		CreatedAt:       c.CreatedAt,
	}
}
