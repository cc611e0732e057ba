// Package transport holds the JSON request bodies of the HTTP API.
package transport

import "time"

type OTPRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type OTPVerifyRequest struct {
	PhoneNumber       string  `json:"phone_number"`
	OTP               string  `json:"otp"`
	Name              *string `json:"name"`
	PreferredLanguage *string `json:"preferred_language"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type StatusUpdateRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

type AssignRequest struct {
	ComplaintID    string     `json:"complaint_id"`
	AssignedToID   string     `json:"assigned_to_id"`
	AssignedToType string     `json:"assigned_to_type"`
	DueAt          *time.Time `json:"due_at"`
	Note           *string    `json:"note"`
}

type CloseAssignmentRequest struct {
	Note *string `json:"note"`
}

type TranscriptionRequest struct {
	ComplaintID          string   `json:"complaint_id"`
	TranscriptText       string   `json:"transcript_text"`
	TranscriptConfidence *float64 `json:"transcript_confidence"`
	ModelName            string   `json:"model_name"`
}

type ClassificationRequest struct {
	ComplaintID              string   `json:"complaint_id"`
	ClassificationLabel      string   `json:"classification_label"`
	ClassificationConfidence *float64 `json:"classification_confidence"`
	ModelName                string   `json:"model_name"`
}

type OverrideRequest struct {
	ComplaintID         string  `json:"complaint_id"`
	ClassificationLabel string  `json:"classification_label"`
	Note                *string `json:"note"`
}

type NotificationRequest struct {
	ComplaintID string  `json:"complaint_id"`
	Channel     string  `json:"channel"`
	TemplateKey *string `json:"template_key"`
}

type DeliveryStatusRequest struct {
	DeliveryStatus    string  `json:"delivery_status"`
	ProviderMessageID *string `json:"provider_message_id"`
	ErrorMessage      *string `json:"error_message"`
}

type VoiceStartRequest struct {
	Language string `json:"language"`
}
