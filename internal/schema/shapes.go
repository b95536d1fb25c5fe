// Package schema validates request bodies against the closed set of shapes
// the assistant API accepts, canonicalizes them, and publishes the canonical
// value for later stages and handlers.
package schema

import (
	s "palisade/pkg/string"
	"palisade/pkg/validation"
)

// Shape selects which request shape a route expects.
type Shape string

const (
	ShapeChat    Shape = "chat"
	ShapeAnalyze Shape = "analyze"
)

// DefaultModel is applied when a chat request does not name a model.
const DefaultModel = "assistant-default"

// DefaultOutputFormat is applied when an analyze request does not pick one.
const DefaultOutputFormat = "markdown"

// Attachment is a single uploaded document reference. Size fields are
// optional; the quota guard estimates cost from whichever is present.
type Attachment struct {
	Filename      string `json:"filename" validate:"required,notblank,max=255"`
	MimeType      string `json:"mimeType,omitempty" validate:"omitempty,max=255"`
	Size          *int64 `json:"size,omitempty" validate:"omitempty,min=0"`
	Content       string `json:"content,omitempty"`
	ContentLength *int64 `json:"contentLength,omitempty" validate:"omitempty,min=0"`
}

// AttachmentCarrier is implemented by every shape that can carry attachments;
// the quota guard consumes it without knowing the concrete shape.
type AttachmentCarrier interface {
	AttachmentList() []Attachment
}

// ChatRequest is the conversational endpoint shape.
type ChatRequest struct {
	Message     string       `json:"message" validate:"required,notblank,max=32768"`
	ChatID      string       `json:"chatId,omitempty" validate:"omitempty,uuid"`
	Model       string       `json:"model,omitempty" validate:"omitempty,max=128"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// Normalize trims strings, applies defaults, and normalizes the attachments
// array so downstream stages never see nil.
func (r *ChatRequest) Normalize() {
	s.TrimStrings(&r.Message, &r.ChatID, &r.Model)
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if r.Attachments == nil {
		r.Attachments = []Attachment{}
	}
	normalizeAttachments(r.Attachments)
}

// Validate checks the shape against its constraints.
func (r *ChatRequest) Validate() error {
	return validation.Validate(r)
}

// AttachmentList implements AttachmentCarrier.
func (r *ChatRequest) AttachmentList() []Attachment {
	return r.Attachments
}

// AnalyzeRequest is the document-analysis endpoint shape. It is the bulk-mode
// shape: at least one attachment is required.
type AnalyzeRequest struct {
	Attachments  []Attachment `json:"attachments" validate:"required,min=1,dive"`
	Instructions string       `json:"instructions,omitempty" validate:"omitempty,max=8192"`
	OutputFormat string       `json:"outputFormat,omitempty" validate:"omitempty,oneof=markdown html text"`
}

// Normalize trims strings and applies defaults.
func (r *AnalyzeRequest) Normalize() {
	s.TrimStrings(&r.Instructions, &r.OutputFormat)
	if r.OutputFormat == "" {
		r.OutputFormat = DefaultOutputFormat
	}
	normalizeAttachments(r.Attachments)
}

// Validate checks the shape against its constraints.
func (r *AnalyzeRequest) Validate() error {
	return validation.Validate(r)
}

// AttachmentList implements AttachmentCarrier.
func (r *AnalyzeRequest) AttachmentList() []Attachment {
	return r.Attachments
}

func normalizeAttachments(attachments []Attachment) {
	for i := range attachments {
		s.TrimStrings(&attachments[i].Filename, &attachments[i].MimeType)
	}
}
