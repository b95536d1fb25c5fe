package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "palisade/pkg/domain-errors"
)

func TestChatRequestNormalize(t *testing.T) {
	t.Run("applies default model", func(t *testing.T) {
		req := &ChatRequest{Message: "hello"}
		req.Normalize()

		assert.Equal(t, DefaultModel, req.Model)
	})

	t.Run("keeps explicit model", func(t *testing.T) {
		req := &ChatRequest{Message: "hello", Model: "assistant-large"}
		req.Normalize()

		assert.Equal(t, "assistant-large", req.Model)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		req := &ChatRequest{Message: "  hello  ", Model: " assistant-large "}
		req.Normalize()

		assert.Equal(t, "hello", req.Message)
		assert.Equal(t, "assistant-large", req.Model)
	})

	t.Run("nil attachments become empty slice", func(t *testing.T) {
		req := &ChatRequest{Message: "hello"}
		req.Normalize()

		require.NotNil(t, req.Attachments)
		assert.Empty(t, req.Attachments)
	})

	t.Run("trims attachment fields", func(t *testing.T) {
		req := &ChatRequest{
			Message:     "hello",
			Attachments: []Attachment{{Filename: " report.pdf ", MimeType: " application/pdf "}},
		}
		req.Normalize()

		assert.Equal(t, "report.pdf", req.Attachments[0].Filename)
		assert.Equal(t, "application/pdf", req.Attachments[0].MimeType)
	})
}

func TestChatRequestValidate(t *testing.T) {
	t.Run("valid minimal request", func(t *testing.T) {
		req := &ChatRequest{Message: "hello"}
		req.Normalize()

		assert.NoError(t, req.Validate())
	})

	t.Run("missing message rejected", func(t *testing.T) {
		req := &ChatRequest{}
		req.Normalize()

		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("blank message rejected after trimming", func(t *testing.T) {
		req := &ChatRequest{Message: "   "}
		req.Normalize()

		assert.Error(t, req.Validate())
	})

	t.Run("chat id must be a uuid", func(t *testing.T) {
		req := &ChatRequest{Message: "hello", ChatID: "not-a-uuid"}
		req.Normalize()

		assert.Error(t, req.Validate())
	})

	t.Run("attachment without filename rejected", func(t *testing.T) {
		req := &ChatRequest{
			Message:     "hello",
			Attachments: []Attachment{{MimeType: "application/pdf"}},
		}
		req.Normalize()

		assert.Error(t, req.Validate())
	})
}

func TestAnalyzeRequestNormalize(t *testing.T) {
	t.Run("applies default output format", func(t *testing.T) {
		req := &AnalyzeRequest{Attachments: []Attachment{{Filename: "a.pdf"}}}
		req.Normalize()

		assert.Equal(t, DefaultOutputFormat, req.OutputFormat)
	})

	t.Run("keeps explicit output format", func(t *testing.T) {
		req := &AnalyzeRequest{
			Attachments:  []Attachment{{Filename: "a.pdf"}},
			OutputFormat: "html",
		}
		req.Normalize()

		assert.Equal(t, "html", req.OutputFormat)
	})
}

func TestAnalyzeRequestValidate(t *testing.T) {
	t.Run("requires at least one attachment", func(t *testing.T) {
		req := &AnalyzeRequest{}
		req.Normalize()

		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown output format", func(t *testing.T) {
		req := &AnalyzeRequest{
			Attachments:  []Attachment{{Filename: "a.pdf"}},
			OutputFormat: "pdf",
		}
		req.Normalize()

		assert.Error(t, req.Validate())
	})

	t.Run("valid request", func(t *testing.T) {
		req := &AnalyzeRequest{
			Attachments:  []Attachment{{Filename: "a.pdf"}},
			Instructions: "summarize",
			OutputFormat: "text",
		}
		req.Normalize()

		assert.NoError(t, req.Validate())
	})
}

func TestAttachmentCarrier(t *testing.T) {
	attachments := []Attachment{{Filename: "a.pdf"}, {Filename: "b.pdf"}}

	var carrier AttachmentCarrier = &ChatRequest{Message: "hi", Attachments: attachments}
	assert.Len(t, carrier.AttachmentList(), 2)

	carrier = &AnalyzeRequest{Attachments: attachments[:1]}
	assert.Len(t, carrier.AttachmentList(), 1)
}
