// Package models defines the quota guard's violation and limit types.
package models

// Kind names one of the four independently checked quota dimensions.
type Kind string

const (
	KindFileSize   Kind = "file_size"
	KindTotalSize  Kind = "total_size"
	KindFileCount  Kind = "file_count"
	KindTotalPages Kind = "total_pages"
)

// Violation describes one exceeded dimension. All violated dimensions are
// collected and reported together; the guard never stops at the first.
type Violation struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Limit    int64  `json:"limit"`
	Actual   int64  `json:"actual"`
	Unit     string `json:"unit"`
	Filename string `json:"filename,omitempty"`
}

// Limits is the active quota configuration. It is echoed in rejection
// responses so clients can self-correct without a docs round-trip.
type Limits struct {
	MaxFileBytes  int64 `json:"maxFileBytes"`
	MaxTotalBytes int64 `json:"maxTotalBytes"`
	MaxFileCount  int   `json:"maxFileCount"`
	MaxTotalPages int   `json:"maxTotalPages"`
	BytesPerPage  int64 `json:"bytesPerPage"`
}

// DefaultLimits returns the limits applied when no configuration overrides
// them. BytesPerPage is a coarse admission heuristic, not billing-grade.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:  10 << 20,
		MaxTotalBytes: 50 << 20,
		MaxFileCount:  10,
		MaxTotalPages: 200,
		BytesPerPage:  3000,
	}
}
