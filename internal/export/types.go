// Package export renders amendments to PDF and DOCX.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation. VersionID selects a
// named snapshot; empty means the live content.
type Request struct {
	AmendmentID        string
	VersionID          string
	Format             Format
	IncludeDiscussions bool
	IncludeRoute       bool
	ViewerIsAnonymous  bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates amendment content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrNotPublic indicates an anonymous viewer requested a private amendment.
	ErrNotPublic = errors.New("export amendment not public")
)
