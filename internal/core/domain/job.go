package domain

import (
	"strings"
	"time"
)

const (
	MaxFiles       = 20
	DefaultTimeout = 300000 * time.Millisecond

	DocumentationFilename = "code_documentation.zip"
	ReportFilename        = "project_analysis_report.pdf"

	PDFMimeType = "application/pdf"
)

type JobKind string

const (
	JobKindNone           JobKind = ""
	JobKindDocumentation  JobKind = "documentation"
	JobKindAnalysisReport JobKind = "analysis_report"
)

func (k JobKind) Valid() bool {
	return k == JobKindDocumentation || k == JobKindAnalysisReport
}

// Route is the remote service path handling this kind of job.
func (k JobKind) Route() string {
	switch k {
	case JobKindDocumentation:
		return "/upload"
	case JobKindAnalysisReport:
		return "/generate-report"
	default:
		return ""
	}
}

// ExpectedMime is the content type of a successful artifact.
func (k JobKind) ExpectedMime() string {
	if k == JobKindAnalysisReport {
		return PDFMimeType
	}
	return ArchiveMimeType
}

func (k JobKind) DefaultFilename() string {
	if k == JobKindAnalysisReport {
		return ReportFilename
	}
	return DocumentationFilename
}

// JobRequest describes one remote operation. It is built right before the
// transport call and dropped afterwards.
type JobRequest struct {
	ID       string
	Kind     JobKind
	Archive  *Archive
	MaxFiles int
	Timeout  time.Duration
}

func NewJobRequest(id string, kind JobKind, archive *Archive, timeout time.Duration) JobRequest {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return JobRequest{
		ID:       id,
		Kind:     kind,
		Archive:  archive,
		MaxFiles: MaxFiles,
		Timeout:  timeout,
	}
}

// RawResponse is the unjudged transport result.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Metadata    map[string]string
	Body        []byte
}

// Header looks up a metadata entry case-insensitively.
func (r RawResponse) Header(key string) (string, bool) {
	for k, v := range r.Metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (r RawResponse) IsSuccessStatus() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
