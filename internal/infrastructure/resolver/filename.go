package resolver

import (
	"regexp"
	"strings"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

var (
	quotedFilename   = regexp.MustCompile(`filename="([^"]+)"`)
	unquotedFilename = regexp.MustCompile(`filename=([^";]+)`)
)

// ExtractFilename pulls the filename token out of a content-disposition
// value. A value that is already a bare filename is returned unchanged.
func ExtractFilename(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if m := quotedFilename.FindStringSubmatch(value); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[1]) != ""
	}
	if m := unquotedFilename.FindStringSubmatch(value); m != nil {
		name := strings.TrimSpace(m[1])
		return name, name != ""
	}
	if isBareFilename(value) {
		return value, true
	}
	return "", false
}

func isBareFilename(value string) bool {
	if strings.ContainsAny(value, `";=`) {
		return false
	}
	return strings.Contains(value, ".")
}

// FilenameFor picks the artifact name. Analysis reports always use the
// fixed default even when the response carries a disposition header.
func FilenameFor(kind domain.JobKind, raw domain.RawResponse) string {
	if kind != domain.JobKindDocumentation {
		return kind.DefaultFilename()
	}
	header, ok := raw.Header("Content-Disposition")
	if !ok {
		return kind.DefaultFilename()
	}
	name, ok := ExtractFilename(header)
	if !ok {
		return kind.DefaultFilename()
	}
	return name
}
