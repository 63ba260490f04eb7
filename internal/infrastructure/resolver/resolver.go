package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
)

// Resolver decides whether a raw response is an artifact or an error and is
// the only component that writes artifacts.
type Resolver struct {
	storage ports.ArtifactStorage
	logger  *slog.Logger
}

func New(storage ports.ArtifactStorage, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{storage: storage, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, kind domain.JobKind, raw domain.RawResponse) domain.JobOutcome {
	if raw.IsSuccessStatus() {
		info, err := inspectArtifact(kind, raw.Body)
		if err == nil {
			return r.persist(ctx, kind, raw, info)
		}
		r.logger.Warn("artifact_rejected",
			"kind", kind,
			"status", raw.StatusCode,
			"content_type", raw.ContentType,
			"error", err,
		)
	}
	err := rejection(kind, raw)
	r.logger.Debug("job_rejected", "kind", kind, "status", raw.StatusCode, "error", err)
	return outcomeFor(err)
}

func (r *Resolver) persist(ctx context.Context, kind domain.JobKind, raw domain.RawResponse, info artifactInfo) domain.JobOutcome {
	filename := FilenameFor(kind, raw)
	path, err := r.storage.Save(ctx, filename, bytes.NewReader(raw.Body))
	if err != nil {
		if !domain.IsKind(err, domain.ErrStorage) {
			err = domain.WrapError(domain.ErrStorage, "save "+filename, err)
		}
		r.logger.Error("artifact_save_failed", "kind", kind, "filename", filename, "error", err)
		return outcomeFor(err)
	}

	r.logger.Info("artifact_saved",
		"kind", kind,
		"path", path,
		"size_bytes", len(raw.Body),
		"entries", info.Entries,
		"pages", info.Pages,
	)
	return domain.SuccessOutcome(domain.Success{
		Filename: filepath.Base(path),
		Bytes:    raw.Body,
		Mime:     kind.ExpectedMime(),
		Path:     path,
		Entries:  info.Entries,
		Pages:    info.Pages,
	})
}

// serverRejection carries the text surfaced to the user for a failed job.
type serverRejection struct {
	message string
}

func (e *serverRejection) Error() string {
	return e.message
}

// rejection reads a structured error that may arrive wrapped in a
// binary-looking response.
func rejection(kind domain.JobKind, raw domain.RawResponse) error {
	operation := "resolve " + string(kind)
	text, ok := decodeText(raw.Body)
	if !ok {
		return domain.WrapError(domain.ErrUnparseableServer, operation, &serverRejection{message: unparseableMessage(kind, raw)})
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return domain.WrapError(domain.ErrUnparseableServer, operation, &serverRejection{message: unparseableMessage(kind, raw)})
	}
	msg := messageField(payload)
	if msg == "" {
		msg = fmt.Sprintf("%s (HTTP %d)", strings.TrimSuffix(domain.MessageRequest, "."), raw.StatusCode)
	}
	return domain.WrapError(domain.ErrServer, operation, &serverRejection{message: msg})
}

func outcomeFor(err error) domain.JobOutcome {
	var rej *serverRejection
	if errors.As(err, &rej) {
		return domain.FailureOutcome(domain.KindOf(err), rej.message)
	}
	return domain.FailureOutcome(domain.KindOf(err), "")
}

func decodeText(body []byte) (string, bool) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(body)) == 0 || !utf8.Valid(body) {
		return "", false
	}
	return string(body), true
}

func unparseableMessage(kind domain.JobKind, raw domain.RawResponse) string {
	if raw.IsSuccessStatus() {
		return fmt.Sprintf("Server response was not a valid %s file.", kind.ExpectedMime())
	}
	return fmt.Sprintf("%s (HTTP %d)", strings.TrimSuffix(domain.MessageUnparseable, "."), raw.StatusCode)
}

// messageField understands {"detail": "..."}, FastAPI validation lists
// ({"detail": [{"msg": "..."}]}) and plain message/error fields.
func messageField(payload map[string]any) string {
	for _, key := range []string{"detail", "message", "error"} {
		switch v := payload[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []any:
			var parts []string
			for _, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if msg, ok := obj["msg"].(string); ok && strings.TrimSpace(msg) != "" {
					parts = append(parts, strings.TrimSpace(msg))
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return ""
}
