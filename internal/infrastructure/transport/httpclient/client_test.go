package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/resilience"
)

func testArchive() *domain.Archive {
	return domain.NewArchive("project.zip", []byte(strings.Repeat("z", 64*1024)))
}

func TestSendPostsMultipartToDocumentationRoute(t *testing.T) {
	var (
		gotPath     string
		gotQuery    string
		gotMaxFiles string
		gotFilename string
		gotPartType string
		gotBytes    int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("max_files")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		gotMaxFiles = r.FormValue("max_files")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotBytes = len(raw)
		gotFilename = header.Filename
		gotPartType = header.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="docs.zip"`)
		_, _ = w.Write([]byte("PK-bytes"))
	}))
	defer server.Close()

	client := New(server.URL + "/")
	var progress []int
	req := domain.NewJobRequest("job-1", domain.JobKindDocumentation, testArchive(), time.Second)
	raw, err := client.Send(context.Background(), req, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/upload" {
		t.Fatalf("expected /upload, got %q", gotPath)
	}
	if gotQuery != "20" || gotMaxFiles != "20" {
		t.Fatalf("expected max_files=20 in query and form, got %q / %q", gotQuery, gotMaxFiles)
	}
	if gotFilename != "project.zip" || gotPartType != "application/zip" {
		t.Fatalf("unexpected file part %q %q", gotFilename, gotPartType)
	}
	if gotBytes != 64*1024 {
		t.Fatalf("expected full archive upload, got %d bytes", gotBytes)
	}

	if raw.StatusCode != http.StatusOK || string(raw.Body) != "PK-bytes" {
		t.Fatalf("unexpected raw response %+v", raw)
	}
	if v, ok := raw.Header("Content-Disposition"); !ok || !strings.Contains(v, "docs.zip") {
		t.Fatalf("expected content-disposition metadata, got %v", raw.Metadata)
	}

	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("expected upload progress ending at 100, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Fatalf("progress must strictly grow between callbacks: %v", progress)
		}
	}
}

func TestSendReturnsErrorStatusesUnjudged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-report" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"unsupported file type"}`))
	}))
	defer server.Close()

	req := domain.NewJobRequest("job-2", domain.JobKindAnalysisReport, testArchive(), time.Second)
	raw, err := New(server.URL).Send(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if raw.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", raw.StatusCode)
	}
	if raw.ContentType != "application/pdf" {
		t.Fatalf("expected declared content type, got %q", raw.ContentType)
	}
}

func TestSendTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	req := domain.NewJobRequest("job-3", domain.JobKindDocumentation, testArchive(), 50*time.Millisecond)
	_, err := New(server.URL).Send(context.Background(), req, nil)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestSendReportsConnectivityAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	exec := resilience.NewExecutor(resilience.Config{BreakerEnabled: true}, nil)
	client := NewWithOptions(url, Options{ResilienceExecutor: exec})
	req := domain.NewJobRequest("job-4", domain.JobKindDocumentation, testArchive(), time.Second)
	_, err := client.Send(context.Background(), req, nil)
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("connection refusal must not be reported as timeout")
	}
}

func TestSendLogsBreakerStateOnFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	exec := resilience.NewExecutor(resilience.Config{BreakerEnabled: true, BreakerMinRequests: 1, BreakerFailureRatio: 1}, logger)
	client := NewWithOptions(url, Options{ResilienceExecutor: exec, Logger: logger})
	req := domain.NewJobRequest("job-5", domain.JobKindAnalysisReport, testArchive(), time.Second)
	if _, err := client.Send(context.Background(), req, nil); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		if record["msg"] == "transport_failed" {
			found = true
			if record["breaker"] != exec.State("generate-report") || record["job_id"] != "job-5" {
				t.Fatalf("unexpected record %v", record)
			}
		}
	}
	if !found {
		t.Fatalf("expected transport_failed record, got %s", logs.String())
	}
}

func TestSendRejectsInvalidRequest(t *testing.T) {
	_, err := New("http://127.0.0.1:1").Send(context.Background(), domain.JobRequest{Kind: domain.JobKindDocumentation}, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestHealthReturnsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy","output_dir":"/tmp/output"}`))
	}))
	defer server.Close()

	status, err := New(server.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status != "healthy" {
		t.Fatalf("expected healthy, got %q", status)
	}
}

func TestHealthIncludesBodyInStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL).Health(context.Background())
	if err == nil || !strings.Contains(err.Error(), "warming up") {
		t.Fatalf("expected body in error, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
}

func TestProgressReaderCapsAndSkipsRepeats(t *testing.T) {
	var got []int
	r := newProgressReader(make([]byte, 300), func(p int) { got = append(got, p) })
	buf := make([]byte, 1)
	for {
		if _, err := r.Read(buf); err != nil {
			break
		}
	}
	if len(got) != 101 || got[0] != 0 || got[len(got)-1] != 100 {
		t.Fatalf("expected 0..100 once each, got %v", got)
	}
}
