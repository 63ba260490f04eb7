package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
)

func (c *Client) upload(ctx context.Context, job domain.JobRequest, onProgress ports.ProgressFunc) (domain.RawResponse, error) {
	body, contentType, err := buildMultipart(job)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("encode %s request: %w", job.Kind, err)
	}

	query := url.Values{}
	query.Set("max_files", strconv.Itoa(job.MaxFiles))
	endpoint := c.baseURL + job.Kind.Route() + "?" + query.Encode()

	reader := newProgressReader(body, onProgress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("create %s request: %w", job.Kind, err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", job.Kind.ExpectedMime()+", application/json")
	if job.ID != "" {
		req.Header.Set("X-Request-ID", job.ID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("%s request: %w", job.Kind, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("read %s response: %w", job.Kind, err)
	}

	return domain.RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Metadata:    flattenHeader(resp.Header),
		Body:        payload,
	}, nil
}

func buildMultipart(job domain.JobRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("max_files", strconv.Itoa(job.MaxFiles)); err != nil {
		return nil, "", err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(job.Archive.Name)))
	header.Set("Content-Type", job.Archive.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(job.Archive.Bytes); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return out
}
