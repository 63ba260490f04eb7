package httpclient

import (
	"bytes"

	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
)

// progressReader reports floor(sent*100/total) as the request body is
// consumed. Values are emitted only when they grow and never exceed 100.
type progressReader struct {
	reader *bytes.Reader
	total  int64
	sent   int64
	last   int
	notify ports.ProgressFunc
}

func newProgressReader(body []byte, notify ports.ProgressFunc) *progressReader {
	return &progressReader{
		reader: bytes.NewReader(body),
		total:  int64(len(body)),
		last:   -1,
		notify: notify,
	}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.sent += int64(n)
		r.report()
	}
	return n, err
}

func (r *progressReader) report() {
	if r.notify == nil || r.total <= 0 {
		return
	}
	pct := int(r.sent * 100 / r.total)
	if pct > 100 {
		pct = 100
	}
	if pct <= r.last {
		return
	}
	r.last = pct
	r.notify(pct)
}
