package zipbuilder

import "github.com/kirillkom/code-explainer-uploader/internal/core/ports"

// tracker emits integer percentages, skipping repeats and holding back 100
// until finish is called.
type tracker struct {
	total  int64
	done   int64
	last   int
	notify ports.ProgressFunc
}

func newTracker(total int64, notify ports.ProgressFunc) *tracker {
	return &tracker{total: total, notify: notify, last: -1}
}

func (t *tracker) add(n int64) {
	t.done += n
	if t.total <= 0 {
		return
	}
	pct := int(t.done * 100 / t.total)
	if pct > 99 {
		pct = 99
	}
	t.report(pct)
}

func (t *tracker) finish() {
	t.report(100)
}

func (t *tracker) report(pct int) {
	if t.notify == nil || pct <= t.last {
		return
	}
	t.last = pct
	t.notify(pct)
}
