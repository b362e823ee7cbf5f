package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar displays the progress of a byte transfer.
// With no known total it shows the running byte count only.
type ProgressBar struct {
	w       io.Writer
	title   string
	total   int64
	current int64
	width   int
	mu      sync.Mutex
}

// NewProgressBar creates a new progress bar writing to w.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		width: 30,
	}
}

// SetTotal sets the expected size.
func (p *ProgressBar) SetTotal(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Increment adds n bytes to the progress.
func (p *ProgressBar) Increment(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	p.render()
}

// Finish renders the final state and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total > 0 {
		p.current = p.total
	}
	p.render()
	fmt.Fprintln(p.w)
}

// Writer returns dst wrapped so every write advances the bar.
func (p *ProgressBar) Writer(dst io.Writer) io.Writer {
	return &progressWriter{dst: dst, bar: p}
}

// Reader returns src wrapped so every read advances the bar.
func (p *ProgressBar) Reader(src io.Reader) io.Reader {
	return &progressReader{src: src, bar: p}
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %s", p.title, formatBytes(p.current))
		return
	}

	percent := float64(p.current) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	filled := int(float64(p.width) * percent)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", p.width-filled)

	fmt.Fprintf(p.w, "\r%s [%s] %3.0f%% (%s/%s)",
		p.title, bar, percent*100, formatBytes(p.current), formatBytes(p.total))
}

type progressWriter struct {
	dst io.Writer
	bar *ProgressBar
}

func (w *progressWriter) Write(b []byte) (int, error) {
	n, err := w.dst.Write(b)
	w.bar.Increment(int64(n))
	return n, err
}

type progressReader struct {
	src io.Reader
	bar *ProgressBar
}

func (r *progressReader) Read(b []byte) (int, error) {
	n, err := r.src.Read(b)
	if n > 0 {
		r.bar.Increment(int64(n))
	}
	return n, err
}

// formatBytes formats a byte count in binary units.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
