// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar implements a progress bar that must be manually managed.
// That is, Display() must be called whenever an updated progress bar
// should be written.
//
// ProgressBar does not use concurrency.
type ProgressBar struct {
	out       io.Writer
	width     int
	max       int
	progress  int
	bar       strings.Builder
	startTime time.Time
}

// New returns a new ProgressBar that is width characters wide, reaches
// 100% after max calls to Increment(), and writes to out.
func New(out io.Writer, width, max int) (*ProgressBar, error) {
	if width <= 0 || max <= 0 {
		return nil, fmt.Errorf("new: width and max must be positive"+
			"\n\thave(%v, %v)", width, max)
	}
	return &ProgressBar{
		out:       out,
		width:     width,
		max:       max,
		startTime: time.Now(),
	}, nil
}

// Increment increments the internal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ProgressBar) Increment() {
	if p.progress < p.max {
		p.progress++
	}
}

// Progress returns the fraction of iterations completed
func (p *ProgressBar) Progress() float64 {
	return float64(p.progress) / float64(p.max)
}

// String returns the current progress bar
func (p *ProgressBar) String() string {
	p.bar.Reset()
	p.bar.WriteString("|")

	filled := p.progress * p.width / p.max
	p.bar.WriteString(strings.Repeat("█", filled))
	p.bar.WriteString(strings.Repeat(" ", p.width-filled))

	fmt.Fprintf(&p.bar, "| [%.2f%% | elapsed: %v]", p.Progress()*100,
		time.Since(p.startTime).Truncate(time.Second))
	return p.bar.String()
}

// Display overwrites the current terminal line with the progress bar
func (p *ProgressBar) Display() {
	fmt.Fprintf(p.out, "\r\033[K%v", p.String())
}

// Close moves the output to the next line after the final Display()
func (p *ProgressBar) Close() {
	fmt.Fprintln(p.out)
}
