package master

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// AsciiViewer prints every snapshot as text
type AsciiViewer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewAsciiViewer(w io.Writer) *AsciiViewer {
	return &AsciiViewer{w: w}
}

func (v *AsciiViewer) Observe(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	scores := make([]string, 0, 2)
	if s.Universe != nil {
		for _, score := range s.Universe.Scores() {
			scores = append(scores, fmt.Sprint(score))
		}
	}
	fmt.Fprintf(v.w, "Round: %d Turn: %d Score: %s\n", s.Round, s.Turn, strings.Join(scores, ":"))

	events := make([]string, len(s.Events))
	for i, e := range s.Events {
		events[i] = e.String()
	}
	fmt.Fprintf(v.w, "Events: [%s]\n", strings.Join(events, ", "))
	if s.Universe != nil {
		fmt.Fprint(v.w, s.Universe.CompactString())
	}
	fmt.Fprintln(v.w)
}

func (v *AsciiViewer) Finish(r Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "Game finished: %s\n", r.String())
}
