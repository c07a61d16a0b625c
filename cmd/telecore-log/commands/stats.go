package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/telecore/telecore-go/pkg/log"
)

// Stats summarises a capture.
type Stats struct {
	Header log.FileHeader
	Events int
	First  time.Time
	Last   time.Time

	ByLayer    map[log.Layer]int
	ByCategory map[log.Category]int

	// Frames counts frame events by direction.
	Frames map[log.Direction]int

	// Points counts database point events by point type.
	Points map[string]int

	// Errors counts error events by context.
	Errors map[string]int

	Streams map[string]*StreamStats
}

// StreamStats summarises one byte stream.
type StreamStats struct {
	ID        string
	Channel   string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Frames    int
	Updates   int
}

// Collect reads the selected events of a capture into a Stats.
func Collect(path string, sel Selector) (*Stats, error) {
	s := &Stats{
		ByLayer:    map[log.Layer]int{},
		ByCategory: map[log.Category]int{},
		Frames:     map[log.Direction]int{},
		Points:     map[string]int{},
		Errors:     map[string]int{},
		Streams:    map[string]*StreamStats{},
	}
	h, err := each(path, sel, func(e log.Event) error {
		s.add(e)
		return nil
	})
	s.Header = h
	return s, err
}

func (s *Stats) add(e log.Event) {
	s.Events++
	s.ByLayer[e.Layer]++
	s.ByCategory[e.Category]++
	if s.First.IsZero() || e.Timestamp.Before(s.First) {
		s.First = e.Timestamp
	}
	if e.Timestamp.After(s.Last) {
		s.Last = e.Timestamp
	}

	switch {
	case e.Frame != nil:
		s.Frames[e.Direction]++
	case e.Point != nil:
		s.Points[e.Point.PointType]++
	case e.Error != nil:
		ctx := e.Error.Context
		if ctx == "" {
			ctx = "-"
		}
		s.Errors[ctx]++
	}

	// Database events have no stream.
	if e.StreamID == "" {
		return
	}
	st := s.Streams[e.StreamID]
	if st == nil {
		st = &StreamStats{ID: e.StreamID, FirstSeen: e.Timestamp, LastSeen: e.Timestamp}
		s.Streams[e.StreamID] = st
	}
	st.Events++
	if e.Timestamp.After(st.LastSeen) {
		st.LastSeen = e.Timestamp
	}
	if st.Channel == "" {
		st.Channel = e.Channel
	}
	if e.Frame != nil {
		st.Frames++
	}
	if e.Update != nil {
		st.Updates++
	}
}

// Print writes the summary as aligned sections.
func (s *Stats) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "capture\t%s v%d", s.Header.Magic, s.Header.Version)
	if s.Header.Program != "" {
		fmt.Fprintf(tw, " by %s", s.Header.Program)
	}
	fmt.Fprintf(tw, ", created %s\n", s.Header.Created.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "events\t%d\n", s.Events)
	if s.Events > 0 {
		fmt.Fprintf(tw, "span\t%s .. %s (%s)\n",
			s.First.UTC().Format(time.RFC3339), s.Last.UTC().Format(time.RFC3339),
			s.Last.Sub(s.First).Round(time.Millisecond))
	}

	section(tw, "layers")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerDatabase, log.LayerChannel} {
		count(tw, l.String(), s.ByLayer[l])
	}
	section(tw, "categories")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryPoint, log.CategoryState, log.CategoryError} {
		count(tw, c.String(), s.ByCategory[c])
	}
	if len(s.Frames) > 0 {
		section(tw, "frames")
		count(tw, log.DirectionIn.String(), s.Frames[log.DirectionIn])
		count(tw, log.DirectionOut.String(), s.Frames[log.DirectionOut])
	}
	sortedCounts(tw, "point events", s.Points)
	sortedCounts(tw, "errors", s.Errors)

	fmt.Fprintf(tw, "\nstreams\t%d\n", len(s.Streams))
	streams := make([]*StreamStats, 0, len(s.Streams))
	for _, st := range s.Streams {
		streams = append(streams, st)
	}
	slices.SortFunc(streams, func(a, b *StreamStats) int { return a.FirstSeen.Compare(b.FirstSeen) })
	for _, st := range streams {
		fmt.Fprintf(tw, "  %s\t%s\t%d events\t%d frames\t%d updates\t%s\n",
			shortID(st.ID), orDash(st.Channel), st.Events, st.Frames, st.Updates,
			st.LastSeen.Sub(st.FirstSeen).Round(time.Millisecond))
	}
	return tw.Flush()
}

func section(w io.Writer, title string) { fmt.Fprintf(w, "\n%s\n", title) }

func count(w io.Writer, label string, n int) {
	if n > 0 {
		fmt.Fprintf(w, "  %s\t%d\n", strings.ToLower(label), n)
	}
}

func sortedCounts(w io.Writer, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	section(w, title)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(w, "  %s\t%d\n", k, m[k])
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunStats prints the summary of the selected events.
func RunStats(path string, sel Selector, w io.Writer) error {
	s, err := Collect(path, sel)
	if err != nil {
		return err
	}
	return s.Print(w)
}
