package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/telecore/telecore-go/pkg/log"
	"github.com/telecore/telecore-go/pkg/point"
)

const tsLayout = "2006-01-02T15:04:05.000Z"

// RunView prints the selected events, one summary line each followed by
// indented details.
func RunView(path string, sel Selector, w io.Writer) error {
	_, err := each(path, sel, func(e log.Event) error {
		_, err := io.WriteString(w, render(e))
		return err
	})
	return err
}

func render(e log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-8s  %-3s  %-9s  %-6s",
		e.Timestamp.UTC().Format(tsLayout), shortID(e.StreamID),
		e.Direction, e.Layer, kindOf(e))
	if e.Channel != "" {
		b.WriteString("  " + e.Channel)
	}
	b.WriteByte('\n')
	for _, line := range details(e) {
		b.WriteString("    " + line + "\n")
	}
	return b.String()
}

// kindOf names the payload an event carries.
func kindOf(e log.Event) string {
	switch {
	case e.Frame != nil:
		return "frame"
	case e.Update != nil:
		return "update"
	case e.Point != nil:
		return "point"
	case e.StateChange != nil:
		return "state"
	case e.Error != nil:
		return "error"
	}
	return "-"
}

func shortID(id string) string {
	switch {
	case id == "":
		return "-"
	case len(id) > 8:
		return id[:8]
	}
	return id
}

func details(e log.Event) []string {
	switch {
	case e.Frame != nil:
		line := fmt.Sprintf("%d bytes", e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			line += "  " + hex.EncodeToString(e.Frame.Data)
			if e.Frame.Truncated {
				line += "..."
			}
		}
		return []string{line}

	case e.Update != nil:
		u := e.Update
		out := []string{
			fmt.Sprintf("%s[%d] = %v", u.PointType, u.Index, u.Value),
			"quality " + qualityString(u.PointType, u.Quality),
		}
		if u.TimestampMS != nil {
			out = append(out, "at "+point.Timestamp(*u.TimestampMS).String())
		}
		return out

	case e.Point != nil:
		p := e.Point
		return []string{
			fmt.Sprintf("%s[%d] %s", p.PointType, p.Index, p.Reasons),
			"quality " + qualityString(p.PointType, p.OldQuality) + " => " + qualityString(p.PointType, p.NewQuality),
		}

	case e.StateChange != nil:
		s := e.StateChange
		from := s.OldState
		if from == "" {
			from = "-"
		}
		line := fmt.Sprintf("%s %s => %s", strings.ToLower(s.Entity.String()), from, s.NewState)
		if s.Reason != "" {
			line += ": " + s.Reason
		}
		return []string{line}

	case e.Error != nil:
		line := e.Error.Layer.String() + ": " + e.Error.Message
		if e.Error.Context != "" {
			line = e.Error.Context + ": " + line
		}
		return []string{line}
	}
	return nil
}

// qualityString renders bits with the flag names of the point type's table,
// or as bare hex when the type is unknown.
func qualityString(pointType string, bits uint8) string {
	t, err := point.ParseType(pointType)
	if err != nil {
		return fmt.Sprintf("0x%02X", bits)
	}
	return fmt.Sprintf("0x%02X %s", bits, t.Table().FromBits(bits))
}
