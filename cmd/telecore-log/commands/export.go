package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/telecore/telecore-go/pkg/log"
)

// exporter writes events in one output format. flush runs once after the
// last event.
type exporter struct {
	write func(log.Event) error
	flush func() error
}

var formats = map[string]func(io.Writer) (exporter, error){
	"jsonl": newJSONLExporter,
	"csv":   newCSVExporter,
}

// RunExport converts the selected events to format, writing to output or
// to stdout when output is empty.
func RunExport(path, format, output string, sel Selector) error {
	newExporter, ok := formats[format]
	if !ok {
		return fmt.Errorf("unknown format %q (want one of %s)", format, names(formats))
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	x, err := newExporter(w)
	if err != nil {
		return err
	}
	if _, err := each(path, sel, x.write); err != nil {
		return err
	}
	return x.flush()
}

func newJSONLExporter(w io.Writer) (exporter, error) {
	enc := json.NewEncoder(w)
	return exporter{
		write: func(e log.Event) error { return enc.Encode(e) },
		flush: func() error { return nil },
	}, nil
}

var csvColumns = []string{
	"timestamp", "stream_id", "channel", "direction", "layer", "category",
	"kind", "point_type", "index", "quality",
}

func newCSVExporter(w io.Writer) (exporter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return exporter{}, err
	}
	return exporter{
		write: func(e log.Event) error { return cw.Write(csvRow(e)) },
		flush: func() error {
			cw.Flush()
			return cw.Error()
		},
	}, nil
}

func csvRow(e log.Event) []string {
	row := []string{
		e.Timestamp.UTC().Format(tsLayout),
		e.StreamID,
		e.Channel,
		e.Direction.String(),
		e.Layer.String(),
		e.Category.String(),
		kindOf(e),
		"", "", "",
	}
	switch {
	case e.Update != nil:
		row[7] = e.Update.PointType
		row[8] = strconv.FormatUint(uint64(e.Update.Index), 10)
		row[9] = fmt.Sprintf("0x%02X", e.Update.Quality)
	case e.Point != nil:
		row[7] = e.Point.PointType
		row[8] = strconv.FormatUint(uint64(e.Point.Index), 10)
		row[9] = fmt.Sprintf("0x%02X", e.Point.NewQuality)
	}
	return row
}
