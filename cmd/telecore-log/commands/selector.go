// Package commands implements the telecore-log subcommands.
package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/telecore/telecore-go/pkg/log"
)

// Selector is the event selection shared by every subcommand. Empty fields
// select everything.
type Selector struct {
	StreamID  string
	Channel   string
	PointType string
	Layer     string
	Direction string
	Category  string

	// Since and Until are RFC 3339 times; Until is exclusive.
	Since string
	Until string
}

// Bind registers the selector's flags on fs.
func (s *Selector) Bind(fs *flag.FlagSet) {
	fs.StringVar(&s.StreamID, "stream-id", "", "only events of this stream")
	fs.StringVar(&s.Channel, "channel", "", "only events of this channel")
	fs.StringVar(&s.PointType, "point-type", "", "only updates and point events of this type (binary, analog, counter, ...)")
	fs.StringVar(&s.Layer, "layer", "", "only this layer ("+names(layers)+")")
	fs.StringVar(&s.Direction, "direction", "", "only this direction ("+names(directions)+")")
	fs.StringVar(&s.Category, "category", "", "only this category ("+names(categories)+")")
	fs.StringVar(&s.Since, "since", "", "only events at or after this RFC 3339 time")
	fs.StringVar(&s.Until, "until", "", "only events before this RFC 3339 time")
}

var (
	layers = map[string]log.Layer{
		"transport": log.LayerTransport,
		"wire":      log.LayerWire,
		"database":  log.LayerDatabase,
		"db":        log.LayerDatabase,
		"channel":   log.LayerChannel,
	}
	directions = map[string]log.Direction{
		"in":  log.DirectionIn,
		"out": log.DirectionOut,
	}
	categories = map[string]log.Category{
		"message": log.CategoryMessage,
		"point":   log.CategoryPoint,
		"state":   log.CategoryState,
		"error":   log.CategoryError,
	}
)

func names[V any](m map[string]V) string {
	return strings.Join(slices.Sorted(maps.Keys(m)), ", ")
}

// lookup resolves a case-insensitive flag value; "" yields nil.
func lookup[V any](kind, value string, m map[string]V) (*V, error) {
	if value == "" {
		return nil, nil
	}
	v, ok := m[strings.ToLower(value)]
	if !ok {
		return nil, fmt.Errorf("invalid %s %q (want one of %s)", kind, value, names(m))
	}
	return &v, nil
}

func parseTime(kind, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	return &t, nil
}

// Filter converts the selector, reporting every invalid field.
func (s Selector) Filter() (log.Filter, error) {
	f := log.Filter{StreamID: s.StreamID, Channel: s.Channel, PointType: s.PointType}

	var errs []error
	var err error
	if f.Layer, err = lookup("layer", s.Layer, layers); err != nil {
		errs = append(errs, err)
	}
	if f.Direction, err = lookup("direction", s.Direction, directions); err != nil {
		errs = append(errs, err)
	}
	if f.Category, err = lookup("category", s.Category, categories); err != nil {
		errs = append(errs, err)
	}
	if f.TimeStart, err = parseTime("since", s.Since); err != nil {
		errs = append(errs, err)
	}
	if f.TimeEnd, err = parseTime("until", s.Until); err != nil {
		errs = append(errs, err)
	}
	return f, errors.Join(errs...)
}

// each calls fn for every selected event of the capture at path.
func each(path string, sel Selector, fn func(log.Event) error) (log.FileHeader, error) {
	filter, err := sel.Filter()
	if err != nil {
		return log.FileHeader{}, err
	}
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return log.FileHeader{}, fmt.Errorf("open capture: %w", err)
	}
	defer r.Close()

	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.Header(), nil
		}
		if err != nil {
			return r.Header(), fmt.Errorf("read capture: %w", err)
		}
		if err := fn(e); err != nil {
			return r.Header(), err
		}
	}
}
