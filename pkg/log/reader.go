package log

import (
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	StreamID  string
	Channel   string
	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// PointType matches update and point events by type name.
	PointType string
}

// Match reports whether event satisfies every set criterion.
func (f Filter) Match(event Event) bool {
	switch {
	case f.StreamID != "" && event.StreamID != f.StreamID:
		return false
	case f.Channel != "" && event.Channel != f.Channel:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.PointType != "" && event.PointType() != f.PointType:
		return false
	}
	return true
}

// PointType returns the point type name of an update or point event, or "".
func (e Event) PointType() string {
	switch {
	case e.Point != nil:
		return e.Point.PointType
	case e.Update != nil:
		return e.Update.PointType
	default:
		return ""
	}
}

// Reader iterates the events of a capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	header  FileHeader
	filter  Filter
}

// NewReader opens a capture file for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file for reading the events that match
// filter. It fails with ErrNotCaptureFile when the header is missing.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := decMode.NewDecoder(f)
	h, err := readHeader(dec)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{file: f, decoder: dec, header: h, filter: filter}, nil
}

// Header returns the file header.
func (r *Reader) Header() FileHeader { return r.header }

// Next returns the next matching event, or io.EOF at the end of the file.
// A file cut short mid-event yields io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
