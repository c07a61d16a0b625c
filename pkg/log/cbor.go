package log

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture file format. A file is one FileHeader followed by Events, each a
// self-delimiting CBOR map.
const (
	FileMagic   = "TLOG"
	FileVersion = 1
)

// FileHeader is the first record of every capture file.
type FileHeader struct {
	Magic   string    `cbor:"1,keyasint"`
	Version uint8     `cbor:"2,keyasint"`
	Created time.Time `cbor:"3,keyasint"`

	// Program that wrote the file.
	Program string `cbor:"4,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Timestamps keep nanoseconds so events on one stream stay ordered.
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor decoder mode: %v", err))
	}
}

// EncodeEvent encodes one event.
func EncodeEvent(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// DecodeEvent decodes one event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := decMode.Unmarshal(data, &event)
	return event, err
}

// readHeader decodes and checks the file header from dec.
func readHeader(dec *cbor.Decoder) (FileHeader, error) {
	var h FileHeader
	if err := dec.Decode(&h); err != nil {
		if err == io.EOF {
			return h, fmt.Errorf("%w: empty file", ErrNotCaptureFile)
		}
		return h, fmt.Errorf("%w: %v", ErrNotCaptureFile, err)
	}
	if h.Magic != FileMagic {
		return h, fmt.Errorf("%w: bad magic %q", ErrNotCaptureFile, h.Magic)
	}
	if h.Version == 0 || h.Version > FileVersion {
		return h, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
