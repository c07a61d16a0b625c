package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/telecore/telecore-go/pkg/channel"
	"github.com/telecore/telecore-go/pkg/log"
)

type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

// rawFrame builds a header claiming length n followed by payload.
func rawFrame(n uint32, payload ...byte) []byte {
	b := []byte{SyncByte0, SyncByte1, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(b[2:], n)
	return append(b, payload...)
}

func readerOver(data []byte, cfg FramerConfig) *Framer {
	return NewFramer(bytes.NewBuffer(data), cfg)
}

func TestWriteFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFramer(&buf, FramerConfig{}).WriteFrame([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("WriteFrame error = %v", err)
	}
	want := []byte{0x05, 0x64, 0x00, 0x00, 0x00, 0x02, 0xAA, 0xBB}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = % x, want % x", buf.Bytes(), want)
	}
	if FrameSize(2) != len(want) {
		t.Errorf("FrameSize(2) = %d, want %d", FrameSize(2), len(want))
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"single byte":   {0x42},
		"sync in data":  {SyncByte0, SyncByte1, SyncByte0},
		"binary":        {0x00, 0xFF, 0x7F, 0x80},
		"kilobyte":      bytes.Repeat([]byte{0x05}, 1024),
		"at size limit": bytes.Repeat([]byte("y"), DefaultMaxFrameSize),
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewFramer(&buf, FramerConfig{})
			if err := f.WriteFrame(payload); err != nil {
				t.Fatalf("WriteFrame error = %v", err)
			}
			got, err := f.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("payload differs (len %d vs %d)", len(got), len(payload))
			}
			if _, err := f.ReadFrame(); err != io.EOF {
				t.Errorf("second ReadFrame = %v, want io.EOF", err)
			}
		})
	}
}

func TestWriteFrameRejects(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, FramerConfig{MaxFrameSize: 8})

	if err := f.WriteFrame(nil); !errors.Is(err, ErrFrameEmpty) {
		t.Errorf("empty: error = %v, want ErrFrameEmpty", err)
	}
	if err := f.WriteFrame(make([]byte, 9)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("oversize: error = %v, want ErrFrameTooLarge", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected frames wrote %d bytes", buf.Len())
	}
}

func TestReadFrameResync(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		discarded uint64
	}{
		{"clean", rawFrame(1, 0xAA), 0},
		{"leading noise", append([]byte("abc"), rawFrame(1, 0xAA)...), 3},
		{"doubled first sync byte", append([]byte{SyncByte0}, rawFrame(1, 0xAA)...), 1},
		{"broken sync pair", append([]byte{SyncByte0, 0x00}, rawFrame(1, 0xAA)...), 2},
		{"lone second sync byte", append([]byte{SyncByte1}, rawFrame(1, 0xAA)...), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &capturingLogger{}
			f := readerOver(tt.input, FramerConfig{Logger: logger, Channel: "plant"})

			got, err := f.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame error = %v", err)
			}
			if !bytes.Equal(got, []byte{0xAA}) {
				t.Errorf("payload = % x, want aa", got)
			}
			if f.Discarded() != tt.discarded {
				t.Errorf("Discarded = %d, want %d", f.Discarded(), tt.discarded)
			}

			var resyncs int
			for _, e := range logger.Events() {
				if e.Error != nil && e.Error.Context == "resync" {
					resyncs++
					want := fmt.Sprintf("discarded %d bytes", tt.discarded)
					if e.Error.Message != want || e.Channel != "plant" {
						t.Errorf("resync event = %+v", e.Error)
					}
				}
			}
			if (tt.discarded > 0) != (resyncs == 1) {
				t.Errorf("resync events = %d with %d discarded", resyncs, tt.discarded)
			}
		})
	}
}

func TestReadFrameRecoverableHeaders(t *testing.T) {
	var input []byte
	input = append(input, rawFrame(0)...)
	input = append(input, rawFrame(1000)...)
	input = append(input, rawFrame(2, 0x01, 0x02)...)

	f := readerOver(input, FramerConfig{MaxFrameSize: 16})

	_, err := f.ReadFrame()
	if !errors.Is(err, ErrFrameEmpty) || !Recoverable(err) {
		t.Fatalf("first ReadFrame = %v, want recoverable ErrFrameEmpty", err)
	}
	_, err = f.ReadFrame()
	if !errors.Is(err, ErrFrameTooLarge) || !Recoverable(err) {
		t.Fatalf("second ReadFrame = %v, want recoverable ErrFrameTooLarge", err)
	}
	got, err := f.ReadFrame()
	if err != nil {
		t.Fatalf("third ReadFrame error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("payload = % x, want 01 02", got)
	}
}

func TestReadFrameEndOfStream(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"empty stream", nil, io.EOF},
		{"noise only", []byte("zzz"), io.EOF},
		{"lone sync byte", []byte{SyncByte0}, ErrFrameTruncated},
		{"short length", []byte{SyncByte0, SyncByte1, 0x00, 0x00}, ErrFrameTruncated},
		{"short payload", rawFrame(4, 0x01, 0x02), ErrFrameTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readerOver(tt.input, FramerConfig{}).ReadFrame()
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadFrame = %v, want %v", err, tt.want)
			}
			if Recoverable(err) {
				t.Errorf("%v reported recoverable", err)
			}
		})
	}
}

func TestConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, FramerConfig{})

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				payload := bytes.Repeat([]byte{byte(w)}, 10+i)
				if err := f.WriteFrame(payload); err != nil {
					t.Errorf("WriteFrame error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for n := 0; ; n++ {
		got, err := f.ReadFrame()
		if err == io.EOF {
			if n != writers*perWriter {
				t.Errorf("read %d frames, want %d", n, writers*perWriter)
			}
			return
		}
		if err != nil {
			t.Fatalf("ReadFrame %d error = %v", n, err)
		}
		if !bytes.Equal(got, bytes.Repeat(got[:1], len(got))) {
			t.Fatalf("frame %d interleaved: % x", n, got)
		}
	}
}

func TestStreamFramerTagsEvents(t *testing.T) {
	left, right := net.Pipe()
	a := newStream(left, channel.KindNetwork, "pipe-a")
	b := newStream(right, channel.KindNetwork, "pipe-b")
	defer a.Close()
	defer b.Close()

	logger := &capturingLogger{}
	fa := NewStreamFramer(a, FramerConfig{Logger: logger, Channel: "plant"})
	fb := NewStreamFramer(b, FramerConfig{Logger: logger, Channel: "plant"})

	payload := []byte{0xA5, 0x01, 0x02}
	done := make(chan error, 1)
	go func() { done <- fa.WriteFrame(payload) }()

	got, err := fb.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = % x, want % x", got, payload)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrame error = %v", err)
	}

	dirs := map[string]log.Direction{}
	for _, e := range logger.Events() {
		if e.Frame == nil || e.Layer != log.LayerTransport || e.Channel != "plant" {
			t.Errorf("unexpected event %+v", e)
			continue
		}
		if e.Frame.Size != FrameSize(len(payload)) {
			t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(payload)))
		}
		dirs[e.StreamID] = e.Direction
	}
	if dirs[a.ID()] != log.DirectionOut || dirs[b.ID()] != log.DirectionIn {
		t.Errorf("events not tagged with stream IDs: %v", dirs)
	}
}

func TestReadAfterStreamClose(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	s := newStream(left, channel.KindNetwork, "pipe")
	f := NewStreamFramer(s, FramerConfig{})

	if err := s.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, err := f.ReadFrame(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("ReadFrame after close = %v, want ErrStreamClosed", err)
	}
}

func TestCaptureDataIsCapped(t *testing.T) {
	var buf bytes.Buffer
	logger := &capturingLogger{}
	f := NewFramer(&buf, FramerConfig{Logger: logger})

	large := bytes.Repeat([]byte("x"), MaxLogFrameDataSize+904)
	if err := f.WriteFrame(large); err != nil {
		t.Fatalf("WriteFrame error = %v", err)
	}
	if err := f.WriteFrame([]byte("ok")); err != nil {
		t.Fatalf("WriteFrame error = %v", err)
	}

	events := logger.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	big, small := events[0].Frame, events[1].Frame
	if big.Size != FrameSize(len(large)) || len(big.Data) != MaxLogFrameDataSize || !big.Truncated {
		t.Errorf("large frame event: size=%d data=%d truncated=%v", big.Size, len(big.Data), big.Truncated)
	}
	if small.Truncated || string(small.Data) != "ok" {
		t.Errorf("small frame event = %+v", small)
	}
}
