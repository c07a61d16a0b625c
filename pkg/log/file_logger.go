package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture file errors.
var (
	ErrNotCaptureFile     = errors.New("not a capture file")
	ErrUnsupportedVersion = errors.New("unsupported capture file version")
)

// FileLogger appends events to a capture file. It is safe for concurrent
// use. Encoding failures never reach the caller; they are counted.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	header  FileHeader
	closed  bool

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewFileLogger opens path for appending. A new file starts with a
// FileHeader; an existing file must already carry one.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	l := &FileLogger{file: f, encoder: encMode.NewEncoder(f)}

	if info.Size() > 0 {
		l.header, err = readHeader(decMode.NewDecoder(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return l, nil
	}

	l.header = FileHeader{
		Magic:   FileMagic,
		Version: FileVersion,
		Created: time.Now(),
		Program: filepath.Base(os.Args[0]),
	}
	if err := l.encoder.Encode(l.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return l, nil
}

// Header returns the file's header.
func (l *FileLogger) Header() FileHeader { return l.header }

// Log appends an event. Events logged after Close are dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.failed.Add(1)
		return
	}
	l.written.Add(1)
}

// Written returns the number of events appended by this logger.
func (l *FileLogger) Written() uint64 { return l.written.Load() }

// Failed returns the number of events that could not be written.
func (l *FileLogger) Failed() uint64 { return l.failed.Load() }

// Close closes the file. It is idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
