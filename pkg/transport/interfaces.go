package transport

// FrameReadWriter is frame-level I/O over a stream.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

var (
	_ FrameReadWriter = (*Framer)(nil)
	_ Opener          = (*Dispatcher)(nil)
	_ Opener          = (*SerialOpener)(nil)
	_ Opener          = (*NetworkOpener)(nil)
	_ Resolver        = (*MDNSResolver)(nil)
	_ ByteStream      = (*stream)(nil)
)
