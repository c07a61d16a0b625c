package service

import (
	"sync"

	"github.com/telecore/telecore-go/pkg/log"
	"github.com/telecore/telecore-go/pkg/transport"
)

// framedStream is the read side of an open channel. The master never
// writes, so only frames and the resync count are exposed.
type framedStream struct {
	stream transport.ByteStream
	framer *transport.Framer

	closeOnce sync.Once
	closeErr  error
}

func newFramedStream(s transport.ByteStream, channelName string, maxSize uint32, logger log.Logger) *framedStream {
	return &framedStream{
		stream: s,
		framer: transport.NewStreamFramer(s, transport.FramerConfig{
			MaxFrameSize: maxSize,
			Logger:       logger,
			Channel:      channelName,
		}),
	}
}

func (c *framedStream) ID() string { return c.stream.ID() }

func (c *framedStream) ReadFrame() ([]byte, error) {
	return c.framer.ReadFrame()
}

// Discarded reports bytes skipped while hunting for a sync pair.
func (c *framedStream) Discarded() uint64 { return c.framer.Discarded() }

// Close closes the stream once; later calls return the first result.
func (c *framedStream) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.stream.Close()
	})
	return c.closeErr
}
