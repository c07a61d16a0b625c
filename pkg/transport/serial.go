package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/telecore/telecore-go/pkg/channel"
)

// ErrFlowControlUnsupported is the cause when a serial channel asks for flow
// control the driver cannot provide.
var ErrFlowControlUnsupported = errors.New("flow control not supported by serial driver")

// SerialOpener opens serial devices.
type SerialOpener struct {
	// ReadTimeout bounds each Read on the port. Zero blocks until data arrives.
	ReadTimeout time.Duration

	// openPort defaults to serial.OpenPort; replaced in tests.
	openPort func(*serial.Config) (io.ReadWriteCloser, error)
}

func openSerialPort(c *serial.Config) (io.ReadWriteCloser, error) {
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open opens the port named by cfg. If ctx ends before the driver returns,
// Open reports ErrChannelUnavailable and closes the port once it arrives.
func (o *SerialOpener) Open(ctx context.Context, cfg channel.Config) (ByteStream, error) {
	settings, ok := cfg.Serial()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a serial channel", channel.ErrInvalidConfig, cfg)
	}

	sc, err := driverConfig(settings, o.ReadTimeout)
	if err != nil {
		return nil, unavailable(cfg, err)
	}

	open := o.openPort
	if open == nil {
		open = openSerialPort
	}

	type result struct {
		port io.ReadWriteCloser
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := open(sc)
		done <- result{p, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, unavailable(cfg, r.err)
		}
		return newStream(r.port, channel.KindSerial, settings.String()), nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.port != nil {
				r.port.Close()
			}
		}()
		return nil, unavailable(cfg, ctx.Err())
	}
}

// driverConfig maps validated settings onto the driver's config.
func driverConfig(s channel.SerialSettings, readTimeout time.Duration) (*serial.Config, error) {
	if s.FlowControl != channel.FlowNone {
		return nil, fmt.Errorf("%w: %s", ErrFlowControlUnsupported, s.FlowControl)
	}

	var parity serial.Parity
	switch s.Parity {
	case channel.ParityNone:
		parity = serial.ParityNone
	case channel.ParityOdd:
		parity = serial.ParityOdd
	case channel.ParityEven:
		parity = serial.ParityEven
	case channel.ParityMark:
		parity = serial.ParityMark
	case channel.ParitySpace:
		parity = serial.ParitySpace
	default:
		return nil, fmt.Errorf("%w: parity %s", channel.ErrInvalidConfig, s.Parity)
	}

	var stop serial.StopBits
	switch s.StopBits {
	case 1:
		stop = serial.Stop1
	case 2:
		stop = serial.Stop2
	default:
		return nil, fmt.Errorf("%w: stop bits %d", channel.ErrInvalidConfig, s.StopBits)
	}

	return &serial.Config{
		Name:        s.Port,
		Baud:        s.BaudRate,
		ReadTimeout: readTimeout,
		Size:        byte(s.DataBits),
		Parity:      parity,
		StopBits:    stop,
	}, nil
}
