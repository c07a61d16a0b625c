package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/channel"
	"github.com/telecore/telecore-go/pkg/log"
)

// Opener acquires a byte stream for a channel.
type Opener interface {
	Open(ctx context.Context, cfg channel.Config) (ByteStream, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, cfg channel.Config) (ByteStream, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, cfg channel.Config) (ByteStream, error) {
	return f(ctx, cfg)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Serial opens serial channels (default: &SerialOpener{}).
	Serial Opener

	// Network opens network channels (default: &NetworkOpener{}).
	Network Opener

	// Logger receives diagnostics (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives channel state changes (optional).
	ProtocolLogger log.Logger

	// OnOpen is called after every open attempt with its result (optional).
	OnOpen func(cfg channel.Config, err error)
}

// Dispatcher opens channels by their Kind.
type Dispatcher struct {
	serial   Opener
	network  Opener
	logger   *slog.Logger
	protocol log.Logger
	onOpen   func(channel.Config, error)
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		serial:   cfg.Serial,
		network:  cfg.Network,
		logger:   cfg.Logger,
		protocol: cfg.ProtocolLogger,
		onOpen:   cfg.OnOpen,
	}
	if d.serial == nil {
		d.serial = &SerialOpener{}
	}
	if d.network == nil {
		d.network = &NetworkOpener{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.protocol == nil {
		d.protocol = log.NoopLogger{}
	}
	return d
}

// Open validates the config's provenance, then delegates to the opener for
// its Kind. Configs not produced by a validating constructor are rejected
// with channel.ErrInvalidConfig before any I/O. Acquisition failures match
// ErrChannelUnavailable.
func (d *Dispatcher) Open(ctx context.Context, cfg channel.Config) (ByteStream, error) {
	s, err := d.open(ctx, cfg)
	if d.onOpen != nil {
		d.onOpen(cfg, err)
	}
	return s, err
}

func (d *Dispatcher) open(ctx context.Context, cfg channel.Config) (ByteStream, error) {
	if !cfg.Validated() {
		return nil, fmt.Errorf("%w: config was not built by a validating constructor", channel.ErrInvalidConfig)
	}

	var o Opener
	switch cfg.Kind() {
	case channel.KindSerial:
		o = d.serial
	case channel.KindNetwork:
		o = d.network
	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", channel.ErrInvalidConfig, cfg.Kind())
	}

	if err := ctx.Err(); err != nil {
		d.logFailure(cfg, err)
		return nil, unavailable(cfg, err)
	}

	s, err := o.Open(ctx, cfg)
	if err != nil {
		if !errors.Is(err, ErrChannelUnavailable) && !errors.Is(err, channel.ErrInvalidConfig) {
			err = unavailable(cfg, err)
		}
		d.logFailure(cfg, err)
		return nil, err
	}

	d.logger.Info("channel open", "channel", cfg.String(), "stream", s.ID())
	d.protocol.Log(log.Event{
		Timestamp:  time.Now(),
		StreamID:   s.ID(),
		Layer:      log.LayerChannel,
		Category:   log.CategoryState,
		Channel:    cfg.Name(),
		RemoteAddr: s.Describe(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityChannel,
			OldState: "CLOSED",
			NewState: "OPEN",
		},
	})
	return s, nil
}

func (d *Dispatcher) logFailure(cfg channel.Config, err error) {
	d.logger.Warn("channel open failed", "channel", cfg.String(), sl.Err(err))
	d.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerChannel,
		Category:  log.CategoryError,
		Channel:   cfg.Name(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerChannel,
			Message: err.Error(),
			Context: "open " + cfg.String(),
		},
	})
}
