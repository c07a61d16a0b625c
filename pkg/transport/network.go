package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/telecore/telecore-go/pkg/channel"
)

// ErrNoResolver is the cause when a channel names an mDNS service but the
// NetworkOpener has no Resolver.
var ErrNoResolver = errors.New("no resolver configured")

// Resolver maps a service instance name to a dialable host:port.
type Resolver interface {
	Resolve(ctx context.Context, instance string) (string, error)
}

// NetworkOpener dials TCP or UDP endpoints.
type NetworkOpener struct {
	// Dialer is used for every dial (default: zero net.Dialer).
	Dialer *net.Dialer

	// Resolver looks up channels configured by service name (optional).
	Resolver Resolver
}

// Open dials the channel's endpoint once.
func (o *NetworkOpener) Open(ctx context.Context, cfg channel.Config) (ByteStream, error) {
	settings, ok := cfg.Network()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a network channel", channel.ErrInvalidConfig, cfg)
	}

	addr := settings.Address
	if addr == "" {
		if o.Resolver == nil {
			return nil, unavailable(cfg, fmt.Errorf("%w: service %q", ErrNoResolver, settings.Service))
		}
		resolved, err := o.Resolver.Resolve(ctx, settings.Service)
		if err != nil {
			return nil, unavailable(cfg, err)
		}
		addr = resolved
	}

	d := o.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	conn, err := d.DialContext(ctx, settings.Network, addr)
	if err != nil {
		return nil, unavailable(cfg, err)
	}

	return newStream(conn, channel.KindNetwork, settings.Network+" "+conn.RemoteAddr().String()), nil
}
