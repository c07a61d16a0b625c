package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/enbility/zeroconf/v3"
)

// mDNS defaults.
const (
	DefaultServiceType = "_telecore._tcp"
	DefaultDomain      = "local."
)

// ErrServiceNotFound indicates no matching instance was seen before the
// context ended.
var ErrServiceNotFound = errors.New("service not found")

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// MDNSResolver resolves outstation instance names with multicast DNS.
type MDNSResolver struct {
	// ServiceType to browse (default: DefaultServiceType).
	ServiceType string

	// Domain to browse (default: DefaultDomain).
	Domain string

	// Interface restricts browsing to one network interface (optional).
	Interface string

	browse browseFunc
}

// Resolve browses until an entry named instance with a usable address
// appears, or ctx ends.
func (r *MDNSResolver) Resolve(ctx context.Context, instance string) (string, error) {
	opts, err := r.options()
	if err != nil {
		return "", err
	}

	serviceType := r.ServiceType
	if serviceType == "" {
		serviceType = DefaultServiceType
	}
	domain := r.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	browse := r.browse
	if browse == nil {
		browse = func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
			return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		errCh <- browse(ctx, serviceType, domain, entries, removed, opts...)
	}()

	// The browser sends without selecting on ctx; keep reading until it
	// returns.
	defer func() {
		cancel()
		go drainBrowse(entries, removed, finished)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			if entry.Instance != instance {
				continue
			}
			if addr := entryAddress(entry); addr != "" {
				return addr, nil
			}
		case _, ok := <-removed:
			if !ok {
				removed = nil
			}
		case err := <-errCh:
			errCh = nil
			if err != nil {
				return "", fmt.Errorf("mdns browse %s: %w", serviceType, err)
			}
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %q: %v", ErrServiceNotFound, instance, ctx.Err())
		}
	}
}

func drainBrowse(entries, removed <-chan *zeroconf.ServiceEntry, finished <-chan struct{}) {
	for {
		select {
		case _, ok := <-entries:
			if !ok {
				entries = nil
			}
		case _, ok := <-removed:
			if !ok {
				removed = nil
			}
		case <-finished:
			return
		}
	}
}

func (r *MDNSResolver) options() ([]zeroconf.ClientOption, error) {
	if r.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(r.Interface)
	if err != nil {
		return nil, fmt.Errorf("mdns interface %q: %w", r.Interface, err)
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces([]net.Interface{*iface})}, nil
}

// entryAddress prefers IPv4, then IPv6.
func entryAddress(entry *zeroconf.ServiceEntry) string {
	if entry.Port <= 0 {
		return ""
	}
	port := strconv.Itoa(entry.Port)
	switch {
	case len(entry.AddrIPv4) > 0:
		return net.JoinHostPort(entry.AddrIPv4[0].String(), port)
	case len(entry.AddrIPv6) > 0:
		return net.JoinHostPort(entry.AddrIPv6[0].String(), port)
	}
	return ""
}
