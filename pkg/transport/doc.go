// Package transport turns a validated channel.Config into a byte stream.
//
// The Dispatcher selects a concrete Opener by the config's Kind:
//
//	channel.KindSerial   -> SerialOpener  (tarm/serial)
//	channel.KindNetwork  -> NetworkOpener (net.Dialer, optional mDNS lookup)
//
// Every open is a single attempt. Failures to acquire the device or socket
// are reported as ErrChannelUnavailable and never retried here; the caller's
// context is the only bound on how long an open may block.
//
// Framer carries CBOR frames over any ByteStream. Each frame is a two
// byte sync pair (0x05 0x64), a 4 byte big-endian length and the payload.
// A reader that meets line noise or a rejected header scans forward to
// the next sync pair instead of dropping the stream.
package transport
