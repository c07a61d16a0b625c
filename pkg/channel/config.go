package channel

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid channel config")

// ConfigError names the offending field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Standard serial defaults (8/N/1, no flow control).
const (
	DefaultDataBits    = 8
	DefaultStopBits    = 1
	DefaultParity      = ParityNone
	DefaultFlowControl = FlowNone
)

// SerialSettings describes a serial port.
type SerialSettings struct {
	// Port is e.g. COM3 on Windows or /dev/ttyUSB0 on Linux.
	Port        string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
}

// Validate checks the settings.
func (s SerialSettings) Validate() error {
	switch {
	case s.Port == "":
		return &ConfigError{Field: "port", Reason: "must not be empty"}
	case s.BaudRate <= 0:
		return &ConfigError{Field: "baudRate", Reason: fmt.Sprintf("must be > 0, got %d", s.BaudRate)}
	case s.DataBits < 5 || s.DataBits > 8:
		return &ConfigError{Field: "dataBits", Reason: fmt.Sprintf("must be 5, 6, 7 or 8, got %d", s.DataBits)}
	case s.StopBits != 1 && s.StopBits != 2:
		return &ConfigError{Field: "stopBits", Reason: fmt.Sprintf("must be 1 or 2, got %d", s.StopBits)}
	case !s.Parity.IsValid():
		return &ConfigError{Field: "parity", Reason: fmt.Sprintf("unknown parity %d", uint8(s.Parity))}
	case !s.FlowControl.IsValid():
		return &ConfigError{Field: "flowControl", Reason: fmt.Sprintf("unknown flow control %d", uint8(s.FlowControl))}
	}
	return nil
}

// String formats the settings as e.g. "/dev/ttyS0 9600 8N1".
func (s SerialSettings) String() string {
	return fmt.Sprintf("%s %d %d%s%d", s.Port, s.BaudRate, s.DataBits, s.Parity.String()[:1], s.StopBits)
}

// NetworkSettings describes a network endpoint.
type NetworkSettings struct {
	// Network is "tcp" (default) or "udp".
	Network string

	// Address is host:port. May be empty when Service is set.
	Address string

	// Service is an mDNS instance name resolved at open time when Address
	// is empty.
	Service string
}

// Validate checks the settings.
func (s NetworkSettings) Validate() error {
	switch s.Network {
	case "tcp", "udp":
	default:
		return &ConfigError{Field: "network", Reason: fmt.Sprintf("must be tcp or udp, got %q", s.Network)}
	}
	if s.Address == "" {
		if s.Service == "" {
			return &ConfigError{Field: "address", Reason: "address or service is required"}
		}
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return &ConfigError{Field: "address", Reason: err.Error()}
	}
	return nil
}

// Config is a validated channel description.
// Configs are comparable; two configs built from the same settings are ==.
type Config struct {
	name      string
	kind      Kind
	serial    SerialSettings
	network   NetworkSettings
	validated bool
}

// NewSerial builds a serial config with every parameter explicit.
func NewSerial(port string, baudRate, dataBits int, parity Parity, stopBits int, flow FlowControl) (Config, error) {
	return NewSerialSettings(SerialSettings{
		Port:        port,
		BaudRate:    baudRate,
		DataBits:    dataBits,
		StopBits:    stopBits,
		Parity:      parity,
		FlowControl: flow,
	})
}

// NewStandardSerial builds an 8/N/1 serial config without flow control.
func NewStandardSerial(port string, baudRate int) (Config, error) {
	return NewSerial(port, baudRate, DefaultDataBits, DefaultParity, DefaultStopBits, DefaultFlowControl)
}

// NewSerialSettings validates s and wraps it in a Config.
func NewSerialSettings(s SerialSettings) (Config, error) {
	if err := s.Validate(); err != nil {
		return Config{}, err
	}
	return Config{kind: KindSerial, serial: s, validated: true}, nil
}

// NewNetwork validates s and wraps it in a Config. An empty Network
// defaults to "tcp".
func NewNetwork(s NetworkSettings) (Config, error) {
	if s.Network == "" {
		s.Network = "tcp"
	}
	if err := s.Validate(); err != nil {
		return Config{}, err
	}
	return Config{kind: KindNetwork, network: s, validated: true}, nil
}

// WithName returns a copy of c carrying a name.
func (c Config) WithName(name string) Config {
	c.name = name
	return c
}

// Name returns the channel name, if any.
func (c Config) Name() string { return c.name }

// Kind returns the discriminant.
func (c Config) Kind() Kind { return c.kind }

// Validated reports whether c was produced by a validating constructor.
func (c Config) Validated() bool { return c.validated }

// Serial returns the serial settings; ok is false for other kinds.
func (c Config) Serial() (s SerialSettings, ok bool) {
	return c.serial, c.kind == KindSerial
}

// Network returns the network settings; ok is false for other kinds.
func (c Config) Network() (s NetworkSettings, ok bool) {
	return c.network, c.kind == KindNetwork
}

// String describes the channel.
func (c Config) String() string {
	var desc string
	switch c.kind {
	case KindSerial:
		desc = "serial " + c.serial.String()
	case KindNetwork:
		target := c.network.Address
		if target == "" {
			target = "mdns:" + c.network.Service
		}
		desc = c.network.Network + " " + target
	default:
		desc = "unconfigured"
	}
	if c.name != "" {
		return c.name + " (" + desc + ")"
	}
	return desc
}
