package channel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk channel list.
//
//	channels:
//	  - name: rtu-1
//	    kind: serial
//	    serial:
//	      port: /dev/ttyS0
//	      baudRate: 9600
//	  - name: plant
//	    kind: network
//	    network:
//	      address: 10.0.0.5:20000
//
// Serial entries that omit dataBits, stopBits, parity or flowControl get the
// 8/N/1, no flow control defaults.
type File struct {
	Channels []fileChannel `yaml:"channels"`
}

type fileChannel struct {
	Name    string       `yaml:"name"`
	Kind    string       `yaml:"kind"`
	Serial  *fileSerial  `yaml:"serial,omitempty"`
	Network *fileNetwork `yaml:"network,omitempty"`
}

type fileSerial struct {
	Port        string       `yaml:"port"`
	BaudRate    int          `yaml:"baudRate"`
	DataBits    *int         `yaml:"dataBits,omitempty"`
	StopBits    *int         `yaml:"stopBits,omitempty"`
	Parity      *Parity      `yaml:"parity,omitempty"`
	FlowControl *FlowControl `yaml:"flowControl,omitempty"`
}

type fileNetwork struct {
	Network string `yaml:"network,omitempty"`
	Address string `yaml:"address,omitempty"`
	Service string `yaml:"service,omitempty"`
}

// LoadFile reads and validates a channel file.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML channel definitions. Every entry goes
// through the validating constructors.
func Parse(data []byte) ([]Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(f.Channels))
	out := make([]Config, 0, len(f.Channels))
	for i, ch := range f.Channels {
		if ch.Name == "" {
			return nil, &ConfigError{Field: fmt.Sprintf("channels[%d].name", i), Reason: "must not be empty"}
		}
		if seen[ch.Name] {
			return nil, &ConfigError{Field: fmt.Sprintf("channels[%d].name", i), Reason: fmt.Sprintf("duplicate %q", ch.Name)}
		}
		seen[ch.Name] = true

		cfg, err := ch.build()
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.Name, err)
		}
		out = append(out, cfg.WithName(ch.Name))
	}
	return out, nil
}

func (ch fileChannel) build() (Config, error) {
	switch ch.Kind {
	case "serial":
		if ch.Serial == nil {
			return Config{}, &ConfigError{Field: "serial", Reason: "missing serial section"}
		}
		s := SerialSettings{
			Port:        ch.Serial.Port,
			BaudRate:    ch.Serial.BaudRate,
			DataBits:    DefaultDataBits,
			StopBits:    DefaultStopBits,
			Parity:      DefaultParity,
			FlowControl: DefaultFlowControl,
		}
		if ch.Serial.DataBits != nil {
			s.DataBits = *ch.Serial.DataBits
		}
		if ch.Serial.StopBits != nil {
			s.StopBits = *ch.Serial.StopBits
		}
		if ch.Serial.Parity != nil {
			s.Parity = *ch.Serial.Parity
		}
		if ch.Serial.FlowControl != nil {
			s.FlowControl = *ch.Serial.FlowControl
		}
		return NewSerialSettings(s)
	case "network":
		if ch.Network == nil {
			return Config{}, &ConfigError{Field: "network", Reason: "missing network section"}
		}
		return NewNetwork(NetworkSettings{
			Network: ch.Network.Network,
			Address: ch.Network.Address,
			Service: ch.Network.Service,
		})
	default:
		return Config{}, &ConfigError{Field: "kind", Reason: fmt.Sprintf("must be serial or network, got %q", ch.Kind)}
	}
}

// Find returns the config with the given name.
func Find(configs []Config, name string) (Config, bool) {
	for _, c := range configs {
		if c.Name() == name {
			return c, true
		}
	}
	return Config{}, false
}
