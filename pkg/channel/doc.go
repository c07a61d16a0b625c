// Package channel describes communication channels: a serial port or a
// network endpoint.
//
// A Config is an immutable, comparable value with an explicit Kind
// discriminant. Configs only come out of the constructors (NewSerial,
// NewStandardSerial, NewNetwork, Parse), all of which validate, so a Config
// reports Validated() == true exactly when it went through validation. The
// zero Config is unvalidated and must be rejected by openers.
//
// Serial validation rules:
//
//   - port identifier non-empty
//   - baud rate > 0
//   - data bits in {5, 6, 7, 8}
//   - stop bits in {1, 2}
//   - parity in {NONE, ODD, EVEN, MARK, SPACE}
//   - flow control in {NONE, HARDWARE, SOFTWARE}
//
// Violations return a *ConfigError naming the field; it wraps
// ErrInvalidConfig.
package channel
