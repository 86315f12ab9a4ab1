// Package calibration maps raw tracker gaze positions to degrees.
//
// Each of the four (axis, eye) channels is calibrated independently from
// two reference readings: the raw value observed at +10 degrees and at -10
// degrees. The line through those two points is applied to every sample of
// the channel. Missing samples (NaN) stay missing.
package calibration

import (
	"fmt"

	"github.com/banshee-data/nystagmus.report/internal/edf"
)

// Key names one calibratable position channel.
type Key int

// The order matches the selection order of the calibration controls.
const (
	XLeft Key = iota
	YLeft
	XRight
	YRight
)

// NumKeys is the number of calibratable channels.
const NumKeys = 4

// AllKeys lists every key in slot order.
var AllKeys = [NumKeys]Key{XLeft, YLeft, XRight, YRight}

var keyNames = [NumKeys]string{"XLeft", "YLeft", "XRight", "YRight"}

// Valid reports whether k is one of the four keys.
func (k Key) Valid() bool { return k >= 0 && k < NumKeys }

func (k Key) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyNames[k]
}

// Axis returns "X" or "Y".
func (k Key) Axis() string {
	if k == XLeft || k == XRight {
		return "X"
	}
	return "Y"
}

// Eye returns the eye the key belongs to.
func (k Key) Eye() edf.Eye {
	if k == XLeft || k == YLeft {
		return edf.EyeLeft
	}
	return edf.EyeRight
}

// Column returns the raw sample channel the key calibrates, e.g. "posXLeft".
// The calibrated column carries the same name.
func (k Key) Column() string { return "pos" + k.String() }

// ParseKey parses a key name such as "XLeft". The "pos" column form is
// accepted too.
func ParseKey(s string) (Key, error) {
	for _, k := range AllKeys {
		if s == keyNames[k] || s == k.Column() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown calibration key %q", s)
}

func (k Key) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid calibration key %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
