package calibration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/nystagmus.report/internal/fsutil"
)

// maxSpecBytes bounds calibration spec files.
const maxSpecBytes = 1 << 20

// Reference holds the raw tracker readings at +10 and -10 degrees for one
// channel.
type Reference struct {
	Plus10Degs  float64 `json:"plus10Degs"`
	Minus10Degs float64 `json:"minus10Degs"`
}

// Spec is a calibration specification: a reference pair for each enabled
// key. The zero Spec enables nothing.
type Spec struct {
	enabled [NumKeys]bool
	refs    [NumKeys]Reference
}

// SpecFromSelections builds a Spec from the four calibration controls in
// slot order (XLeft, YLeft, XRight, YRight). Slots not enabled are ignored.
func SpecFromSelections(enabled [NumKeys]bool, plus10, minus10 [NumKeys]float64) Spec {
	var s Spec
	for _, k := range AllKeys {
		if enabled[k] {
			s.Set(k, Reference{Plus10Degs: plus10[k], Minus10Degs: minus10[k]})
		}
	}
	return s
}

// Set enables k with reference r. An invalid key leaves s unchanged.
func (s *Spec) Set(k Key, r Reference) {
	if !k.Valid() {
		return
	}
	s.enabled[k] = true
	s.refs[k] = r
}

// Clear disables k.
func (s *Spec) Clear(k Key) {
	if k.Valid() {
		s.enabled[k] = false
		s.refs[k] = Reference{}
	}
}

// Get returns the reference for k and whether k is enabled.
func (s Spec) Get(k Key) (Reference, bool) {
	if !k.Valid() || !s.enabled[k] {
		return Reference{}, false
	}
	return s.refs[k], true
}

// Keys returns the enabled keys in slot order.
func (s Spec) Keys() []Key {
	var keys []Key
	for _, k := range AllKeys {
		if s.enabled[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of enabled keys.
func (s Spec) Len() int { return len(s.Keys()) }

// MarshalJSON writes the spec as {"XLeft": {"plus10Degs": .., "minus10Degs": ..}, ...}
// with keys in slot order.
func (s Spec) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		ref, err := json.Marshal(s.refs[k])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:", k.String())
		buf.Write(ref)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form written by MarshalJSON. Unknown keys
// and references missing either value are rejected.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw map[string]struct {
		Plus10Degs  *float64 `json:"plus10Degs"`
		Minus10Degs *float64 `json:"minus10Degs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode calibration spec: %w", err)
	}
	var out Spec
	for name, ref := range raw {
		k, err := ParseKey(name)
		if err != nil {
			return err
		}
		if ref.Plus10Degs == nil || ref.Minus10Degs == nil {
			return fmt.Errorf("calibration key %s: plus10Degs and minus10Degs are both required", k)
		}
		out.Set(k, Reference{Plus10Degs: *ref.Plus10Degs, Minus10Degs: *ref.Minus10Degs})
	}
	*s = out
	return nil
}

// LoadSpec reads a JSON calibration spec from fsys.
func LoadSpec(fsys fsutil.FileSystem, path string) (Spec, error) {
	clean := filepath.Clean(path)
	if !strings.HasSuffix(clean, ".json") {
		return Spec{}, fmt.Errorf("calibration spec must have .json extension, got %q", filepath.Base(clean))
	}
	data, err := fsutil.ReadFileLimit(fsys, clean, maxSpecBytes)
	if err != nil {
		return Spec{}, err
	}
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("%s: %w", clean, err)
	}
	return s, nil
}

func (s Spec) String() string {
	parts := make([]string, 0, NumKeys)
	for _, k := range s.Keys() {
		parts = append(parts, fmt.Sprintf("%s(+10=%g,-10=%g)", k, s.refs[k].Plus10Degs, s.refs[k].Minus10Degs))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
