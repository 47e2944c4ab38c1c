package vm

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/alexander-drabik/Yapko/pkg/object"
)

// State is a snapshot of a run: its frames, its operand stack and counters.
// Standard library bindings in frame 0 are left out.
type State struct {
	RunID   string       `cbor:"run_id" yaml:"run_id"`
	Tape    string       `cbor:"tape" yaml:"tape"`
	Capture string       `cbor:"capture" yaml:"capture"`
	Frames  []FrameState `cbor:"frames" yaml:"frames"`
	Stack   []Binding    `cbor:"stack" yaml:"stack"`
	Stats   Stats        `cbor:"stats" yaml:"stats"`
}

type FrameState struct {
	Index    int       `cbor:"index" yaml:"index"`
	Bindings []Binding `cbor:"bindings" yaml:"bindings"`
}

type Binding struct {
	Name  string `cbor:"name" yaml:"name"`
	Type  string `cbor:"type" yaml:"type"`
	Value string `cbor:"value" yaml:"value"`
}

func bindingOf(name string, o *object.Object) Binding {
	return Binding{Name: name, Type: o.Type, Value: o.Inspect()}
}

func (vm *VM) Snapshot() State {
	st := State{
		RunID:   vm.id,
		Tape:    vm.digest,
		Capture: vm.scopes.Mode().String(),
		Stats:   vm.stats,
	}
	for i := 0; i <= vm.scopes.Current(); i++ {
		f := vm.scopes.Frame(i)
		fs := FrameState{Index: i, Bindings: []Binding{}}
		for _, name := range f.Names() {
			o, _ := f.Binding(name)
			if i == 0 && vm.Builtin(name, o) {
				continue
			}
			fs.Bindings = append(fs.Bindings, bindingOf(name, o))
		}
		st.Frames = append(st.Frames, fs)
	}
	st.Stack = []Binding{}
	for _, o := range vm.stack.Items() {
		st.Stack = append(st.Stack, bindingOf(o.Name, o))
	}
	return st
}

// Snapshot formats.
const (
	FormatCBOR = "cbor"
	FormatYAML = "yaml"
)

// FormatFor picks a snapshot format from a file name: .yaml and .yml give
// YAML, everything else CBOR.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCBOR
	}
}

func (s State) Encode(w io.Writer, format string) error {
	switch format {
	case FormatCBOR:
		data, err := cbor.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown state format %q", format)
	}
}

func DecodeState(data []byte, format string) (State, error) {
	var s State
	var err error
	switch format {
	case FormatCBOR:
		err = cbor.Unmarshal(data, &s)
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	default:
		return s, fmt.Errorf("unknown state format %q", format)
	}
	if err != nil {
		return s, fmt.Errorf("decoding state: %w", err)
	}
	return s, nil
}
