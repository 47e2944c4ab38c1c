package vm

import (
	"bytes"
	"testing"
)

const stateProgram = `
set_get x
push_num 3
=
push_bool 1
if
set_get inner
push_str "deep"
=
push_str "left"
fun_start noop
fun_end
`

func checkState(t *testing.T, st State) {
	t.Helper()
	if len(st.Frames) != 2 {
		t.Fatalf("frame count wrong. want=2, got=%d", len(st.Frames))
	}

	global := st.Frames[0].Bindings
	if len(global) != 1 {
		t.Fatalf("frame 0 should only hold x, got %+v", global)
	}
	if global[0] != (Binding{Name: "x", Type: "Int", Value: "3"}) {
		t.Fatalf("frame 0 binding wrong: %+v", global[0])
	}

	local := st.Frames[1].Bindings
	if len(local) != 2 {
		t.Fatalf("frame 1 bindings wrong: %+v", local)
	}
	if local[0] != (Binding{Name: "inner", Type: "String", Value: "deep"}) {
		t.Fatalf("frame 1 binding wrong: %+v", local[0])
	}
	if local[1] != (Binding{Name: "noop", Type: "Function", Value: "function noop"}) {
		t.Fatalf("frame 1 binding wrong: %+v", local[1])
	}

	if len(st.Stack) != 1 || st.Stack[0].Value != "left" || st.Stack[0].Type != "String" {
		t.Fatalf("stack wrong: %+v", st.Stack)
	}
}

// snapshotOpenBlock runs stateProgram without its closing `close`, stopping
// the run inside the if block.
func snapshotOpenBlock(t *testing.T) (*VM, State) {
	t.Helper()
	machine, _, err := runProgram(t, stateProgram)
	if err == nil {
		t.Fatalf("expected an unclosed block error")
	}
	return machine, machine.Snapshot()
}

func TestSnapshot(t *testing.T) {
	machine, st := snapshotOpenBlock(t)
	checkState(t, st)
	if st.RunID != machine.ID() {
		t.Fatalf("run id wrong. expected=%q, got=%q", machine.ID(), st.RunID)
	}
	if st.Capture != "index" {
		t.Fatalf("capture wrong. expected=%q, got=%q", "index", st.Capture)
	}
	if st.Stats.Steps == 0 {
		t.Fatalf("stats were not recorded")
	}
}

func TestStateEncoding(t *testing.T) {
	_, st := snapshotOpenBlock(t)

	for _, format := range []string{FormatCBOR, FormatYAML} {
		var buf bytes.Buffer
		if err := st.Encode(&buf, format); err != nil {
			t.Fatalf("%s encode: %s", format, err)
		}
		decoded, err := DecodeState(buf.Bytes(), format)
		if err != nil {
			t.Fatalf("%s decode: %s", format, err)
		}
		checkState(t, decoded)
		if decoded.RunID != st.RunID || decoded.Tape != st.Tape || decoded.Stats != st.Stats {
			t.Fatalf("%s round trip lost metadata: %+v", format, decoded)
		}
	}

	if err := st.Encode(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"state.yaml", FormatYAML},
		{"state.YML", FormatYAML},
		{"state.cbor", FormatCBOR},
		{"state", FormatCBOR},
	}

	for i, tt := range tests {
		if got := FormatFor(tt.path); got != tt.expected {
			t.Fatalf("tests[%d] - format wrong. expected=%q, got=%q", i, tt.expected, got)
		}
	}
}
