package opcode

import (
	"bytes"
	"testing"
)

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		arg      string
		expected []byte
	}{
		{OpGet, "x", []byte{byte(OpGet), 'x', 0}},
		{OpPushNum, "42", []byte{byte(OpPushNum), '4', '2', 0}},
		{OpAdd, "", []byte{byte(OpAdd), 0}},
		{OpEnd, "", []byte{0}},
	}

	for i, tt := range tests {
		instruction := Make(tt.op, tt.arg)
		if !bytes.Equal(instruction, tt.expected) {
			t.Fatalf("tests[%d] - instruction wrong. want=%q, got=%q", i, tt.expected, instruction)
		}
	}
}

func TestReadInstruction(t *testing.T) {
	tape := []byte{0, byte(OpGet), 'a', 'b', 0, byte(OpAdd), 0, byte(OpPushNum), '7'}

	tests := []struct {
		pos     int
		padding bool
		op      byte
		arg     string
		next    int
	}{
		{0, true, 0, "", 1},
		{1, false, byte(OpGet), "ab", 5},
		{5, false, byte(OpAdd), "", 7},
		{7, false, byte(OpPushNum), "7", 9},
	}

	for i, tt := range tests {
		ins := ReadInstruction(tape, tt.pos)
		if ins.Padding() != tt.padding {
			t.Fatalf("tests[%d] - padding wrong. expected=%t, got=%t", i, tt.padding, ins.Padding())
		}
		if ins.Byte != tt.op || string(ins.Arg) != tt.arg || ins.Next != tt.next {
			t.Fatalf("tests[%d] - instruction wrong. got byte=%d arg=%q next=%d", i, ins.Byte, ins.Arg, ins.Next)
		}
	}

	raw := ReadInstruction(tape, 1).Raw(tape)
	if !bytes.Equal(raw, []byte{byte(OpGet), 'a', 'b', 0}) {
		t.Fatalf("raw bytes wrong: %q", raw)
	}
}

func TestDefinitionsRoundTrip(t *testing.T) {
	for op, def := range definitions {
		got, ok := ByName(def.Name)
		if !ok || got != op {
			t.Fatalf("ByName(%q) wrong. expected=%d, got=%d", def.Name, op, got)
		}
		if op.String() != def.Name {
			t.Fatalf("String() wrong. expected=%q, got=%q", def.Name, op.String())
		}
		looked, err := Lookup(byte(op))
		if err != nil || looked != def {
			t.Fatalf("Lookup(%d) wrong: %v", op, err)
		}
	}

	if _, err := Lookup(250); err == nil {
		t.Fatalf("expected an error for an undefined opcode")
	}
	if _, ok := ByName("goto"); ok {
		t.Fatalf("unknown name resolved")
	}
}

func TestDecoder(t *testing.T) {
	d := NewDecoder(Table{
		'g': "get",
		'n': "push_num",
		'N': "push_num",
		'?': "unknown_op",
	})

	tests := []struct {
		input    byte
		expected Opcode
		known    bool
	}{
		{'g', OpGet, true},
		{'n', OpPushNum, true},
		{'N', OpPushNum, true},
		{'?', 0, false},
		{'x', 0, false},
	}

	for i, tt := range tests {
		op, ok := d.Decode(tt.input)
		if ok != tt.known || (ok && op != tt.expected) {
			t.Fatalf("tests[%d] - decode %q wrong. got op=%s known=%t", i, tt.input, op, ok)
		}
	}

	// the lowest byte wins when several bytes name the same opcode
	enc, err := d.Encode(OpPushNum, "3")
	if err != nil {
		t.Fatalf("encode: %s", err)
	}
	if !bytes.Equal(enc, []byte{'N', '3', 0}) {
		t.Fatalf("encoding wrong: %q", enc)
	}
	if _, err := d.Encode(OpScopeNew, ""); err == nil {
		t.Fatalf("expected an error for an opcode missing from the table")
	}
}

func TestDefaultTable(t *testing.T) {
	table := Default()
	if len(table) != len(definitions) {
		t.Fatalf("table size wrong. want=%d, got=%d", len(definitions), len(table))
	}
	d := NewDecoder(table)
	for op := range definitions {
		got, ok := d.Decode(byte(op))
		if !ok || got != op {
			t.Fatalf("default table decodes %d as %s", op, got)
		}
		enc, err := d.Encode(op, "")
		if err != nil {
			t.Fatalf("encode %s: %s", op, err)
		}
		if !bytes.Equal(enc, Make(op, "")) {
			t.Fatalf("encode %s differs from Make: %q", op, enc)
		}
	}
}
