package asm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alexander-drabik/Yapko/pkg/opcode"
)

func concatInstructions(s ...[]byte) opcode.Instructions {
	out := opcode.Instructions{}
	for _, ins := range s {
		out = append(out, ins...)
	}
	return out
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		input    string
		expected opcode.Instructions
	}{
		{
			"set_get x\npush_num 42\n=",
			concatInstructions(
				opcode.Make(opcode.OpSetGet, "x"),
				opcode.Make(opcode.OpPushNum, "42"),
				opcode.Make(opcode.OpAssign, ""),
			),
		},
		{
			"# comment\n\n   get printLine   \npush_str \"a b\\n\"\ncall 1\n",
			concatInstructions(
				opcode.Make(opcode.OpGet, "printLine"),
				opcode.Make(opcode.OpPushStr, "a b\n"),
				opcode.Make(opcode.OpCall, "1"),
			),
		},
		{
			"push_str bare words\npush_str \"\"\n;",
			concatInstructions(
				opcode.Make(opcode.OpPushStr, "bare words"),
				opcode.Make(opcode.OpPushStr, ""),
				opcode.Make(opcode.OpEnd, ""),
			),
		},
		{
			"call\npush_bool 1\n. length\npush_num -2.5",
			concatInstructions(
				opcode.Make(opcode.OpCall, ""),
				opcode.Make(opcode.OpPushBool, "1"),
				opcode.Make(opcode.OpDot, "length"),
				opcode.Make(opcode.OpPushNum, "-2.5"),
			),
		},
	}

	for i, tt := range tests {
		tape, err := Assemble(tt.input)
		if err != nil {
			t.Fatalf("tests[%d] - assembler error: %s", i, err)
		}
		if !bytes.Equal(tape, tt.expected) {
			t.Fatalf("tests[%d] - wrong instructions.\nwant=%q\ngot =%q", i, tt.expected, tape)
		}
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
	}{
		{"goto 3", 1},
		{"push_num 1\npush_num abc", 2},
		{"get", 1},
		{"get a b", 1},
		{"+ 1", 1},
		{"push_bool yes", 1},
		{"call two", 1},
		{"call -1", 1},
		{"\n\npush_str \"unterminated", 3},
		{"push_str \"a\\x00b\"", 1},
	}

	for i, tt := range tests {
		_, err := Assemble(tt.input)
		var asmErr *Error
		if !errors.As(err, &asmErr) {
			t.Fatalf("tests[%d] - expected *Error, got %v", i, err)
		}
		if asmErr.Line != tt.line {
			t.Fatalf("tests[%d] - line wrong. expected=%d, got=%d (%s)", i, tt.line, asmErr.Line, asmErr)
		}
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	src := `set_get greeting
push_str "hi\tthere"
=
fun_start greet
arg who
get printLine
get greeting
get who
call 2
fun_end
get greet
push_str "you"
call 1
push_bool 0
if
close
`
	tape, err := Assemble(src)
	if err != nil {
		t.Fatalf("assembler error: %s", err)
	}
	lines, err := Disassemble(tape, nil)
	if err != nil {
		t.Fatalf("disassembler error: %s", err)
	}
	if got := Format(lines); got != src {
		t.Fatalf("round trip wrong.\nwant=%q\ngot =%q", src, got)
	}

	again, err := Assemble(Format(lines))
	if err != nil {
		t.Fatalf("reassembly error: %s", err)
	}
	if !bytes.Equal(again, tape) {
		t.Fatalf("reassembled tape differs")
	}
}

func TestDisassemble(t *testing.T) {
	tape := []byte{0, byte(opcode.OpGet), 'x', 0, 0, byte(opcode.OpCall), 2, 0}
	lines, err := Disassemble(tape, nil)
	if err != nil {
		t.Fatalf("disassembler error: %s", err)
	}
	if len(lines) != 2 {
		t.Fatalf("wrong number of lines. want=2, got=%d", len(lines))
	}
	if lines[0].Offset != 1 || lines[0].String() != "get x" {
		t.Fatalf("lines[0] wrong: %+v", lines[0])
	}
	if lines[1].String() != "call 2" {
		t.Fatalf("raw count byte not rendered as a number: %q", lines[1].String())
	}

	_, err = Disassemble([]byte{200, 0}, nil)
	if err == nil {
		t.Fatalf("expected an error for an unknown opcode byte")
	}

	custom := opcode.Table{'g': "get"}
	lines, err = Disassemble([]byte("gname\x00"), custom)
	if err != nil || len(lines) != 1 || lines[0].String() != "get name" {
		t.Fatalf("custom table wrong: %+v %v", lines, err)
	}
}
