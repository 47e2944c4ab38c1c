// Package asm converts between tapes and a line-oriented text form:
//
//	# comment
//	set_get x
//	push_num 42
//	=
//	push_str "hello\n"
//
// One instruction per line, the canonical opcode name first. String operands
// may be quoted with Go escapes; everything else is a single bare word.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexander-drabik/Yapko/pkg/opcode"
)

// Error reports the line an assembly problem was found on.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Assemble encodes source with the default opcode table.
func Assemble(src string) (opcode.Instructions, error) {
	var out opcode.Instructions
	for i, line := range strings.Split(src, "\n") {
		ins, err := assembleLine(line)
		if err != nil {
			return nil, &Error{Line: i + 1, Msg: err.Error()}
		}
		out = append(out, ins...)
	}
	return out, nil
}

func assembleLine(line string) ([]byte, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	op, ok := opcode.ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown opcode %q", name)
	}
	def, _ := opcode.Lookup(byte(op))

	arg, err := operand(def, rest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if strings.IndexByte(arg, 0) >= 0 {
		return nil, fmt.Errorf("%s: operand contains a NUL byte", name)
	}
	return opcode.Make(op, arg), nil
}

func operand(def *opcode.Definition, rest string) (string, error) {
	if def.Operand == opcode.OperandString {
		if strings.HasPrefix(rest, `"`) {
			s, err := strconv.Unquote(rest)
			if err != nil {
				return "", fmt.Errorf("bad string literal %s", rest)
			}
			return s, nil
		}
		return rest, nil
	}

	if strings.ContainsAny(rest, " \t") {
		return "", fmt.Errorf("unexpected operand %q", rest)
	}
	switch def.Operand {
	case opcode.OperandNone:
		if rest != "" {
			return "", fmt.Errorf("takes no operand, got %q", rest)
		}
	case opcode.OperandName:
		if rest == "" {
			return "", fmt.Errorf("needs a name")
		}
	case opcode.OperandNumber:
		if _, err := strconv.ParseFloat(rest, 64); err != nil {
			return "", fmt.Errorf("%q is not a number", rest)
		}
	case opcode.OperandFlag:
		if rest != "1" && rest != "0" {
			return "", fmt.Errorf("flag must be 1 or 0, got %q", rest)
		}
	case opcode.OperandCount:
		if rest == "" {
			return "", nil
		}
		if n, err := strconv.Atoi(rest); err != nil || n < 0 {
			return "", fmt.Errorf("%q is not an argument count", rest)
		}
	}
	return rest, nil
}

// Line is one disassembled instruction.
type Line struct {
	Offset int
	Name   string
	Arg    string
	Raw    []byte
}

func (l Line) String() string {
	if l.Arg == "" {
		return l.Name
	}
	return l.Name + " " + l.Arg
}

// Disassemble decodes a tape with the given table; nil means the default one.
// Padding is skipped. Bytes the table does not know are reported as errors.
func Disassemble(tape []byte, table opcode.Table) ([]Line, error) {
	if table == nil {
		table = opcode.Default()
	}
	dec := opcode.NewDecoder(table)

	var lines []Line
	for pos := 0; pos < len(tape); {
		ins := opcode.ReadInstruction(tape, pos)
		pos = ins.Next
		if ins.Padding() {
			continue
		}
		op, ok := dec.Decode(ins.Byte)
		if !ok {
			return lines, fmt.Errorf("offset %d: unknown opcode byte %d", ins.Offset, ins.Byte)
		}
		def, _ := opcode.Lookup(byte(op))
		lines = append(lines, Line{
			Offset: ins.Offset,
			Name:   def.Name,
			Arg:    formatArg(def, ins.Arg),
			Raw:    ins.Raw(tape),
		})
	}
	return lines, nil
}

func formatArg(def *opcode.Definition, arg []byte) string {
	if len(arg) == 0 {
		return ""
	}
	switch def.Operand {
	case opcode.OperandString:
		return strconv.Quote(string(arg))
	case opcode.OperandCount:
		if len(arg) == 1 && (arg[0] < '0' || arg[0] > '9') {
			return strconv.Itoa(int(arg[0]))
		}
	}
	return string(arg)
}

// Format renders lines back into assembly source that Assemble accepts.
func Format(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
