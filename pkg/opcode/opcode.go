package opcode

import (
	"fmt"
	"sort"
)

type Opcode byte

// Instructions is a tape: a flat sequence of `op [arg] NUL` instructions.
type Instructions []byte

// The numeric value of each opcode is also its byte in the default table.
const (
	// OpEnd terminates a statement. It shares byte 0 with padding and is a no-op
	OpEnd Opcode = iota
	// OpGet pushes the object bound to the argument name
	OpGet
	// OpPush pushes null
	OpPush
	// OpPushNum pushes a numeric literal
	OpPushNum
	// OpPushStr pushes a string literal
	OpPushStr
	// OpAdd dispatches `add` on the left operand
	OpAdd
	// OpSub dispatches `sub` on the left operand
	OpSub
	// OpMul dispatches `mul` on the left operand
	OpMul
	// OpDiv dispatches `div` on the left operand
	OpDiv
	// OpAssign stores the top of the stack into the binding named by the object below it
	OpAssign
	// OpCall calls the object found argc entries below the top of the stack
	OpCall
	// OpSetGet declares a name in the current frame and pushes it
	OpSetGet
	// OpPushBool pushes '1' or '0' as a boolean
	OpPushBool
	// OpFunStart begins recording a function body
	OpFunStart
	// OpFunEnd finishes recording and binds the function
	OpFunEnd
	// OpScopeNew pushes a scope frame
	OpScopeNew
	// OpScopeEnd pops a scope frame
	OpScopeEnd
	// OpArg pops the top of the stack into a parameter binding
	OpArg
	// OpArgType checks the type tag of the next argument
	OpArgType
	// OpOr is boolean or
	OpOr
	// OpXor is boolean exclusive or
	OpXor
	// OpAnd is boolean and
	OpAnd
	// OpNot is boolean negation
	OpNot
	// OpIf opens a conditional block
	OpIf
	// OpWhile opens a loop body
	OpWhile
	// OpCondition marks the start of a loop guard
	OpCondition
	// OpClose closes the innermost if, while or class block
	OpClose
	// OpLess dispatches `smallerThan`
	OpLess
	// OpGreater dispatches `greaterThan`
	OpGreater
	// OpLessEqual dispatches `smallerOrEqual`
	OpLessEqual
	// OpGreaterEqual dispatches `greaterOrEqual`
	OpGreaterEqual
	// OpEqual dispatches `equalTo`
	OpEqual
	// OpNotEqual dispatches `equalTo` and negates the result
	OpNotEqual
	// OpMod dispatches `mod`
	OpMod
	// OpDot pushes a member of the popped object
	OpDot
	// OpClass opens a class body
	OpClass
	// OpReturn leaves the current function body
	OpReturn
	// OpExecute calls the object on top of the stack with no arguments
	OpExecute
)

// Operand describes what the argument bytes of an instruction hold.
type Operand uint8

const (
	OperandNone Operand = iota
	OperandName
	OperandNumber
	OperandString
	OperandFlag
	OperandCount
)

type Definition struct {
	Name    string
	Operand Operand
}

var definitions = map[Opcode]*Definition{
	OpEnd:          {";", OperandNone},
	OpGet:          {"get", OperandName},
	OpPush:         {"push", OperandNone},
	OpPushNum:      {"push_num", OperandNumber},
	OpPushStr:      {"push_str", OperandString},
	OpAdd:          {"+", OperandNone},
	OpSub:          {"-", OperandNone},
	OpMul:          {"*", OperandNone},
	OpDiv:          {"/", OperandNone},
	OpAssign:       {"=", OperandNone},
	OpCall:         {"call", OperandCount},
	OpSetGet:       {"set_get", OperandName},
	OpPushBool:     {"push_bool", OperandFlag},
	OpFunStart:     {"fun_start", OperandName},
	OpFunEnd:       {"fun_end", OperandNone},
	OpScopeNew:     {"scope_new", OperandNone},
	OpScopeEnd:     {"scope_end", OperandNone},
	OpArg:          {"arg", OperandName},
	OpArgType:      {"arg_type", OperandName},
	OpOr:           {"or", OperandNone},
	OpXor:          {"xor", OperandNone},
	OpAnd:          {"and", OperandNone},
	OpNot:          {"!", OperandNone},
	OpIf:           {"if", OperandNone},
	OpWhile:        {"while", OperandNone},
	OpCondition:    {"condition", OperandNone},
	OpClose:        {"close", OperandNone},
	OpLess:         {"<", OperandNone},
	OpGreater:      {">", OperandNone},
	OpLessEqual:    {"<=", OperandNone},
	OpGreaterEqual: {">=", OperandNone},
	OpEqual:        {"==", OperandNone},
	OpNotEqual:     {"!=", OperandNone},
	OpMod:          {"%", OperandNone},
	OpDot:          {".", OperandName},
	OpClass:        {"class", OperandName},
	OpReturn:       {"return", OperandNone},
	OpExecute:      {"execute", OperandNone},
}

var byName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(definitions))
	for op, def := range definitions {
		m[def.Name] = op
	}
	return m
}()

func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// ByName maps a canonical opcode name such as "push_num" to its Opcode.
func ByName(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

// Make encodes one instruction with the default byte assignment.
func Make(op Opcode, arg string) []byte {
	if op == OpEnd {
		return []byte{0}
	}
	instruction := make([]byte, 0, len(arg)+2)
	instruction = append(instruction, byte(op))
	instruction = append(instruction, arg...)
	return append(instruction, 0)
}

// Instruction is one decoded unit of a tape.
type Instruction struct {
	Offset int
	Byte   byte
	Arg    []byte
	// Next is the offset of the byte after the terminating NUL.
	Next int
}

// Padding reports whether the unit is a bare NUL.
func (ins Instruction) Padding() bool {
	return ins.Byte == 0
}

// Raw returns the encoded bytes of the instruction.
func (ins Instruction) Raw(tape []byte) []byte {
	return tape[ins.Offset:ins.Next]
}

// ReadInstruction decodes the instruction starting at pos. A missing final NUL
// at the end of the tape is tolerated.
func ReadInstruction(tape []byte, pos int) Instruction {
	ins := Instruction{Offset: pos, Byte: tape[pos]}
	if ins.Byte == 0 {
		ins.Next = pos + 1
		return ins
	}
	end := pos + 1
	for end < len(tape) && tape[end] != 0 {
		end++
	}
	ins.Arg = tape[pos+1 : end]
	if end < len(tape) {
		end++
	}
	ins.Next = end
	return ins
}

// Table maps opcode bytes to canonical opcode names. It is the lookup the
// encoder hands to the engine alongside the tape.
type Table map[byte]string

// Default returns the table used by Make and the assembler.
func Default() Table {
	t := make(Table, len(definitions))
	for op, def := range definitions {
		t[byte(op)] = def.Name
	}
	return t
}

// Decoder resolves table bytes to opcodes in constant time.
type Decoder struct {
	ops   [256]Opcode
	known [256]bool
	enc   map[Opcode]byte
}

// NewDecoder builds a Decoder from a table. Names the engine does not know
// are ignored; executing their bytes fails later.
func NewDecoder(t Table) *Decoder {
	d := &Decoder{enc: make(map[Opcode]byte, len(t))}
	keys := make([]int, 0, len(t))
	for b := range t {
		keys = append(keys, int(b))
	}
	sort.Ints(keys)
	for _, k := range keys {
		b := byte(k)
		op, ok := byName[t[b]]
		if !ok {
			continue
		}
		d.ops[b] = op
		d.known[b] = true
		if _, dup := d.enc[op]; !dup {
			d.enc[op] = b
		}
	}
	return d
}

func (d *Decoder) Decode(b byte) (Opcode, bool) {
	return d.ops[b], d.known[b]
}

// Encode renders an instruction using the table's byte for op.
func (d *Decoder) Encode(op Opcode, arg string) ([]byte, error) {
	b, ok := d.enc[op]
	if !ok {
		return nil, fmt.Errorf("opcode table has no byte for %s", op)
	}
	if b == 0 {
		return []byte{0}, nil
	}
	instruction := make([]byte, 0, len(arg)+2)
	instruction = append(instruction, b)
	instruction = append(instruction, arg...)
	return append(instruction, 0), nil
}

func (ins Opcode) String() string {
	def, ok := definitions[ins]
	if !ok {
		return fmt.Sprintf("Opcode(%d)", ins)
	}
	return def.Name
}
