package vm

import (
	"strconv"
	"strings"

	"github.com/alexander-drabik/Yapko/pkg/object"
	"github.com/alexander-drabik/Yapko/pkg/opcode"
)

// operatorMethods maps binary operators to the member they dispatch to on the
// left operand.
var operatorMethods = map[opcode.Opcode]string{
	opcode.OpAdd:          object.MethodAdd,
	opcode.OpSub:          object.MethodSub,
	opcode.OpMul:          object.MethodMul,
	opcode.OpDiv:          object.MethodDiv,
	opcode.OpMod:          object.MethodMod,
	opcode.OpLess:         object.MethodSmallerThan,
	opcode.OpGreater:      object.MethodGreaterThan,
	opcode.OpLessEqual:    object.MethodSmallerOrEqual,
	opcode.OpGreaterEqual: object.MethodGreaterOrEqual,
	opcode.OpEqual:        object.MethodEqualTo,
	opcode.OpNotEqual:     object.MethodEqualTo,
}

func (vm *VM) execute(op opcode.Opcode, arg string, offset int) error {
	switch op {
	case opcode.OpEnd:
		return nil

	case opcode.OpGet:
		o, err := vm.scopes.Resolve(arg)
		if err != nil {
			return err
		}
		c := o.Clone()
		c.Name = arg
		vm.stack.Push(c)

	case opcode.OpSetGet:
		o := object.NewNull()
		if err := vm.scopes.Declare(arg, o); err != nil {
			return err
		}
		vm.stack.Push(o.Clone())

	case opcode.OpPush:
		vm.stack.Push(object.NewNull())

	case opcode.OpPushNum:
		o, err := parseNumber(arg)
		if err != nil {
			return err
		}
		vm.stack.Push(o)

	case opcode.OpPushStr:
		vm.stack.Push(object.NewString(arg))

	case opcode.OpPushBool:
		switch arg {
		case "1", "true":
			vm.stack.Push(object.NewBool(true))
		case "0", "false":
			vm.stack.Push(object.NewBool(false))
		default:
			return object.Errorf(object.EncodingError, "'%s' is not a boolean flag", arg)
		}

	case opcode.OpAssign:
		return vm.assign()

	case opcode.OpAdd, opcode.OpSub, opcode.OpMul, opcode.OpDiv, opcode.OpMod,
		opcode.OpLess, opcode.OpGreater, opcode.OpLessEqual, opcode.OpGreaterEqual,
		opcode.OpEqual, opcode.OpNotEqual:
		return vm.binary(op)

	case opcode.OpAnd, opcode.OpOr, opcode.OpXor:
		return vm.logical(op)

	case opcode.OpNot:
		return vm.negate()

	case opcode.OpCall:
		argc, err := parseCount(arg)
		if err != nil {
			return err
		}
		callee, err := vm.stack.Remove(argc)
		if err != nil {
			return err
		}
		return vm.invoke(callee, argc)

	case opcode.OpExecute:
		callee, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		return vm.invoke(callee, 0)

	case opcode.OpFunStart:
		if arg == "" {
			return object.Errorf(object.EncodingError, "fun_start needs a function name")
		}
		vm.defining, vm.defDepth, vm.defName, vm.defBody = true, 1, arg, nil

	case opcode.OpFunEnd:
		return object.Errorf(object.EncodingError, "fun_end without fun_start")

	case opcode.OpScopeNew:
		return vm.scopeNew()

	case opcode.OpScopeEnd:
		vm.scopeEnd()

	case opcode.OpArg:
		o, err := vm.stack.Pop()
		if err != nil {
			return object.Errorf(object.ArityOrStackError, "missing argument '%s'", arg)
		}
		return vm.scopes.Declare(arg, o)

	case opcode.OpArgType:
		o, err := vm.stack.Peek(0)
		if err != nil {
			return object.Errorf(object.ArityOrStackError, "missing argument of type %s", arg)
		}
		if o.Type != arg {
			return object.Errorf(object.TypeMismatchError, "expected argument of type %s, got %s", arg, o.Type)
		}

	case opcode.OpIf:
		return vm.openIf()

	case opcode.OpCondition:
		return vm.openLoop(offset)

	case opcode.OpWhile:
		return vm.openWhile()

	case opcode.OpClose:
		return vm.close()

	case opcode.OpClass:
		if arg == "" {
			return object.Errorf(object.EncodingError, "class needs a name")
		}
		vm.scopes.Push()
		vm.blocks = append(vm.blocks, block{kind: blockClass, name: arg})

	case opcode.OpDot:
		return vm.member(arg)

	case opcode.OpReturn:
		return vm.ret()

	default:
		return object.Errorf(object.EncodingError, "opcode %s is not executable", op)
	}
	return nil
}

func parseNumber(arg string) (*object.Object, error) {
	if strings.ContainsAny(arg, ".eE") {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, object.Errorf(object.EncodingError, "'%s' is not a number", arg)
		}
		return object.NewFloat(f), nil
	}
	n, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return nil, object.Errorf(object.EncodingError, "'%s' is not a number", arg)
	}
	return object.NewInt(int32(n)), nil
}

// parseCount reads a call's argument count: empty means zero, otherwise
// decimal digits, or a single raw count byte.
func parseCount(arg string) (int, error) {
	if arg == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 0 {
		return n, nil
	}
	if len(arg) == 1 {
		return int(arg[0]), nil
	}
	return 0, object.Errorf(object.EncodingError, "'%s' is not an argument count", arg)
}

func (vm *VM) assign() error {
	if n := vm.stack.Len(); n < 2 {
		return object.Errorf(object.ArityOrStackError, "'=' needs a target and a value, stack holds %d", n)
	}
	value, _ := vm.stack.Pop()
	target, _ := vm.stack.Pop()
	if target.Anonymous() {
		return object.Errorf(object.LookupError, "cannot assign to an anonymous %s value", target.Type)
	}
	return vm.scopes.Assign(target.Name, value)
}

func (vm *VM) binary(op opcode.Opcode) error {
	if n := vm.stack.Len(); n < 2 {
		return object.Errorf(object.ArityOrStackError, "operator '%s' needs two operands, stack holds %d", op, n)
	}
	right, _ := vm.stack.Pop()
	left, _ := vm.stack.Pop()
	negate := op == opcode.OpNotEqual

	if (op == opcode.OpEqual || negate) && left.Value.Kind == object.KindBool && right.Value.Kind == object.KindBool {
		vm.stack.Push(object.NewBool((left.Value.Bool == right.Value.Bool) != negate))
		return nil
	}

	method := operatorMethods[op]
	m, ok := left.Members[method]
	if !ok {
		return object.Errorf(object.DispatchError, "operator '%s' not implemented for %s", op, left.Type)
	}

	switch m.Value.Kind {
	case object.KindNative:
		vm.stack.Push(right)
		if err := m.Value.Native.Fn(&object.Call{Self: left, Stack: vm.stack, Argc: 1}); err != nil {
			return err
		}
		if negate {
			return vm.negate()
		}
		return nil
	case object.KindUserFn:
		vm.stack.Push(right)
		var tail []byte
		if negate {
			not, err := vm.dec.Encode(opcode.OpNot, "")
			if err != nil {
				return object.Errorf(object.EncodingError, "%s", err)
			}
			tail = not
		}
		return vm.enter(m, left, tail)
	default:
		return object.Errorf(object.DispatchError, "member '%s' of %s is not callable", method, left.Type)
	}
}

// logical evaluates and, or and xor directly on Boolean payloads.
func (vm *VM) logical(op opcode.Opcode) error {
	if n := vm.stack.Len(); n < 2 {
		return object.Errorf(object.ArityOrStackError, "operator '%s' needs two operands, stack holds %d", op, n)
	}
	right, _ := vm.stack.Pop()
	left, _ := vm.stack.Pop()
	if left.Value.Kind != object.KindBool || right.Value.Kind != object.KindBool {
		return object.Errorf(object.TypeMismatchError, "operator '%s' expects Boolean operands, got %s and %s", op, left.Type, right.Type)
	}
	a, b := left.Value.Bool, right.Value.Bool
	var result bool
	switch op {
	case opcode.OpAnd:
		result = a && b
	case opcode.OpOr:
		result = a || b
	case opcode.OpXor:
		result = a != b
	}
	vm.stack.Push(object.NewBool(result))
	return nil
}

func (vm *VM) negate() error {
	operand, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	if operand.Value.Kind != object.KindBool {
		return object.Errorf(object.TypeMismatchError, "operator '!' expects a Boolean operand, got %s", operand.Type)
	}
	vm.stack.Push(object.NewBool(!operand.Value.Bool))
	return nil
}

// member pops an object and pushes one of its members. Function members
// remember the object as their receiver.
func (vm *VM) member(name string) error {
	left, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	m, err := left.Member(name)
	if err != nil {
		return err
	}
	c := m.Clone()
	if left.Anonymous() {
		c.Name = "$" + name
	} else {
		c.Name = left.Name + "." + name
	}
	if c.Callable() {
		c.Bind(left)
	}
	vm.stack.Push(c)
	return nil
}

func (vm *VM) invoke(callee *object.Object, argc int) error {
	switch {
	case callee.Value.Kind == object.KindNative:
		vm.stats.Calls++
		return callee.Value.Native.Fn(&object.Call{Self: callee.Receiver(), Stack: vm.stack, Argc: argc})
	case callee.Value.Kind == object.KindUserFn:
		return vm.enter(callee, callee.Receiver(), nil)
	case callee.IsClass():
		if argc != 0 {
			return object.Errorf(object.ArityOrStackError, "class %s takes no constructor arguments, got %d", callee.Class, argc)
		}
		vm.stack.Push(callee.Instance())
		return nil
	default:
		return object.Errorf(object.DispatchError, "'%s' of type %s is not callable", callee.Name, callee.Type)
	}
}

// StackTop returns the top of the operand stack, or nil when it is empty.
func (vm *VM) StackTop() *object.Object {
	o, err := vm.stack.Peek(0)
	if err != nil {
		return nil
	}
	return o
}
