package vm

import (
	"errors"
	"io"
	"strings"

	"github.com/alexander-drabik/Yapko/pkg/object"
	"github.com/alexander-drabik/Yapko/pkg/opcode"
)

// seed binds the standard library into frame 0.
func (vm *VM) seed() {
	vm.builtins = make(map[string]*object.Object)
	bind := func(o *object.Object) {
		vm.scopes.Set(o.Name, o)
		vm.builtins[o.Name] = o
	}

	bind(object.NewNative("print", vm.print(false)))
	bind(object.NewNative("printLine", vm.print(true)))
	bind(object.NewNamespace("IO", map[string]*object.Object{
		"readLine": object.NewNative("readLine", vm.readLine),
	}))
	bind(object.NewNamespace("Random", map[string]*object.Object{
		"nextInt":   object.NewNative("nextInt", vm.nextInt),
		"nextFloat": object.NewNative("nextFloat", vm.nextFloat),
	}))
	for _, c := range object.PrimitiveClasses() {
		bind(c)
	}
}

// Builtin reports whether o is the standard library object bound under name.
func (vm *VM) Builtin(name string, o *object.Object) bool {
	b, ok := vm.builtins[name]
	return ok && b == o
}

func popArgs(c *object.Call) ([]*object.Object, error) {
	args := make([]*object.Object, c.Argc)
	for i := c.Argc - 1; i >= 0; i-- {
		o, err := c.Stack.Pop()
		if err != nil {
			return nil, err
		}
		args[i] = o
	}
	return args, nil
}

func (vm *VM) print(newline bool) object.NativeFunc {
	return func(c *object.Call) error {
		args, err := popArgs(c)
		if err != nil {
			return err
		}
		job := &printJob{vm: vm, args: args, parts: make([]string, 0, len(args)), newline: newline}
		return job.resume()
	}
}

// printJob renders print arguments left to right. An argument whose toString
// is a user function suspends the job: the function is spliced in with the
// argument as self, followed by a call that hands its result back to collect.
type printJob struct {
	vm      *VM
	args    []*object.Object
	parts   []string
	newline bool
}

func (j *printJob) resume() error {
	for len(j.parts) < len(j.args) {
		o := j.args[len(j.parts)]
		if m, ok := userToString(o); ok {
			return j.await(m, o)
		}
		text, err := render(o)
		if err != nil {
			return err
		}
		j.parts = append(j.parts, text)
	}
	text := strings.Join(j.parts, " ")
	if j.newline {
		text += "\n"
	}
	_, err := io.WriteString(j.vm.out, text)
	return err
}

func (j *printJob) await(fn, recv *object.Object) error {
	tail, err := j.vm.dec.Encode(opcode.OpCall, "1")
	if err != nil {
		return object.Errorf(object.EncodingError, "%s", err)
	}
	j.vm.stack.Push(object.NewNative(object.MethodToString, j.collect))
	return j.vm.enter(fn, recv, tail)
}

func (j *printJob) collect(c *object.Call) error {
	r, err := c.Stack.Pop()
	if err != nil {
		return err
	}
	if r.Value.Kind != object.KindString {
		return object.Errorf(object.DispatchError, "toString of %s returned %s", j.args[len(j.parts)].Type, r.Type)
	}
	j.parts = append(j.parts, r.Value.Str)
	return j.resume()
}

func userToString(o *object.Object) (*object.Object, bool) {
	if o.Value.Kind == object.KindString {
		return nil, false
	}
	m, ok := o.Members[object.MethodToString]
	return m, ok && m.Value.Kind == object.KindUserFn
}

// render turns a print argument into text. Strings are written as they are;
// anything else goes through a native toString.
func render(o *object.Object) (string, error) {
	if o.Value.Kind == object.KindString {
		return o.Value.Str, nil
	}
	m, ok := o.Members[object.MethodToString]
	if !ok || m.Value.Kind != object.KindNative {
		return "", object.Errorf(object.DispatchError, "cannot print %s: no toString member", o.Type)
	}
	s := object.NewStack()
	if err := m.Value.Native.Fn(&object.Call{Self: o, Stack: s}); err != nil {
		return "", err
	}
	r, err := s.Pop()
	if err != nil {
		return "", err
	}
	if r.Value.Kind != object.KindString {
		return "", object.Errorf(object.DispatchError, "toString of %s returned %s", o.Type, r.Type)
	}
	return r.Value.Str, nil
}

func (vm *VM) readLine(c *object.Call) error {
	if c.Argc > 1 {
		return object.Errorf(object.ArityOrStackError, "IO.readLine expects at most 1 argument, got %d", c.Argc)
	}
	prompt := vm.cfg.Prompt
	if c.Argc == 1 {
		p, err := c.Stack.Pop()
		if err != nil {
			return err
		}
		if p.Value.Kind != object.KindString {
			return object.Errorf(object.TypeMismatchError, "IO.readLine prompt must be %s, got %s", object.TypeString, p.Type)
		}
		prompt = p.Value.Str
	}

	line, err := vm.lineReader().ReadLine(prompt)
	if errors.Is(err, io.EOF) {
		c.Stack.Push(object.NewNull())
		return nil
	}
	if err != nil {
		return err
	}
	c.Stack.Push(object.NewString(line))
	return nil
}

func (vm *VM) nextInt(c *object.Call) error {
	if c.Argc != 1 {
		return object.Errorf(object.ArityOrStackError, "Random.nextInt expects 1 argument, got %d", c.Argc)
	}
	bound, err := c.Stack.Pop()
	if err != nil {
		return err
	}
	if bound.Value.Kind != object.KindInt {
		return object.Errorf(object.TypeMismatchError, "Random.nextInt bound must be %s, got %s", object.TypeInt, bound.Type)
	}
	if bound.Value.Int <= 0 {
		return object.Errorf(object.ArithmeticError, "Random.nextInt bound must be positive, got %d", bound.Value.Int)
	}
	c.Stack.Push(object.NewInt(vm.rng.Int32N(bound.Value.Int)))
	return nil
}

func (vm *VM) nextFloat(c *object.Call) error {
	if c.Argc != 0 {
		return object.Errorf(object.ArityOrStackError, "Random.nextFloat expects no arguments, got %d", c.Argc)
	}
	c.Stack.Push(object.NewFloat(vm.rng.Float64()))
	return nil
}
