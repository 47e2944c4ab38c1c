package vm

import (
	"github.com/alexander-drabik/Yapko/pkg/object"
	"github.com/alexander-drabik/Yapko/pkg/opcode"
)

// splice inserts parts right after the cursor. Bytes already consumed are
// released, so the cursor restarts at 0 on the new tape.
func (vm *VM) splice(parts ...[]byte) {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	rest := vm.tape[vm.ip:]
	tape := make([]byte, 0, n+len(rest))
	for _, p := range parts {
		tape = append(tape, p...)
	}
	vm.tape = append(tape, rest...)
	vm.ip = 0

	vm.stats.Spliced += n
	if len(vm.tape) > vm.stats.PeakTape {
		vm.stats.PeakTape = len(vm.tape)
	}
}

// record appends one instruction to the function body being defined. Nested
// definitions are kept verbatim and only the matching fun_end closes it.
func (vm *VM) record(op opcode.Opcode, raw []byte) {
	switch op {
	case opcode.OpFunStart:
		vm.defDepth++
	case opcode.OpFunEnd:
		vm.defDepth--
		if vm.defDepth == 0 {
			vm.define()
			return
		}
	}
	vm.defBody = append(vm.defBody, raw...)
}

func (vm *VM) define() {
	caps := vm.scopes.Capture(vm.defName)
	fn := object.NewUserFn(vm.defName, vm.defBody, caps)
	vm.scopes.Set(vm.defName, fn)
	log.Debugf("defined %s: %d bytes, %d captures", vm.defName, len(vm.defBody), len(caps))
	vm.defining, vm.defDepth, vm.defName, vm.defBody = false, 0, "", nil
}

// skip consumes one instruction of a false branch. The frame pushed when the
// branch was entered is popped by its matching close.
func (vm *VM) skip(op opcode.Opcode) {
	switch op {
	case opcode.OpIf, opcode.OpWhile, opcode.OpClass:
		vm.skipDepth++
	case opcode.OpClose:
		vm.skipDepth--
		if vm.skipDepth > 0 {
			return
		}
		vm.skipping = false
		vm.scopes.Pop()
		if vm.skipKind == blockLoop && len(vm.loops) > 0 {
			vm.loops = vm.loops[:len(vm.loops)-1]
		}
	}
}

// enter inlines a user function: scope_new, the body and scope_end are
// spliced in front of the remaining tape, followed by tail.
func (vm *VM) enter(fn, recv *object.Object, tail []byte) error {
	uf := fn.Value.Fn
	open, err := vm.dec.Encode(opcode.OpScopeNew, "")
	if err != nil {
		return object.Errorf(object.EncodingError, "%s", err)
	}
	end, err := vm.dec.Encode(opcode.OpScopeEnd, "")
	if err != nil {
		return object.Errorf(object.EncodingError, "%s", err)
	}

	vm.selfNext, vm.selfPath = nil, ""
	if recv != nil {
		if recv.Anonymous() {
			vm.selfNext = recv
		} else {
			vm.selfPath = vm.scopes.Canonical(recv.Name)
		}
	}

	vm.calls = append(vm.calls, call{
		name:   uf.Name,
		frame:  vm.scopes.Current(),
		blocks: len(vm.blocks),
		loops:  len(vm.loops),
	})
	vm.scopes.PushCaptures(uf.Captures)
	vm.stats.Calls++
	vm.splice(open, uf.Body, end, tail)
	return nil
}

func (vm *VM) scopeNew() error {
	f := vm.scopes.Push()
	switch {
	case vm.selfPath != "":
		f.Alias("self", vm.selfPath)
	case vm.selfNext != nil:
		if err := vm.scopes.Declare("self", vm.selfNext); err != nil {
			return err
		}
	}
	vm.selfNext, vm.selfPath = nil, ""
	return nil
}

// scopeEnd pops a frame. Returning to the frame a call was made from ends
// that call and retires its capture list.
func (vm *VM) scopeEnd() {
	if !vm.scopes.Pop() {
		return
	}
	n := len(vm.calls)
	if n > 0 && vm.scopes.Current() == vm.calls[n-1].frame {
		vm.calls = vm.calls[:n-1]
		vm.scopes.PopCaptures()
	}
}

// guard pops the Boolean an if or while tests.
func (vm *VM) guard(what string) (bool, error) {
	o, err := vm.stack.Pop()
	if err != nil {
		return false, object.Errorf(object.ArityOrStackError, "%s has no guard on the stack", what)
	}
	if o.Value.Kind != object.KindBool {
		return false, object.Errorf(object.TypeMismatchError, "%s guard must be %s, got %s", what, object.TypeBool, o.Type)
	}
	return o.Value.Bool, nil
}

func (vm *VM) openIf() error {
	ok, err := vm.guard("if")
	if err != nil {
		return err
	}
	vm.scopes.Push()
	if ok {
		vm.blocks = append(vm.blocks, block{kind: blockIf})
		return nil
	}
	vm.skipping, vm.skipDepth, vm.skipKind = true, 1, blockIf
	return nil
}

// openLoop copies the loop from its condition marker at offset through the
// matching close, so the close can splice it back for the next iteration.
func (vm *VM) openLoop(offset int) error {
	depth := 0
	for pos := vm.ip; pos < len(vm.tape); {
		ins := opcode.ReadInstruction(vm.tape, pos)
		pos = ins.Next
		if ins.Padding() {
			continue
		}
		op, ok := vm.dec.Decode(ins.Byte)
		if !ok {
			continue
		}
		switch op {
		case opcode.OpIf, opcode.OpWhile, opcode.OpClass:
			depth++
		case opcode.OpClose:
			depth--
			if depth < 0 {
				return object.Errorf(object.EncodingError, "condition is not followed by a while block")
			}
			if depth == 0 {
				body := append([]byte(nil), vm.tape[offset:pos]...)
				vm.loops = append(vm.loops, &loop{frame: vm.scopes.Current(), body: body})
				return nil
			}
		}
	}
	return object.Errorf(object.EncodingError, "loop is never closed")
}

func (vm *VM) openWhile() error {
	if len(vm.loops) == 0 {
		return object.Errorf(object.EncodingError, "while without a preceding condition")
	}
	ok, err := vm.guard("while")
	if err != nil {
		return err
	}
	vm.scopes.Push()
	if ok {
		vm.blocks = append(vm.blocks, block{kind: blockLoop, loop: vm.loops[len(vm.loops)-1]})
		return nil
	}
	vm.skipping, vm.skipDepth, vm.skipKind = true, 1, blockLoop
	return nil
}

func (vm *VM) close() error {
	n := len(vm.blocks)
	if n == 0 {
		return object.Errorf(object.EncodingError, "close without an open block")
	}
	b := vm.blocks[n-1]
	vm.blocks = vm.blocks[:n-1]

	switch b.kind {
	case blockLoop:
		vm.scopes.Pop()
		if cur := vm.scopes.Current(); cur != b.loop.frame {
			return object.Errorf(object.EncodingError, "loop opened in frame %d closes in frame %d", b.loop.frame, cur)
		}
		// the condition spliced back in records the loop again
		vm.loops = vm.loops[:len(vm.loops)-1]
		vm.stats.Iterations++
		vm.splice(b.loop.body)
	case blockClass:
		vm.closeClass(b.name)
	default:
		vm.scopes.Pop()
	}
	return nil
}

// closeClass snapshots the class body frame into a template bound in the
// enclosing frame.
func (vm *VM) closeClass(name string) {
	f := vm.scopes.Frame(vm.scopes.Current())
	members := make(map[string]*object.Object)
	for _, n := range f.Names() {
		o, _ := f.Binding(n)
		members[n] = o.Clone()
	}
	vm.scopes.Pop()
	vm.scopes.Set(name, object.NewClass(name, members))
}

// ret abandons the rest of the current call: the cursor jumps to the call's
// own scope_end and every frame and block opened inside the call is dropped.
func (vm *VM) ret() error {
	n := len(vm.calls)
	if n == 0 {
		return object.Errorf(object.DispatchError, "return outside of a function body")
	}
	c := vm.calls[n-1]

	pos, err := vm.scopeEndOf(c.name)
	if err != nil {
		return err
	}
	vm.stats.Consumed += pos - vm.ip
	vm.ip = pos

	for vm.scopes.Current() > c.frame+1 {
		vm.scopes.Pop()
	}
	vm.blocks = vm.blocks[:c.blocks]
	vm.loops = vm.loops[:c.loops]
	vm.skipping, vm.skipDepth = false, 0
	return nil
}

// scopeEndOf finds the offset of the scope_end that closes the current call,
// skipping balanced scope_new/scope_end pairs on the way.
func (vm *VM) scopeEndOf(name string) (int, error) {
	depth := 0
	for pos := vm.ip; pos < len(vm.tape); {
		ins := opcode.ReadInstruction(vm.tape, pos)
		if !ins.Padding() {
			if op, ok := vm.dec.Decode(ins.Byte); ok {
				switch op {
				case opcode.OpScopeNew:
					depth++
				case opcode.OpScopeEnd:
					if depth == 0 {
						return pos, nil
					}
					depth--
				}
			}
		}
		pos = ins.Next
	}
	return 0, object.Errorf(object.EncodingError, "no scope_end closes function '%s'", name)
}
