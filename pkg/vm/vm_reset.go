package vm

import (
	"github.com/google/uuid"

	"github.com/alexander-drabik/Yapko/pkg/opcode"
)

// Reset loads a new tape into the engine for reuse. Configuration, output and
// the random source are kept; scopes, stacks and counters start over.
func (vm *VM) Reset(tape opcode.Instructions) {
	vm.closeInput()
	vm.id = uuid.NewString()
	vm.load(tape)
}
