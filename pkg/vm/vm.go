package vm

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/crypto/blake2b"

	"github.com/alexander-drabik/Yapko/pkg/config"
	"github.com/alexander-drabik/Yapko/pkg/object"
	"github.com/alexander-drabik/Yapko/pkg/opcode"
	"github.com/alexander-drabik/Yapko/pkg/scope"
)

var log = commonlog.GetLogger("yapko.vm")

type blockKind uint8

const (
	blockIf blockKind = iota
	blockLoop
	blockClass
)

func (k blockKind) String() string {
	switch k {
	case blockLoop:
		return "while"
	case blockClass:
		return "class"
	default:
		return "if"
	}
}

// block is an open if, while or class body waiting for its close.
type block struct {
	kind blockKind
	name string
	loop *loop
}

// loop holds the verbatim bytes of one loop, from its condition marker to its
// close, ready to be spliced back in for the next iteration.
type loop struct {
	frame int
	body  []byte
}

// call is an inlined function body in progress. It ends when the scope_end
// spliced after the body brings the scope stack back to frame.
type call struct {
	name   string
	frame  int
	blocks int
	loops  int
}

// Stats counts what a run did.
type Stats struct {
	Steps      int `cbor:"steps" yaml:"steps"`
	Calls      int `cbor:"calls" yaml:"calls"`
	Iterations int `cbor:"iterations" yaml:"iterations"`
	Spliced    int `cbor:"spliced" yaml:"spliced"`
	Consumed   int `cbor:"consumed" yaml:"consumed"`
	PeakTape   int `cbor:"peak_tape" yaml:"peak_tape"`
}

type VM struct {
	id     string
	digest string

	dec  *opcode.Decoder
	tape []byte
	ip   int

	stack  *object.Stack
	scopes *scope.Stack

	// function body being recorded
	defining bool
	defDepth int
	defName  string
	defBody  []byte

	// false branch being consumed without execution
	skipping  bool
	skipDepth int
	skipKind  blockKind

	blocks   []block
	loops    []*loop
	calls    []call
	selfNext *object.Object
	selfPath string

	builtins map[string]*object.Object

	cfg   config.Config
	out   io.Writer
	in    io.Reader
	input LineReader
	owned bool
	rng   *rand.Rand
	stats Stats
}

type Option func(*VM)

// WithConfig applies engine settings. Invalid capture modes fall back to
// index capture; config.Validate reports them earlier.
func WithConfig(cfg config.Config) Option {
	return func(vm *VM) { vm.cfg = cfg }
}

// WithOutput redirects print and printLine.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithInput sets the reader behind IO.readLine.
func WithInput(r io.Reader) Option {
	return func(vm *VM) { vm.in = r }
}

// WithLineReader replaces the line source behind IO.readLine entirely.
func WithLineReader(lr LineReader) Option {
	return func(vm *VM) { vm.input = lr }
}

// New prepares an engine for one tape. The table maps opcode bytes to their
// canonical names; a nil table means opcode.Default().
func New(tape opcode.Instructions, table opcode.Table, opts ...Option) *VM {
	if table == nil {
		table = opcode.Default()
	}
	vm := &VM{
		id:  uuid.NewString(),
		dec: opcode.NewDecoder(table),
		cfg: config.Default(),
		out: os.Stdout,
		in:  os.Stdin,
	}
	for _, opt := range opts {
		opt(vm)
	}
	seed := uint64(vm.cfg.Seed)
	if vm.cfg.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	vm.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	vm.load(tape)
	return vm
}

func (vm *VM) load(tape opcode.Instructions) {
	vm.tape = append([]byte(nil), tape...)
	vm.ip = 0
	vm.digest = Digest(tape)
	vm.stack = object.NewStack()
	vm.scopes = scope.New(vm.cfg.CaptureMode())
	vm.defining, vm.defDepth, vm.defName, vm.defBody = false, 0, "", nil
	vm.skipping, vm.skipDepth = false, 0
	vm.blocks, vm.loops, vm.calls = nil, nil, nil
	vm.selfNext, vm.selfPath = nil, ""
	vm.stats = Stats{PeakTape: len(tape)}
	vm.seed()
}

// Digest returns a short BLAKE2b fingerprint of a tape for logs and dumps.
func Digest(tape []byte) string {
	sum := blake2b.Sum256(tape)
	return hex.EncodeToString(sum[:8])
}

func (vm *VM) ID() string { return vm.id }

func (vm *VM) Stats() Stats { return vm.stats }

// Stack exposes the operand stack, mainly for hosts inspecting a finished run.
func (vm *VM) Stack() *object.Stack { return vm.stack }

// Scopes exposes the scope stack of a finished run.
func (vm *VM) Scopes() *scope.Stack { return vm.scopes }

// Lookup resolves a name the way `get` does, returning a copy.
func (vm *VM) Lookup(name string) (*object.Object, error) {
	o, err := vm.scopes.Resolve(name)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

// Run interprets the tape until it is exhausted or an error stops it. Every
// error is terminal for the run.
func (vm *VM) Run(ctx context.Context) error {
	log.Infof("run %s: tape %s, %d bytes, capture=%s", vm.id, vm.digest, len(vm.tape), vm.scopes.Mode())
	defer vm.closeInput()

	err := vm.run(ctx)
	if err != nil {
		log.Errorf("run %s: %s", vm.id, err)
		return err
	}
	log.Infof("run %s: done, %d steps, %d calls, %d iterations, %d bytes spliced",
		vm.id, vm.stats.Steps, vm.stats.Calls, vm.stats.Iterations, vm.stats.Spliced)
	return nil
}

func (vm *VM) run(ctx context.Context) error {
	trace := log.AllowLevel(commonlog.Debug)

	for vm.ip < len(vm.tape) {
		if err := ctx.Err(); err != nil {
			return err
		}

		ins := opcode.ReadInstruction(vm.tape, vm.ip)
		at := vm.stats.Consumed
		vm.stats.Consumed += ins.Next - ins.Offset
		if ins.Padding() {
			vm.ip = ins.Next
			continue
		}
		op, ok := vm.dec.Decode(ins.Byte)
		if !ok {
			return vm.fail(object.Errorf(object.EncodingError, "unknown opcode byte %d", ins.Byte), "?", at)
		}
		vm.ip = ins.Next

		if vm.defining {
			vm.record(op, ins.Raw(vm.tape))
			continue
		}
		if vm.skipping {
			vm.skip(op)
			continue
		}

		vm.stats.Steps++
		if vm.cfg.MaxSteps > 0 && vm.stats.Steps > vm.cfg.MaxSteps {
			return vm.fail(object.Errorf(object.LimitError, "step limit %d exceeded", vm.cfg.MaxSteps), op.String(), at)
		}
		if trace {
			log.Debugf("%06d %-9s %-12q stack=%d frame=%d", at, op, ins.Arg, vm.stack.Len(), vm.scopes.Current())
		}
		if err := vm.execute(op, string(ins.Arg), ins.Offset); err != nil {
			return vm.fail(err, op.String(), at)
		}
	}

	switch {
	case vm.defining:
		return object.Errorf(object.EncodingError, "function '%s' is never closed by fun_end", vm.defName)
	case vm.skipping:
		return object.Errorf(object.EncodingError, "skipped %s block is never closed", vm.skipKind)
	case len(vm.blocks) > 0:
		return object.Errorf(object.EncodingError, "%s block is never closed", vm.blocks[len(vm.blocks)-1].kind)
	}
	return nil
}

// fail decorates an engine error with the instruction that raised it. The
// offset counts bytes consumed since the run started, spliced ones included.
func (vm *VM) fail(err error, op string, at int) error {
	var e *object.Error
	if errors.As(err, &e) && e.Op == "" {
		e.Op = op
		e.Offset = at
	}
	return err
}
