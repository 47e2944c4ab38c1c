package vm

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/alexander-drabik/Yapko/pkg/config"
	"github.com/alexander-drabik/Yapko/pkg/object"
)

type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) ReadLine(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func TestReadLine(t *testing.T) {
	input := `
get IO
. readLine
call 0
get IO
. readLine
call 0
`
	machine, _, err := runProgram(t, input, WithInput(strings.NewReader("hello\n")))
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	items := machine.Stack().Items()
	if len(items) != 2 {
		t.Fatalf("stack has wrong size. want=2, got=%d", len(items))
	}
	if err := testExpectedObject("hello", items[0]); err != nil {
		t.Fatal(err)
	}
	if err := testExpectedObject(nil, items[1]); err != nil {
		t.Fatalf("end of input: %s", err)
	}
}

func TestReadLineWithoutTrailingNewline(t *testing.T) {
	machine, _, err := runProgram(t, "get IO\n. readLine\ncall 0", WithInput(strings.NewReader("last")))
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	if err := testExpectedObject("last", machine.StackTop()); err != nil {
		t.Fatal(err)
	}
}

func TestReadLinePrompt(t *testing.T) {
	lr := &scriptedInput{lines: []string{"Ada"}}
	cfg := config.Default()
	cfg.Prompt = "> "
	input := `
get IO
. readLine
push_str "name? "
call 1
get IO
. readLine
call 0
`
	machine, _, err := runProgram(t, input, WithLineReader(lr), WithConfig(cfg))
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	if err := testExpectedObject(nil, machine.StackTop()); err != nil {
		t.Fatal(err)
	}
	want := []string{"name? ", "> "}
	if len(lr.prompts) != len(want) {
		t.Fatalf("prompts wrong. expected=%q, got=%q", want, lr.prompts)
	}
	for i := range want {
		if lr.prompts[i] != want[i] {
			t.Fatalf("prompts[%d] wrong. expected=%q, got=%q", i, want[i], lr.prompts[i])
		}
	}
}

func TestRandom(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 42

	input := `
set_get i
push_num 0
=
condition
get i
push_num 50
<
while
get Random
. nextInt
push_num 10
call 1
get i
get i
push_num 1
+
=
close
`
	machine, _, err := runProgram(t, input, WithConfig(cfg))
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	items := machine.Stack().Items()
	if len(items) != 50 {
		t.Fatalf("stack has wrong size. want=50, got=%d", len(items))
	}
	for i, o := range items {
		if o.Value.Kind != object.KindInt || o.Value.Int < 0 || o.Value.Int >= 10 {
			t.Fatalf("items[%d] out of range: %s", i, o.Inspect())
		}
	}

	again, _, err := runProgram(t, input, WithConfig(cfg))
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	for i, o := range again.Stack().Items() {
		if o.Value.Int != items[i].Value.Int {
			t.Fatalf("seeded runs differ at %d: %d vs %d", i, items[i].Value.Int, o.Value.Int)
		}
	}

	machine, _, err = runProgram(t, "get Random\n. nextFloat\ncall 0", WithConfig(cfg))
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	f := machine.StackTop()
	if f.Value.Kind != object.KindFloat || f.Value.Float < 0 || f.Value.Float >= 1 {
		t.Fatalf("nextFloat out of range: %s", f.Inspect())
	}
}

func TestStdlibErrors(t *testing.T) {
	tests := []errorTestCase{
		{"get Random\n. nextInt\npush_num 0\ncall 1", object.ArithmeticError},
		{"get Random\n. nextInt\ncall 0", object.ArityOrStackError},
		{"get Random\n. nextInt\npush_str \"3\"\ncall 1", object.TypeMismatchError},
		{"get Random\n. nextFloat\npush_num 1\ncall 1", object.ArityOrStackError},
		{"get IO\n. readLine\npush_num 1\ncall 1", object.TypeMismatchError},
		{"get IO\n. writeLine", object.DispatchError},
		{"push_num 1\npush_num 0\n/", object.ArithmeticError},
		{"push_num 1\npush_num 0\n%", object.ArithmeticError},
		{"push_num 1.0\npush_num 0.0\n/", object.ArithmeticError},
		{"push_num 1.5\npush_num 0.0\n%", object.ArithmeticError},
	}

	runErrorTests(t, tests)
}

func TestBuiltinsAreTracked(t *testing.T) {
	machine, _, err := runProgram(t, "")
	if err != nil {
		t.Fatalf("vm error: %s", err)
	}
	f := machine.Scopes().Frame(0)
	for _, name := range []string{"print", "printLine", "IO", "Random", "Int", "Float", "String", "Boolean"} {
		o, ok := f.Binding(name)
		if !ok {
			t.Fatalf("frame 0 is missing %q", name)
		}
		if !machine.Builtin(name, o) {
			t.Fatalf("%q is not tracked as a builtin", name)
		}
	}

	if _, err := machine.Lookup("print"); err != nil {
		t.Fatalf("lookup print: %s", err)
	}
	if _, err := machine.Lookup("nothing"); !errors.Is(err, object.LookupError) {
		t.Fatalf("expected LookupError, got %v", err)
	}
}
