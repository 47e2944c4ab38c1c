package vm

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// LineReader is the source behind IO.readLine. ReadLine returns io.EOF once
// input is exhausted.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// bufferedInput reads piped input. The prompt is not echoed, so stdout only
// carries what print and printLine write.
type bufferedInput struct {
	r *bufio.Reader
}

func (b *bufferedInput) ReadLine(string) (string, error) {
	line, err := b.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// terminalInput gives an interactive terminal line editing and history.
type terminalInput struct {
	state *liner.State
}

func (t *terminalInput) ReadLine(prompt string) (string, error) {
	line, err := t.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if line != "" {
		t.state.AppendHistory(line)
	}
	return line, nil
}

func (t *terminalInput) Close() error {
	return t.state.Close()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newLineReader(r io.Reader) LineReader {
	if f, ok := r.(*os.File); ok && IsTerminal(f) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &terminalInput{state: state}
	}
	return &bufferedInput{r: bufio.NewReader(r)}
}

func (vm *VM) lineReader() LineReader {
	if vm.input == nil {
		vm.input = newLineReader(vm.in)
		vm.owned = true
	}
	return vm.input
}

// closeInput releases a line reader the engine created itself.
func (vm *VM) closeInput() {
	if !vm.owned {
		return
	}
	if c, ok := vm.input.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warningf("closing input: %s", err)
		}
	}
	vm.input, vm.owned = nil, false
}
