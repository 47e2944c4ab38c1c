package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alexander-drabik/Yapko/pkg/asm"
	"github.com/alexander-drabik/Yapko/pkg/vm"
)

func disasmCommand(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	raw := fs.Bool("raw", false, "show the hex bytes of each instruction")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: yapko disasm [-raw] <file>")
		return 1
	}

	tape, err := loadTape(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return 1
	}

	lines, err := asm.Disassemble(tape, nil)
	fmt.Printf("# tape %s, %d bytes, %d instructions\n", vm.Digest(tape), len(tape), len(lines))
	if *raw {
		for _, l := range lines {
			fmt.Printf("%-40s # %04d % x\n", l.String(), l.Offset, l.Raw)
		}
	} else {
		fmt.Print(asm.Format(lines))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Disassembly error: %v\n", err)
		return 1
	}
	return 0
}

// asmCommand writes the raw tape for an assembly listing.
func asmCommand(args []string) int {
	fs := flag.NewFlagSet("asm", flag.ContinueOnError)
	output := fs.String("o", "", "output file (default: input name with .tape)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: yapko asm [-o out.tape] <file.yasm>")
		return 1
	}
	filename := fs.Arg(0)

	tape, err := loadTape(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return 1
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(filename, AsmExt) + ".tape"
	}
	if err := os.WriteFile(out, tape, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing tape: %v\n", err)
		return 1
	}
	fmt.Printf("%s: %d bytes, tape %s\n", out, len(tape), vm.Digest(tape))
	return 0
}

// stateCommand prints a state dump written by `yapko run -dump-state` as YAML.
func stateCommand(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: yapko state <dump.cbor|dump.yaml>")
		return 1
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return 1
	}
	st, err := vm.DecodeState(data, vm.FormatFor(args[0]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := st.Encode(os.Stdout, vm.FormatYAML); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
