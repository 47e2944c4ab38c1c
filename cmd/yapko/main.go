package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/alexander-drabik/Yapko/pkg/asm"
	"github.com/alexander-drabik/Yapko/pkg/config"
	"github.com/alexander-drabik/Yapko/pkg/opcode"
	"github.com/alexander-drabik/Yapko/pkg/version"
	"github.com/alexander-drabik/Yapko/pkg/vm"
)

// AsmExt marks a file holding assembly instead of a raw tape.
const AsmExt = ".yasm"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	command := os.Args[1]

	switch command {
	case "--version", "-version", "version":
		printVersion()
		return
	case "--help", "-h", "help":
		printHelp()
		return
	}

	// A bare file argument is a shortcut for `yapko run <file>`.
	if strings.HasSuffix(command, AsmExt) {
		os.Exit(runCommand(os.Args[1:]))
	}

	switch command {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "disasm":
		os.Exit(disasmCommand(os.Args[2:]))
	case "asm":
		os.Exit(asmCommand(os.Args[2:]))
	case "state":
		os.Exit(stateCommand(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printHelp()
		os.Exit(1)
	}
}

type verbosity int

func (v *verbosity) String() string { return fmt.Sprint(int(*v)) }

func (v *verbosity) Set(string) error {
	*v++
	return nil
}

func (v *verbosity) IsBoolFlag() bool { return true }

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file (default ./"+config.FileName+" if present)")
	envPath := fs.String("env", "", "dotenv file (default ./.env if present)")
	capture := fs.String("capture", "", "closure capture mode: index or frame")
	maxSteps := fs.Int("max-steps", -1, "stop after this many instructions (0 = unlimited)")
	dumpState := fs.String("dump-state", "", "write the final state to this file (.cbor or .yaml)")
	var verbose verbosity
	fs.Var(&verbose, "v", "increase log verbosity (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: yapko run [flags] <file>")
		return 1
	}
	filename := fs.Arg(0)

	cfg, err := config.Resolve(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	if *capture != "" {
		cfg.Capture = *capture
	}
	if *maxSteps >= 0 {
		cfg.MaxSteps = *maxSteps
	}
	cfg.Verbosity += int(verbose)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	commonlog.Configure(cfg.Verbosity, nil)

	tape, err := loadTape(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	machine := vm.New(tape, opcode.Default(), vm.WithConfig(cfg))
	runErr := machine.Run(ctx)

	if *dumpState != "" {
		if err := writeState(machine, *dumpState); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing state: %v\n", err)
			if runErr == nil {
				return 1
			}
		}
	}

	if runErr != nil {
		printRuntimeError(cfg, filename, runErr)
		return 1
	}
	return 0
}

// loadTape reads an assembly listing or a raw tape encoded with the default
// opcode table.
func loadTape(filename string) (opcode.Instructions, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(filename) != AsmExt {
		return data, nil
	}
	tape, err := asm.Assemble(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return tape, nil
}

func writeState(machine *vm.VM, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := machine.Snapshot().Encode(f, vm.FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const (
	colorRed   = "\x1b[31m"
	colorBold  = "\x1b[1m"
	colorReset = "\x1b[0m"
)

func printRuntimeError(cfg config.Config, filename string, err error) {
	useColor := cfg.Color == "always" || (cfg.Color != "never" && vm.IsTerminal(os.Stderr))

	label := "runtime error"
	if errors.Is(err, context.Canceled) {
		label = "interrupted"
	}
	if useColor {
		fmt.Fprintf(os.Stderr, "%s%s%s:%s %s%s\n", colorBold, colorRed, label, colorReset, colorBold, filename+colorReset)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s\n", label, filename)
	}
	fmt.Fprintf(os.Stderr, "  %v\n", err)
}

func printUsage() {
	fmt.Println("Yapko v" + version.Version)
	fmt.Println("\nUsage:")
	fmt.Println("  yapko <file.yasm>        Run an assembly listing")
	fmt.Println("  yapko run <file>         Run a listing or a raw tape")
	fmt.Println("  yapko asm <file.yasm>    Write the raw tape of a listing")
	fmt.Println("  yapko disasm <file>      Print the instructions of a tape")
	fmt.Println("  yapko state <dump>       Print a state dump as YAML")
	fmt.Println("  yapko version            Show version information")
	fmt.Println("  yapko help               Show this help message")
}

func printVersion() {
	fmt.Printf("Yapko %s\n", version.Version)
	fmt.Printf("Build Date: %s\n", version.BuildDate)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
}

func printHelp() {
	fmt.Println("Yapko tape engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  yapko <file.yasm>              Run an assembly listing (shortcut for 'yapko run')")
	fmt.Println("  yapko run [flags] <file>       Execute a .yasm listing or a raw tape")
	fmt.Println("  yapko asm [-o out] <file.yasm> Write the raw tape of a listing")
	fmt.Println("  yapko disasm [-raw] <file>     Print the instructions of a listing or tape")
	fmt.Println("  yapko state <dump>             Print a -dump-state file as YAML")
	fmt.Println("  yapko version                  Display build metadata")
	fmt.Println("  yapko help                     Show this help message")
	fmt.Println()
	fmt.Println("Run flags:")
	fmt.Println("  -config <file>                 Configuration file (default ./" + config.FileName + ")")
	fmt.Println("  -env <file>                    Dotenv file with YAPKO_* overrides (default ./.env)")
	fmt.Println("  -capture index|frame           Closure capture mode")
	fmt.Println("  -max-steps <n>                 Stop after n instructions")
	fmt.Println("  -dump-state <file>             Write the final state as CBOR, or YAML for .yaml/.yml")
	fmt.Println("  -v                             More log output, repeat for debug tracing")
}
