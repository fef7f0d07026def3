// Package command implements the operator console: a liner-backed REPL
// offering dump/break/continue/step/ipl-style commands over stdin,
// grounded on the teacher's command/reader.ConsoleReader (liner wiring)
// and command/parser's prefix-matched command table, collapsed here from
// S/370's device-attach/set/show surface to MattRISC's run-control verbs
// (SPEC_FULL.md §11).
package command

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/mattrisc/iss/cpu"
	"github.com/mattrisc/iss/platform"
	"github.com/mattrisc/iss/util/hex"
)

type cmd struct {
	name    string
	min     int
	process func(args []string, sys *platform.System) (quit bool, err error)
}

var cmdList = []cmd{
	{name: "dump", min: 1, process: dump},
	{name: "break", min: 2, process: doBreak},
	{name: "continue", min: 1, process: cont},
	{name: "step", min: 2, process: step},
	{name: "ipl", min: 1, process: ipl},
	{name: "quit", min: 1, process: quit},
}

func matchCommand(m cmd, name string) bool {
	if len(name) > len(m.name) || len(name) < m.min {
		return false
	}
	return m.name[:len(name)] == name
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var out []cmd
	for _, m := range cmdList {
		if matchCommand(m, name) {
			out = append(out, m)
		}
	}
	return out
}

func completions(line string) []string {
	fields := strings.Fields(line)
	if len(fields) > 1 || (len(fields) == 1 && strings.HasSuffix(line, " ")) {
		return nil
	}
	var name string
	if len(fields) == 1 {
		name = fields[0]
	}
	var out []string
	for _, m := range matchList(name) {
		out = append(out, m.name)
	}
	return out
}

// processCommand looks up and runs one command line against sys, returning
// true when the REPL should exit.
func processCommand(line string, sys *platform.System) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	match := matchList(fields[0])
	if len(match) == 0 {
		return false, fmt.Errorf("command not found: %s", fields[0])
	}
	if len(match) > 1 {
		return false, fmt.Errorf("ambiguous command: %s", fields[0])
	}
	return match[0].process(fields[1:], sys)
}

// Run drives the operator console until quit is entered or the prompt is
// aborted (Ctrl-D / Ctrl-C), mirroring ConsoleReader's liner setup.
func Run(sys *platform.System) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string { return completions(l) })

	for {
		input, err := line.Prompt("mattrisc> ")
		if err == nil {
			line.AppendHistory(input)
			quit, cerr := processCommand(input, sys)
			if cerr != nil {
				fmt.Println("error: " + cerr.Error())
			}
			if quit {
				return
			}
			continue
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("command: error reading line", "error", err)
		return
	}
}

// dump prints the named special registers followed by all 32 GPRs, four
// per line, in the teacher's FormatWord hex layout.
func dump(_ []string, sys *platform.System) (bool, error) {
	fmt.Println(sys.State.String())

	var b strings.Builder
	for i := 0; i < len(sys.State.GPR); i += 4 {
		b.Reset()
		fmt.Fprintf(&b, "r%-2d ", i)
		hex.FormatWord(&b, sys.State.GPR[i:i+4])
		fmt.Println(b.String())
	}
	return false, nil
}

func doBreak(_ []string, sys *platform.System) (bool, error) {
	sys.Loop.BreakRequested = true
	return false, nil
}

func cont(_ []string, sys *platform.System) (bool, error) {
	sys.Loop.BreakRequested = false
	go func() {
		// A non-nil error here is fatal (unmapped bus access,
		// unimplemented SPR): dump state and stop the core so the
		// operator sees it at the prompt rather than a silent hang.
		if err := sys.Loop.Run(); err != nil {
			slog.Error("simulation terminated", "error", err)
			fmt.Println(sys.State.String())
			sys.Loop.BreakRequested = true
		}
	}()
	return false, nil
}

func step(args []string, sys *platform.System) (bool, error) {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return false, fmt.Errorf("step: bad count %q", args[0])
		}
		n = v
	}
	for i := uint64(0); i < n; i++ {
		if _, _, err := sys.Interp.Step(); err != nil {
			if _, ok := err.(*cpu.Exception); ok {
				sys.State.Tick(1)
				continue
			}
			return false, err
		}
		sys.State.Tick(1)
	}
	return false, nil
}

func ipl(args []string, sys *platform.System) (bool, error) {
	if len(args) < 1 {
		return false, errors.New("ipl: missing start address")
	}
	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return false, fmt.Errorf("ipl: bad address %q", args[0])
	}
	sys.State.PC = uint32(addr)
	return false, nil
}

func quit(_ []string, _ *platform.System) (bool, error) {
	return true, nil
}
