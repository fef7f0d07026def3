// Package config parses the CLI surface from spec §6 into an immutable
// Config value, following the teacher's use of github.com/pborman/getopt/v2
// for option parsing -- generalised here from S/370's file-based
// config/configparser to flags-only, since MattRISC boots from the command
// line rather than a declarative channel-configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"
)

// TraceCategory names one of spec §6's `-trace` values.
type TraceCategory string

const (
	TraceSyscall   TraceCategory = "syscall"
	TraceIO        TraceCategory = "io"
	TraceBranch    TraceCategory = "branch"
	TraceMMU       TraceCategory = "mmu"
	TraceException TraceCategory = "exception"
	TraceJIT       TraceCategory = "jit"
)

var validTraces = map[string]TraceCategory{
	"syscall":   TraceSyscall,
	"io":        TraceIO,
	"branch":    TraceBranch,
	"mmu":       TraceMMU,
	"exception": TraceException,
	"jit":       TraceJIT,
}

// Config is the immutable result of parsing argv, passed into platform
// construction once at startup rather than threaded through as a mutable
// global -- the spec's "pass an immutable configuration value into the
// runloop at construction" redesign guidance.
type Config struct {
	ROMPath         string
	LoadAddr        uint32
	StartAddr       uint32
	HaveStartAddr   bool
	StartMSR        uint32
	InstrLimit      uint64
	DumpStatePeriod uint64
	BlockPaths      []string
	GPIOInputs      uint32
	Traces          map[TraceCategory]bool
	SaveStatePath   string
	Verbose         bool
	Disassemble     bool
	BlockMode       bool
}

// Parse builds a Config from argv (excluding the program name), following
// main.go's getopt idiom in the teacher repo: declare every flag up front
// with String/BoolLong against the package's default option set, call
// Parse, then read back the bound variables. Numeric and list flags are
// plain strings at the getopt layer and are converted by hand afterward,
// since the teacher never needed anything beyond string and bool options.
// block-path and trace each take one comma-separated list; giving either
// flag more than once does not accumulate values.
func Parse(argv []string) (*Config, error) {
	romPath := getopt.StringLong("rom-path", 0, "", "file loaded into RAM at load-addr")
	loadAddr := getopt.StringLong("load-addr", 0, "0", "physical load destination")
	startAddr := getopt.StringLong("start-addr", 0, "", "initial PC (defaults to load-addr)")
	startMSR := getopt.StringLong("start-msr", 0, "0", "initial MSR")
	instrLimit := getopt.StringLong("instr-limit", 0, "0", "halt after N retired instructions")
	dumpPeriod := getopt.StringLong("dump-state-period", 0, "0", "dump CPU state every N retired instructions")
	blockPaths := getopt.StringLong("block-path", 0, "", "comma-separated raw-image block devices to attach")
	gpio := getopt.StringLong("gpio-inputs", 0, "0", "initial static GPIO input word")
	traces := getopt.StringLong("trace", 0, "", "comma-separated trace categories: syscall,io,branch,mmu,exception,jit")
	saveState := getopt.StringLong("save-state", 0, "", "write a structured state-save file on exit")
	verbose := getopt.BoolLong("verbose", 'v', "enable verbose logging")
	disass := getopt.BoolLong("disass", 0, "enable per-instruction disassembly trace")
	blockMode := getopt.BoolLong("block-mode", 0, "run via the block cache instead of the plain interpreter")
	help := getopt.BoolLong("help", 'h', "show usage")

	origArgs := os.Args
	os.Args = append([]string{origArgs[0]}, argv...)
	getopt.Parse()
	os.Args = origArgs

	if *help {
		getopt.Usage()
		os.Exit(0)
	}

	loadAddrV, err := parseUint32(*loadAddr, "load-addr")
	if err != nil {
		return nil, err
	}
	startMSRV, err := parseUint32(*startMSR, "start-msr")
	if err != nil {
		return nil, err
	}
	instrLimitV, err := parseUint64(*instrLimit, "instr-limit")
	if err != nil {
		return nil, err
	}
	dumpPeriodV, err := parseUint64(*dumpPeriod, "dump-state-period")
	if err != nil {
		return nil, err
	}
	gpioV, err := parseUint32(*gpio, "gpio-inputs")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ROMPath:         *romPath,
		LoadAddr:        loadAddrV,
		HaveStartAddr:   *startAddr != "",
		InstrLimit:      instrLimitV,
		DumpStatePeriod: dumpPeriodV,
		BlockPaths:      splitNonEmpty(*blockPaths),
		GPIOInputs:      gpioV,
		Traces:          map[TraceCategory]bool{},
		SaveStatePath:   *saveState,
		Verbose:         *verbose,
		Disassemble:     *disass,
		BlockMode:       *blockMode,
		StartMSR:        startMSRV,
	}
	if cfg.HaveStartAddr {
		v, err := parseUint32(*startAddr, "start-addr")
		if err != nil {
			return nil, err
		}
		cfg.StartAddr = v
	} else {
		cfg.StartAddr = cfg.LoadAddr
	}

	for _, t := range splitNonEmpty(*traces) {
		cat, ok := validTraces[t]
		if !ok {
			return nil, fmt.Errorf("config: unknown trace category %q", t)
		}
		cfg.Traces[cat] = true
	}

	return cfg, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseUint32(s, flag string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("config: --%s: %w", flag, err)
	}
	return uint32(v), nil
}

func parseUint64(s, flag string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("config: --%s: %w", flag, err)
	}
	return v, nil
}
