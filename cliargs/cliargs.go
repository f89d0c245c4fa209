// Package cliargs parses the plus-arg command line: a sequence of
// `+key=value`/`+flag` tokens, possibly shell-quoted, that configures
// the driver and is partly passed through verbatim to bridges.
// Tokenizing uses github.com/google/shlex so quoted bridge values
// (`+mm_label="two words"`) survive word-splitting.
package cliargs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Args holds the driver-level plus-args. Anything not recognized here
// is kept verbatim in BridgeParams for bridges to consume by key.
type Args struct {
	MaxCycles      uint64
	LoadMem        string
	FastLoadMem    bool
	ZeroOutDRAM    bool
	Seed           int64
	FuzzHostTiming int
	FuzzSeed       int64

	SlotID     int
	Bus        string
	Domain     string
	AGFI       string
	BinaryFile string

	Debug bool

	// BridgeParams holds every +key=value / +key<N>=value token not
	// recognized above, keyed by the token's bare key (without the
	// leading +), e.g. "prog0", "idle-counts", "mm_label", "drj_dtb".
	BridgeParams map[string]string

	// Flags holds bare +flag tokens (no '=') not recognized above.
	Flags map[string]bool
}

// defaultFuzzHostTiming is the host-delay fuzzer bound when
// +fuzz-host-timing is not given.
const defaultFuzzHostTiming = 1

// Parse tokenizes line with shell-word rules and parses the resulting
// +key=value / +flag tokens into Args. Tokens not starting with '+'
// are rejected: every argument token the driver accepts starts with
// '+'.
func Parse(line string) (*Args, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("cliargs: tokenize: %w", err)
	}
	return ParseTokens(tokens)
}

// ParseTokens parses an already-tokenized argument list (e.g.
// os.Args[1:]) into Args.
func ParseTokens(tokens []string) (*Args, error) {
	a := &Args{
		FuzzHostTiming: defaultFuzzHostTiming,
		BridgeParams:   map[string]string{},
		Flags:          map[string]bool{},
	}

	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "+") {
			return nil, fmt.Errorf("cliargs: argument %q does not start with '+'", tok)
		}
		body := tok[1:]

		key, value, hasValue := strings.Cut(body, "=")
		if key == "" {
			return nil, fmt.Errorf("cliargs: empty key in argument %q", tok)
		}

		var err error
		switch {
		case !hasValue:
			err = a.setFlag(key)
		default:
			err = a.setValue(key, value)
		}
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Args) setFlag(key string) error {
	switch key {
	case "fastloadmem":
		a.FastLoadMem = true
	case "zero-out-dram":
		a.ZeroOutDRAM = true
	case "debug":
		a.Debug = true
	default:
		a.Flags[key] = true
	}
	return nil
}

func (a *Args) setValue(key, value string) error {
	switch key {
	case "max-cycles":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cliargs: +max-cycles=%s: %w", value, err)
		}
		a.MaxCycles = n
	case "loadmem":
		a.LoadMem = value
	case "seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cliargs: +seed=%s: %w", value, err)
		}
		a.Seed = n
	case "fuzz-host-timing":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cliargs: +fuzz-host-timing=%s: %w", value, err)
		}
		a.FuzzHostTiming = n
	case "fuzz-seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cliargs: +fuzz-seed=%s: %w", value, err)
		}
		a.FuzzSeed = n
	case "slotid":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cliargs: +slotid=%s: %w", value, err)
		}
		a.SlotID = n
	case "bus":
		a.Bus = value
	case "domain":
		a.Domain = value
	case "agfi":
		a.AGFI = value
	case "binary_file":
		a.BinaryFile = value
	default:
		a.BridgeParams[key] = value
	}
	return nil
}

// BridgeParam looks up a per-bridge pass-through value (+prog<N>=,
// +idle-counts=, +peer-pcis-offset=, +batch-size=, +cutbridgeidx<N>=,
// +mm_<key>=, +drj_dtb=/+drj_rom=/+drj_bin=) by its bare key.
func (a *Args) BridgeParam(key string) (string, bool) {
	v, ok := a.BridgeParams[key]
	return v, ok
}
