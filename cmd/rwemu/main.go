// Command rwemu runs a RomWBW Z80 core emulator instance as a native
// process: it loads a ROM image and up to sixteen disk images, drives the
// execution core against the terminal, and exits with a code reflecting how
// the run ended (§6/§7).
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/hjkit/romwbw-emu/pkg/emulator"
	"github.com/hjkit/romwbw-emu/pkg/trace"
	"github.com/hjkit/romwbw-emu/pkg/version"
	"github.com/spf13/cobra"
)

const diskUnitCount = 16

var (
	romPath     string
	diskPaths   [diskUnitCount]string
	disk0Alias  string
	disk1Alias  string
	bootString  string
	escapeChar  string
	tracePath   string
	symbolsPath string
	debugFlag   bool
	strictIO    bool

	// batchSize bounds each RunBatch call; small enough that the
	// stdin-reading goroutine's queued bytes and the escape key are
	// noticed promptly, large enough to keep per-call overhead low.
	batchSize = 4096
)

var rootCmd = &cobra.Command{
	Use:     "rwemu",
	Short:   "RomWBW Z80 core emulator",
	Version: version.String(),
	Long: `rwemu runs the RomWBW HBIOS service layer against a Z80 core: banked
memory, disk units, and a console port, driven from a loaded ROM image.

EXAMPLES:
  rwemu --romwbw=hbios.rom --hbdisk0=cpm.img
  rwemu --romwbw=hbios.rom --disk0=cpm.img --boot=2 --debug`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&romPath, "romwbw", "", "512 KiB RomWBW ROM image (required)")
	rootCmd.MarkFlagRequired("romwbw")

	for i := 0; i < diskUnitCount; i++ {
		rootCmd.Flags().StringVar(&diskPaths[i], fmt.Sprintf("hbdisk%d", i), "", fmt.Sprintf("disk image for HBIOS unit %d", i))
	}
	rootCmd.Flags().StringVar(&disk0Alias, "disk0", "", "alias for --hbdisk0")
	rootCmd.Flags().StringVar(&disk1Alias, "disk1", "", "alias for --hbdisk1")

	rootCmd.Flags().StringVar(&bootString, "boot", "", "bytes pre-queued into the console before the first batch (CR appended)")
	rootCmd.Flags().StringVar(&escapeChar, "escape", "", "console escape byte for interactive exit (default none)")
	rootCmd.Flags().StringVar(&tracePath, "trace", "", "write one instruction-trace line per step to this file")
	rootCmd.Flags().StringVar(&symbolsPath, "symbols", "", "symbol table annotating --trace output (ADDR NAME per line)")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "log non-fatal service errors in addition to fatal ones")
	rootCmd.Flags().BoolVar(&strictIO, "strict-io", false, "treat unrecognized port accesses as fatal instead of ignoring them")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if disk0Alias != "" {
		if diskPaths[0] != "" {
			return fmt.Errorf("rwemu: --disk0 and --hbdisk0 both set")
		}
		diskPaths[0] = disk0Alias
	}
	if disk1Alias != "" {
		if diskPaths[1] != "" {
			return fmt.Errorf("rwemu: --disk1 and --hbdisk1 both set")
		}
		diskPaths[1] = disk1Alias
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rwemu: reading ROM image: %v\n", err)
		os.Exit(1)
	}

	cfg := emulator.Config{
		BootString:      bootString,
		Debug:           debugFlag,
		StrictIO:        strictIO,
		BlockingAllowed: true,
		Log:             os.Stderr,
	}
	if tracePath != "" {
		traceFile, err := os.Create(tracePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rwemu: creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer traceFile.Close()

		var symbols *trace.Symbols
		if symbolsPath != "" {
			symbolsFile, err := os.Open(symbolsPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "rwemu: opening symbol table: %v\n", err)
				os.Exit(1)
			}
			symbols, err = trace.LoadSymbols(symbolsFile)
			symbolsFile.Close()
			if err != nil {
				fmt.Fprintf(os.Stderr, "rwemu: parsing symbol table: %v\n", err)
				os.Exit(1)
			}
		}
		cfg.Trace = trace.NewSink(traceFile, symbols)
	}

	e := emulator.New(cfg)
	if err := e.LoadROM(rom); err != nil {
		fmt.Fprintf(os.Stderr, "rwemu: %v\n", err)
		os.Exit(1)
	}

	for unit, path := range diskPaths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rwemu: reading disk image for unit %d: %v\n", unit, err)
			os.Exit(1)
		}
		if err := e.LoadDisk(unit, data); err != nil {
			fmt.Fprintf(os.Stderr, "rwemu: %v\n", err)
			os.Exit(1)
		}
	}

	var escape byte
	hasEscape := len(escapeChar) > 0
	if hasEscape {
		escape = escapeChar[0]
	}

	escaped := make(chan struct{})
	go feedStdin(e, escape, hasEscape, escaped)

	return drive(e, escaped)
}

// feedStdin reads raw bytes from the terminal and queues them into the
// console input, independent of the batch loop, so RunBatch's
// blocking-allowed console-input spin always has fresh input to find (§5
// EXPANSION). Closes escaped once the configured escape byte is seen.
func feedStdin(e *emulator.Emulator, escape byte, hasEscape bool, escaped chan<- struct{}) {
	r := bufio.NewReader(os.Stdin)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if hasEscape && b == escape {
			close(escaped)
			return
		}
		e.QueueChar(b)
	}
}

// drive runs the batch loop until the guest halts, a fatal error occurs, or
// the user presses the escape key, printing console output as it arrives.
func drive(e *emulator.Emulator, escaped <-chan struct{}) error {
	for {
		select {
		case <-escaped:
			flush(e)
			return nil
		default:
		}

		_, err := e.RunBatch(batchSize)
		flush(e)
		if err != nil {
			var fatal *emulator.FatalError
			fmt.Fprintf(os.Stderr, "rwemu: %v\n", err)
			if errors.As(err, &fatal) && fatal.Kind == "strict-io" {
				os.Exit(2)
			}
			os.Exit(1)
		}
		if e.Halted() {
			return nil
		}
	}
}

func flush(e *emulator.Emulator) {
	out := e.DrainOutput()
	if len(out) > 0 {
		os.Stdout.Write(out)
	}
}

