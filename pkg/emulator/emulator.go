// Package emulator aggregates the banked memory, Z80 core, HBIOS
// dispatcher, disk manager, and console port into a single runnable
// instance, and implements the bounded-batch execution driver. It follows
// the teacher's aggregate-with-explicit-setters shape (see
// pkg/emulator/z80_remogatto.go's NewRemogattoZ80 wiring a Memory and Ports
// struct into a single *Z80): every component is a concrete value owned by
// Emulator, wired together once at construction, with no package-level
// state, so more than one Emulator can run in the same process.
package emulator

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hjkit/romwbw-emu/pkg/console"
	"github.com/hjkit/romwbw-emu/pkg/cpu"
	"github.com/hjkit/romwbw-emu/pkg/disk"
	"github.com/hjkit/romwbw-emu/pkg/hbios"
	"github.com/hjkit/romwbw-emu/pkg/memory"
	"github.com/hjkit/romwbw-emu/pkg/trace"
)

// HBIOSEntry and HBIOSSignalEntry are the fixed common-region addresses
// firmware transfers control to for, respectively, ordinary HBIOS service
// calls and the optional emulator-signal notification (§4.3). RomWBW's own
// firmware picks its own addresses at build time; these are this
// implementation's convention, documented rather than left to guesswork
// (the spec only requires "a small fixed set of entry addresses").
const (
	HBIOSEntry       uint16 = 0xFFF0
	HBIOSSignalEntry uint16 = 0xFFE0
)

// Port numbers the host port-I/O delegate recognizes (§6).
const (
	PortUARTData      uint16 = 0x68
	PortUARTStatus    uint16 = 0x6D
	PortBankRead      uint16 = 0x78
	PortBankWrite     uint16 = 0x7C
	PortSignal        uint16 = 0xEE
	PortHBIOSDispatch uint16 = 0xEF
)

const (
	uartStatusInputReady  = 0x01
	uartStatusOutputEmpty = 0x20
)

// HostIO is the capability bundle a host installs to receive character I/O,
// wall-clock reads, diagnostic lines, and reset notifications from the
// emulator core, matching §9's "bundle of function pointers instead of an
// interface" guidance. Any field left nil falls back to an internal default:
// WriteChar, ReadChar and HasInput use the emulator's own console queue, Now
// uses time.Now, Log writes to Config.Log, and Reset is a no-op.
type HostIO struct {
	WriteChar func(byte)
	ReadChar  func() (byte, bool)
	HasInput  func() bool
	Now       func() time.Time
	Log       func(string)
	Reset     func(kind byte)
}

// Config is the construction-time configuration for an Emulator. cmd/rwemu
// assembles this from cobra flags; the core package never reads flags, env
// vars, or files on its own (§3 EXPANSION).
type Config struct {
	// BootString is queued into the console input before the first batch,
	// with a trailing CR appended, realizing --boot.
	BootString string

	// Debug raises logging verbosity: non-fatal service errors are logged
	// only when this is set (§4 EXPANSION).
	Debug bool

	// StrictIO turns unrecognized port accesses into a fatal halt instead
	// of the default read-as-0xFF/drop-write behavior (§6).
	StrictIO bool

	// BlockingAllowed selects the native/CLI console-input behavior (spin
	// until a byte arrives) versus the non-blocking/embedded behavior
	// (raise Waiting and let the driver suspend the batch), per §9.
	BlockingAllowed bool

	// HostDir is the directory SYSINT file-transfer subfunctions resolve
	// guest filenames against, defaulting to the current working directory.
	HostDir string

	// Log receives diagnostic lines; defaults to os.Stderr.
	Log io.Writer

	// Trace, if non-nil, receives one entry per executed instruction.
	Trace *trace.Sink

	// Host supplies the character I/O, clock, and reset callbacks; its
	// zero value uses the emulator's own Console/disk wiring for character
	// I/O and time.Now for the clock.
	Host HostIO
}

// Emulator is a single runnable RomWBW core instance.
type Emulator struct {
	cfg Config

	mem        *memory.Banked
	core       *cpu.Core
	console    *console.Port
	disks      *disk.Manager
	dispatcher *hbios.Dispatcher

	log          io.Writer
	halted       bool
	waitingInput bool

	// fatal is latched by portIn/portOut when strict-io mode observes an
	// unrecognized port; RunBatch surfaces it as a *FatalError on the
	// instruction boundary following the offending access, since the core's
	// port delegate has no way to abort execution mid-instruction.
	fatal *FatalError
}

// New constructs an Emulator with its components wired together and
// banking armed. The returned instance has no ROM loaded; call LoadROM
// before the first RunBatch.
func New(cfg Config) *Emulator {
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	if cfg.HostDir == "" {
		cfg.HostDir = "."
	}

	mem := memory.New()
	core := cpu.New(mem)
	consolePort := console.New()
	disks := disk.NewManager()
	dispatcher := hbios.New(HBIOSEntry, HBIOSSignalEntry)
	dispatcher.SetHostDir(cfg.HostDir)

	e := &Emulator{
		cfg:        cfg,
		mem:        mem,
		core:       core,
		console:    consolePort,
		disks:      disks,
		dispatcher: dispatcher,
		log:        cfg.Log,
	}

	// The dispatcher only logs non-fatal service errors, so it gets a logger
	// only in debug mode.
	var serviceLog hbios.Logger
	if cfg.Debug {
		serviceLog = e.logf
	}
	dispatcher.Attach(core, mem, mem, e.consoleAdapter(), &diskAdapter{disks}, e.clock, e.hostReset, serviceLog)
	core.SetPortDelegate(cpu.PortDelegate{In: e.portIn, Out: e.portOut})

	return e
}

// consoleAdapter returns the hbios.Console view of this emulator's console
// port, routed through the host capability bundle when one is supplied,
// falling back to the built-in queue otherwise.
func (e *Emulator) consoleAdapter() hbios.Console {
	return &consoleShim{e: e}
}

type consoleShim struct{ e *Emulator }

func (c *consoleShim) HasInput() bool {
	if c.e.cfg.Host.HasInput != nil {
		return c.e.cfg.Host.HasInput()
	}
	return c.e.console.HasInput()
}

func (c *consoleShim) ReadChar() (byte, bool) {
	if c.e.cfg.Host.ReadChar != nil {
		return c.e.cfg.Host.ReadChar()
	}
	return c.e.console.ReadChar()
}

func (c *consoleShim) WriteChar(b byte) {
	if c.e.cfg.Host.WriteChar != nil {
		c.e.cfg.Host.WriteChar(b)
		return
	}
	c.e.console.WriteChar(b)
}

// diskAdapter satisfies hbios.DiskService by converting disk.Geometry to
// hbios.Geometry at the one seam where the two packages' shapes diverge
// (Format is a named type in pkg/disk, a plain int in pkg/hbios, to keep
// hbios free of a compile-time dependency on pkg/disk).
type diskAdapter struct {
	m *disk.Manager
}

func (d *diskAdapter) IsLoaded(unit int) bool { return d.m.IsLoaded(unit) }
func (d *diskAdapter) Seek(unit int, slice int, lba int64) error {
	return d.m.Seek(unit, slice, lba)
}
func (d *diskAdapter) Read(unit int, buf []byte) error  { return d.m.Read(unit, buf) }
func (d *diskAdapter) Write(unit int, buf []byte) error { return d.m.Write(unit, buf) }
func (d *diskAdapter) Geometry(unit int) (hbios.Geometry, error) {
	g, err := d.m.Geometry(unit)
	if err != nil {
		return hbios.Geometry{}, err
	}
	return hbios.Geometry{
		Format:       int(g.Format),
		Slices:       g.Slices,
		SectorCount:  g.SectorCount,
		SectorSize:   g.SectorSize,
		PrefixOffset: g.PrefixOffset,
	}, nil
}

func (e *Emulator) clock() time.Time {
	if e.cfg.Host.Now != nil {
		return e.cfg.Host.Now()
	}
	return time.Now()
}

func (e *Emulator) hostReset(kind byte) {
	if e.cfg.Host.Reset != nil {
		e.cfg.Host.Reset(kind)
	}
}

func (e *Emulator) logf(msg string) {
	if e.cfg.Host.Log != nil {
		e.cfg.Host.Log(msg)
		return
	}
	fmt.Fprintln(e.log, msg)
}

// LoadROM copies data into the physical ROM store, arms banking, installs
// the HCB and identification block, and positions PC at the ROM's reset
// vector (address 0x0000), per §3/§6. Loading a ROM image smaller than
// 512 KiB zero-pads; loading larger truncates.
func (e *Emulator) LoadROM(data []byte) error {
	if len(data) < 512 {
		return fmt.Errorf("emulator: ROM image too small to contain a boot header (%d bytes)", len(data))
	}
	e.mem.LoadROM(data)
	e.mem.EnableBanking()
	e.dispatcher.InstallBootImage(e.mem.Common(), data[:512])
	e.synthesizeMemoryDisks()
	e.refreshUnitTable()
	e.core.Reset()
	e.core.SetPC(0x0000)
	if e.cfg.BootString != "" {
		e.console.QueueString(e.cfg.BootString)
	}
	return nil
}

// synthesizeMemoryDisks reads the HCB's memory-disk configuration bytes and
// loads MD0/MD1 from the top of the physical RAM/ROM stores accordingly
// (§3: "on ROM load, the dispatcher reads the HCB's memory-disk
// configuration bytes and synthesizes the two memory-disk units"). A unit
// already claimed by an earlier --hbdiskN file load is left alone; a
// synthesis failure is logged, not fatal, since a guest with no memory-disk
// configured at all must still boot normally.
func (e *Emulator) synthesizeMemoryDisks() {
	ramPages, romPages := e.dispatcher.MemDiskConfig(e.mem.Common())
	if ramPages > 0 {
		ram := e.RAM()
		size := int(ramPages) * memory.BankSize
		if size > len(ram) {
			size = len(ram)
		}
		if err := e.LoadMemoryDisk(0, ram[len(ram)-size:]); err != nil {
			e.logf(fmt.Sprintf("[boot] memory disk MD0 not synthesized: %v", err))
		}
	}
	if romPages > 0 {
		rom := e.ROM()
		size := int(romPages) * memory.BankSize
		if size > len(rom) {
			size = len(rom)
		}
		if err := e.LoadMemoryDisk(1, rom[len(rom)-size:]); err != nil {
			e.logf(fmt.Sprintf("[boot] memory disk MD1 not synthesized: %v", err))
		}
	}
}

// FatalError is raised for the one error class that stops the driver
// outright (§7): conditions a guest cannot recover from by retrying a
// service call, as opposed to the register-level status codes hbios
// reports for ordinary service errors.
type FatalError struct {
	Kind    string
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("emulator: fatal (%s): %s", e.Kind, e.Message)
}

// UnloadDisk detaches a unit's image, per the CLI's ability to swap media
// between batches.
func (e *Emulator) UnloadDisk(unit int) error {
	if err := e.disks.Unload(unit); err != nil {
		return fmt.Errorf("emulator: unload disk unit %d: %w", unit, err)
	}
	e.refreshUnitTable()
	return nil
}

// LoadDisk attaches a host-file-backed image to a disk unit, per --hbdiskN.
func (e *Emulator) LoadDisk(unit int, data []byte) error {
	if err := e.disks.Load(unit, data); err != nil {
		return fmt.Errorf("emulator: load disk unit %d: %w", unit, err)
	}
	e.refreshUnitTable()
	return nil
}

// LoadMemoryDisk synthesizes a memory-disk unit (MD0/MD1) from a slice of
// the emulator's own physical stores, conventionally called with ROM/RAM
// views from e.ROM()/e.RAM() unless an explicit --hbdiskN file load has
// already claimed that unit (§3 glossary: "memory-disks occupy the lowest
// two units unless overridden").
func (e *Emulator) LoadMemoryDisk(unit int, backing []byte) error {
	if e.disks.IsLoaded(unit) {
		return fmt.Errorf("emulator: unit %d already has a file-backed image loaded", unit)
	}
	if err := e.disks.LoadMemoryDisk(unit, backing); err != nil {
		return fmt.Errorf("emulator: load memory disk unit %d: %w", unit, err)
	}
	e.refreshUnitTable()
	return nil
}

func (e *Emulator) refreshUnitTable() {
	e.dispatcher.RefreshUnitTable(e.mem.Common(), e.disks.PopulatedUnits())
}

// ROM and RAM expose the physical stores for memory-disk synthesis
// (MD1/MD0 respectively) by the host, per §3's memory-disk component.
func (e *Emulator) ROM() []byte { return e.mem.GetROM() }
func (e *Emulator) RAM() []byte { return e.mem.GetRAM() }

// QueueChar injects a single byte of synthetic console input, bypassing
// the host I/O bundle's ReadChar/HasInput (used for --boot and any
// scripted interaction a test drives directly).
func (e *Emulator) QueueChar(b byte) { e.console.QueueChar(b) }

// DrainOutput returns and clears everything the guest has written to the
// console since the last call.
func (e *Emulator) DrainOutput() []byte { return e.console.DrainOutput() }

// PeekOutput returns everything written so far without clearing it.
func (e *Emulator) PeekOutput() []byte { return e.console.PeekOutput() }

// Registers returns the current Z80 register file.
func (e *Emulator) Registers() cpu.Registers { return e.core.Registers() }

// Halted reports whether the core executed a HALT instruction, or a fatal
// error stopped the driver, and the emulator has not been reset since.
func (e *Emulator) Halted() bool { return e.halted }

// Waiting reports whether the last RunBatch call suspended on an
// unsatisfied console-input request.
func (e *Emulator) Waiting() bool { return e.waitingInput }

// String renders a compact diagnostic dump of the core registers.
func (e *Emulator) String() string { return e.core.String() }

// RunBatch executes up to maxInstructions steps: before each step it tests
// PC against the HBIOS trap table; a match invokes the dispatcher instead
// of core execution; otherwise the core executes one instruction through
// the banked address space. The batch ends early on HALT, on an
// unsatisfied non-blocking console-input request, or when maxInstructions
// is reached (§4.6, §5).
func (e *Emulator) RunBatch(maxInstructions int) (executed int, err error) {
	e.waitingInput = false
	for executed = 0; executed < maxInstructions; executed++ {
		if e.halted {
			return executed, nil
		}
		pc := e.core.PC()
		if kind, ok := e.dispatcher.IsTrap(pc); ok {
			waiting := e.dispatcher.Service(kind, e.cfg.BlockingAllowed)
			if waiting.Pending {
				e.waitingInput = true
				return executed, nil
			}
			continue
		}

		opcode := e.mem.Fetch(pc)
		e.core.Step()
		if e.cfg.Trace != nil {
			r := e.core.Registers()
			e.cfg.Trace.Trace(trace.Entry{
				PC: pc, Opcode: opcode,
				A: r.A, F: r.F,
				BC: uint16(r.B)<<8 | uint16(r.C),
				DE: uint16(r.D)<<8 | uint16(r.E),
				HL: uint16(r.H)<<8 | uint16(r.L),
				SP: r.SP,
			})
		}
		if e.fatal != nil {
			fatal := e.fatal
			e.fatal = nil
			e.halted = true
			return executed + 1, fatal
		}
		if e.core.Halted() {
			e.halted = true
			return executed + 1, nil
		}
	}
	return executed, nil
}

// Reset clears the halted flag and performs a cold reset: ROM bank 0
// selected, PC vectored to 0x0000. Equivalent to what FnSysReset does from
// inside the guest, exposed here for host-initiated resets.
func (e *Emulator) Reset() {
	e.halted = false
	e.waitingInput = false
	e.mem.SelectBank(0)
	e.core.Reset()
	e.core.SetPC(0x0000)
}

// portIn services the two port-I/O opcodes' IN half, dispatched by port
// number per §6. Unknown ports read as 0xFF; under strict mode the access
// also latches e.fatal, which RunBatch surfaces once the delegate returns
// control, since the core's port delegate has no path to abort a batch
// mid-instruction.
func (e *Emulator) portIn(port uint16) byte {
	switch port & 0xFF {
	case PortUARTData:
		if b, ok := e.consoleAdapter().ReadChar(); ok {
			return b
		}
		return 0x00
	case PortUARTStatus:
		var status byte = uartStatusOutputEmpty
		if e.consoleAdapter().HasInput() {
			status |= uartStatusInputReady
		}
		return status
	case PortBankRead:
		return e.mem.CurrentBank()
	default:
		if e.cfg.StrictIO {
			e.raiseStrictIO(fmt.Sprintf("unexpected IN from port %#02x", port&0xFF))
		}
		return 0xFF
	}
}

// portOut services the OUT half of port I/O.
func (e *Emulator) portOut(port uint16, value byte) {
	switch port & 0xFF {
	case PortUARTData:
		e.consoleAdapter().WriteChar(value)
	case PortBankWrite:
		e.mem.SelectBank(value)
	case PortSignal:
		// §9 open question: accepted as a no-op, PC-trap detection does
		// all the work. Do not infer further semantics here.
	case PortHBIOSDispatch:
		e.dispatcher.ServicePort(e.cfg.BlockingAllowed)
	default:
		if e.cfg.StrictIO {
			e.raiseStrictIO(fmt.Sprintf("unexpected OUT to port %#02x value %#02x", port&0xFF, value))
		}
	}
}

// raiseStrictIO logs and latches a fatal condition for the next RunBatch
// instruction boundary to surface, per §6/§7's strict-io exit code.
func (e *Emulator) raiseStrictIO(detail string) {
	e.logf(fmt.Sprintf("[io] strict mode: %s", detail))
	if e.fatal == nil {
		e.fatal = &FatalError{Kind: "strict-io", Message: detail}
	}
}
