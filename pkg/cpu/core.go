// Package cpu adapts github.com/remogatto/z80 to the emulator's banked
// memory subsystem and host port-I/O model. It is the sole place the
// module touches the Z80 core dependency, following the teacher's
// pkg/emulator/z80_remogatto.go wrapper pattern: a MemoryAccessor shim over
// the real address space, a PortAccessor shim delegating to host-supplied
// functions, and a thin Core type exposing only what the rest of the
// module needs (step, register access, PC/SP, mode selection).
package cpu

import (
	"fmt"

	"github.com/remogatto/z80"
)

// Mode selects between Z80 and 8080 instruction semantics. remogatto/z80
// always executes full Z80 semantics; Mode is tracked for CPU-mode-selection
// contract completeness (the firmware never actually switches modes in
// practice) rather than changing what gets executed.
type Mode int

const (
	ModeZ80 Mode = iota
	Mode8080
)

// AddressSpace is the banked-memory projection the CPU core fetches and
// stores through. pkg/memory.Banked satisfies this.
type AddressSpace interface {
	Fetch(addr uint16) byte
	Store(addr uint16, value byte)
}

// PortDelegate supplies IN/OUT effects for the two port-I/O opcodes,
// realizing the delegate-over-driver-interception choice from the
// specification's design notes.
type PortDelegate struct {
	In  func(port uint16) byte
	Out func(port uint16, value byte)
}

// memoryAdapter implements z80.MemoryAccessor by delegating every access to
// the banked address space, so every core fetch/store observes bank-select
// and ROM write protection.
type memoryAdapter struct {
	space AddressSpace
}

func (m *memoryAdapter) ReadByte(address uint16) byte          { return m.space.Fetch(address) }
func (m *memoryAdapter) WriteByte(address uint16, value byte)  { m.space.Store(address, value) }
func (m *memoryAdapter) ReadByteInternal(address uint16) byte  { return m.ReadByte(address) }
func (m *memoryAdapter) WriteByteInternal(address uint16, v byte) { m.WriteByte(address, v) }
func (m *memoryAdapter) ContendRead(address uint16, time int)                  {}
func (m *memoryAdapter) ContendReadNoMreq(address uint16, time int)            {}
func (m *memoryAdapter) ContendReadNoMreq_loop(address uint16, time int, count uint) {}
func (m *memoryAdapter) ContendWriteNoMreq(address uint16, time int)           {}
func (m *memoryAdapter) ContendWriteNoMreq_loop(address uint16, time int, count uint) {}
func (m *memoryAdapter) Read(address uint16) byte { return m.ReadByte(address) }
func (m *memoryAdapter) Write(address uint16, value byte, protectROM bool) {
	m.WriteByte(address, value)
}
func (m *memoryAdapter) Data() []byte { return nil }

// portAdapter implements z80.PortAccessor by forwarding to a PortDelegate
// installed by the execution driver.
type portAdapter struct {
	delegate PortDelegate
}

func (p *portAdapter) ReadPort(address uint16) byte {
	if p.delegate.In != nil {
		return p.delegate.In(address)
	}
	return 0xFF
}

func (p *portAdapter) WritePort(address uint16, value byte) {
	if p.delegate.Out != nil {
		p.delegate.Out(address, value)
	}
}

func (p *portAdapter) ReadPortInternal(address uint16, contend bool) byte {
	return p.ReadPort(address)
}
func (p *portAdapter) WritePortInternal(address uint16, value byte, contend bool) {
	p.WritePort(address, value)
}
func (p *portAdapter) ContendPortPreio(address uint16)  {}
func (p *portAdapter) ContendPortPostio(address uint16) {}

// Registers snapshots the Z80 register file for the HBIOS dispatcher and
// diagnostics.
type Registers struct {
	A, F   byte
	B, C   byte
	D, E   byte
	H, L   byte
	IX, IY uint16
	SP, PC uint16
}

// Core wraps a remogatto/z80 CPU against a banked address space.
type Core struct {
	z80   *z80.Z80
	mem   *memoryAdapter
	ports *portAdapter
	mode  Mode
}

// New creates a Core bound to the given address space. Port I/O has no
// effect until SetPortDelegate is called.
func New(space AddressSpace) *Core {
	mem := &memoryAdapter{space: space}
	ports := &portAdapter{}
	return &Core{
		z80:   z80.NewZ80(mem, ports),
		mem:   mem,
		ports: ports,
	}
}

// SetPortDelegate installs the IN/OUT handlers used by the two port-I/O
// opcodes.
func (c *Core) SetPortDelegate(d PortDelegate) { c.ports.delegate = d }

// SetMode records the requested CPU mode. See the Mode doc comment: this
// does not alter instruction semantics, since the underlying core is Z80-only.
func (c *Core) SetMode(m Mode) { c.mode = m }

// GetMode returns the currently recorded CPU mode.
func (c *Core) GetMode() Mode { return c.mode }

// Reset resets the wrapped CPU to its power-on state (registers only; the
// address space is owned and reset separately by the caller).
func (c *Core) Reset() { c.z80.Reset() }

// Step executes a single instruction and returns the T-states consumed.
// The module does not use this for timing (Non-goal: cycle accuracy); it is
// exposed for diagnostics only.
func (c *Core) Step() int {
	before := c.z80.Tstates
	c.z80.DoOpcode()
	return int(c.z80.Tstates - before)
}

// PC returns the program counter.
func (c *Core) PC() uint16 { return c.z80.PC() }

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint16) { c.z80.SetPC(pc) }

// SP returns the stack pointer.
func (c *Core) SP() uint16 { return c.z80.SP() }

// SetSP sets the stack pointer.
func (c *Core) SetSP(sp uint16) { c.z80.SetSP(sp) }

// Halted reports whether the core executed a HALT instruction.
func (c *Core) Halted() bool { return c.z80.Halted }

// IFF1 reports the state of interrupt flip-flop 1.
func (c *Core) IFF1() bool { return c.z80.IFF1 != 0 }

// Registers returns a snapshot of the register file, as read by the HBIOS
// dispatcher on trap entry.
func (c *Core) Registers() Registers {
	return Registers{
		A: c.z80.A, F: c.z80.F,
		B: c.z80.B, C: c.z80.C,
		D: c.z80.D, E: c.z80.E,
		H: c.z80.H, L: c.z80.L,
		IX: c.z80.IX(), IY: c.z80.IY(),
		SP: c.z80.SP(), PC: c.z80.PC(),
	}
}

// SetRegisters writes back a modified register file, as the HBIOS
// dispatcher does after completing a service.
func (c *Core) SetRegisters(r Registers) {
	c.z80.A, c.z80.F = r.A, r.F
	c.z80.B, c.z80.C = r.B, r.C
	c.z80.D, c.z80.E = r.D, r.E
	c.z80.H, c.z80.L = r.H, r.L
	c.z80.SetIX(r.IX)
	c.z80.SetIY(r.IY)
	c.z80.SetSP(r.SP)
	c.z80.SetPC(r.PC)
}

// SetA is a convenience setter used by single-register return paths
// (console status/input, most system service status codes).
func (c *Core) SetA(value byte) { c.z80.A = value }

// PopReturnAddress pops a return address off the Z80 stack, as the
// dispatcher does to mimic a RET when substituting a native service for a
// call/ret pair.
func (c *Core) PopReturnAddress(space AddressSpace) uint16 {
	sp := c.SP()
	lo := space.Fetch(sp)
	hi := space.Fetch(sp + 1)
	c.SetSP(sp + 2)
	return uint16(hi)<<8 | uint16(lo)
}

// String renders a compact register dump, matching the teacher's DumpState
// convention.
func (c *Core) String() string {
	r := c.Registers()
	return fmt.Sprintf(
		"PC=%04X SP=%04X AF=%02X%02X BC=%02X%02X DE=%02X%02X HL=%02X%02X IX=%04X IY=%04X",
		r.PC, r.SP, r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L, r.IX, r.IY,
	)
}
