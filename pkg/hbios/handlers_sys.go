package hbios

import "time"

// handleSysIdent services FnSysIdent: reports the identification stamp
// fields in registers rather than requiring the caller to walk the common
// region directly. B carries the signature, C its complement, A the packed
// version byte (§3).
func (d *Dispatcher) handleSysIdent() {
	regs := d.cpu.Registers()
	regs.A = packedVersion()
	regs.B = identSignature
	regs.C = identComplement
	d.cpu.SetRegisters(regs)
}

// handleSysCPUInfo reports the CPU mode currently stored by the emulator
// (Z80 or 8080 compatibility), per §9's "stored but otherwise functionally
// inert" resolution: the underlying core always executes true Z80
// semantics regardless of the value reported here.
func (d *Dispatcher) handleSysCPUInfo() {
	regs := d.cpu.Registers()
	regs.A = StatusOK
	regs.B = d.cpuMode
	d.cpu.SetRegisters(regs)
}

// handleSysBankJump services the bank-switch primitive (§4.3): select a new
// bank and transfer control to the address in HL, bypassing the normal
// call/ret convention entirely. The caller's own return address is left on
// the stack untouched; it is up to the destination code to eventually
// unwind it.
func (d *Dispatcher) handleSysBankJump(r Registers) {
	d.banks.SelectBank(r.C)
	d.cpu.SetPC(hi16(r.H, r.L))
}

// handleSysReset services the reset family (§4.6): selects ROM bank 0 and
// vectors PC to 0x0000, then invokes the host reset callback (if any) with
// the requested kind so the host can reinitialize peripherals.
func (d *Dispatcher) handleSysReset(r Registers) {
	kind := r.C
	d.banks.SelectBank(0)
	d.cpu.SetPC(0x0000)
	if d.reset != nil {
		d.reset(kind)
	}
}

// handleSysTimeGet reports the live host wall clock as BCD fields (§4.3)
// unless a prior FnSysTimeSet has installed a shadow value, in which case
// the shadow is returned verbatim: the shadow reflects the Guest's last
// write and the host clock should not silently override it.
func (d *Dispatcher) handleSysTimeGet(r Registers) {
	var fields [6]byte
	if d.timeShadowSet {
		fields = d.timeShadow
	} else {
		fields = bcdClock(d.now())
	}
	bufAddr := hi16(r.H, r.L)
	for i, b := range fields {
		d.mem.Store(bufAddr+uint16(i), b)
	}
	d.cpu.SetA(StatusOK)
}

// handleSysTimeSet installs a shadow clock value from six BCD fields at the
// buffer addressed by HL; subsequent FnSysTimeGet calls return this value
// instead of the live host clock.
func (d *Dispatcher) handleSysTimeSet(r Registers) {
	bufAddr := hi16(r.H, r.L)
	for i := range d.timeShadow {
		d.timeShadow[i] = d.mem.Fetch(bufAddr + uint16(i))
	}
	d.timeShadowSet = true
	d.cpu.SetA(StatusOK)
}

func (d *Dispatcher) now() time.Time {
	if d.clock != nil {
		return d.clock()
	}
	return time.Now()
}

// bcdClock packs a time.Time into six BCD fields: year-of-century, month,
// day, hour, minute, second, matching the conventional RTC layout RomWBW
// firmware expects from its time-get service.
func bcdClock(t time.Time) [6]byte {
	return [6]byte{
		toBCD(t.Year() % 100),
		toBCD(int(t.Month())),
		toBCD(t.Day()),
		toBCD(t.Hour()),
		toBCD(t.Minute()),
		toBCD(t.Second()),
	}
}

func toBCD(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}
