package hbios

import (
	"os"
	"path/filepath"
)

// dispatchSysInt handles FnSysInt (SYSINT), the host-integration multiplex
// point (§4.3, §9): subfunction travels in C, guest filename as a
// zero-terminated string at the address in DE, transfer buffer at HL, and
// the maximum transfer length in IX on entry. BC cannot carry the length as
// the original register convention suggests, since B and C are already
// spent selecting SYSINT itself and its subfunction by the time a handler
// runs; IX is free on every SYSINT call, so the length travels there
// instead, with zero meaning "no bound" for INTGET/INTGETB.
//
// SYSINT is not an HBIOS boot-time service; it exists purely so guest code
// running under this emulator can reach host files, mirroring the file I/O
// interception a ROM-emulator layer performs for tape/disk images, adapted
// here to a plain host directory instead of a tape/FDD image store.
func (d *Dispatcher) dispatchSysInt(regs Registers) Waiting {
	switch regs.C {
	case SubIntInfo:
		d.handleIntInfo()
	case SubIntGet:
		d.handleIntTransfer(regs, true, false)
	case SubIntPut:
		d.handleIntTransfer(regs, false, false)
	case SubIntGetB:
		d.handleIntTransfer(regs, true, true)
	case SubIntPutB:
		d.handleIntTransfer(regs, false, true)
	default:
		d.cpu.SetA(StatusUnknownFunc)
		d.logf("unknown SYSINT subfunction %#02x", regs.C)
	}
	d.advance()
	return Waiting{}
}

// handleIntInfo reports emulator identity to INTINF callers: A carries a
// status of zero, B the packed version byte, C a capability bit field
// (bit 0 set: host file transfer is available).
func (d *Dispatcher) handleIntInfo() {
	regs := d.cpu.Registers()
	regs.A = StatusOK
	regs.B = packedVersion()
	regs.C = 0x01
	d.cpu.SetRegisters(regs)
}

// guestString reads a zero-terminated string out of guest memory starting
// at addr, capped at 255 bytes to bound a malformed guest request.
func (d *Dispatcher) guestString(addr uint16) string {
	buf := make([]byte, 0, 32)
	for i := 0; i < 255; i++ {
		b := d.mem.Fetch(addr + uint16(i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}

// handleIntTransfer services INTGET/INTPUT and their binary-safe
// counterparts. isGet true means host-to-guest (file read into guest
// memory). Gets behave the same in text and binary mode: the whole file is
// copied, truncated to the IX length when IX is nonzero. On a put, binary
// mode writes exactly IX bytes, while text mode writes the bytes before the
// first zero byte, at most IX (or 65535 when IX is zero). No CR/LF
// translation is done in either mode.
func (d *Dispatcher) handleIntTransfer(regs Registers, isGet bool, binary bool) {
	name := d.guestString(hi16(regs.D, regs.E))
	if name == "" {
		d.cpu.SetA(StatusInvalidArg)
		return
	}
	path := filepath.Join(d.hostDir, filepath.Base(name))
	bufAddr := hi16(regs.H, regs.L)
	maxLength := int(regs.IX)

	if isGet {
		data, err := os.ReadFile(path)
		if err != nil {
			d.cpu.SetA(StatusHostIOError)
			d.logf("sysint get %s: %v", path, err)
			return
		}
		if maxLength > 0 && len(data) > maxLength {
			data = data[:maxLength]
		}
		for i, b := range data {
			d.mem.Store(bufAddr+uint16(i), b)
		}
		out := d.cpu.Registers()
		out.A = StatusOK
		out.H = byte(len(data) >> 8)
		out.L = byte(len(data))
		d.cpu.SetRegisters(out)
		return
	}

	length := maxLength
	if !binary {
		limit := maxLength
		if limit <= 0 || limit > 65535 {
			limit = 65535
		}
		length = 0
		for length < limit && d.mem.Fetch(bufAddr+uint16(length)) != 0 {
			length++
		}
	}
	data := make([]byte, length)
	for i := range data {
		data[i] = d.mem.Fetch(bufAddr + uint16(i))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		d.cpu.SetA(StatusHostIOError)
		d.logf("sysint put %s: %v", path, err)
		return
	}
	out := d.cpu.Registers()
	out.A = StatusOK
	out.H = byte(length >> 8)
	out.L = byte(length)
	d.cpu.SetRegisters(out)
}
