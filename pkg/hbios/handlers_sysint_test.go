package hbios

import (
	"os"
	"path/filepath"
	"testing"
)

// TestSysIntPutBUsesIXLengthNotBC regresses the register-aliasing bug where
// the transfer length was read from BC, which SYSINT's own dispatch
// convention has already spent on the function code and subfunction by the
// time the handler runs. With B == FnSysInt and C == SubIntPutB, a
// BC-derived length would always come out to 0xF804 regardless of what the
// guest actually asked for; the real bound must come from IX.
func TestSysIntPutBUsesIXLengthNotBC(t *testing.T) {
	d, cpu, mem, _, _, _ := newTestDispatcher()
	dir := t.TempDir()
	d.SetHostDir(dir)

	name := "OUT.BIN"
	nameAddr := uint16(0x9000)
	for i, b := range []byte(name) {
		mem.bytes[nameAddr+uint16(i)] = b
	}
	mem.bytes[nameAddr+uint16(len(name))] = 0

	bufAddr := uint16(0xA000)
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	for i, b := range payload {
		mem.bytes[bufAddr+uint16(i)] = b
	}

	cpu.regs.B = FnSysInt
	cpu.regs.C = SubIntPutB
	cpu.regs.D, cpu.regs.E = byte(nameAddr>>8), byte(nameAddr)
	cpu.regs.H, cpu.regs.L = byte(bufAddr>>8), byte(bufAddr)
	cpu.regs.IX = uint16(len(payload))

	d.Service(TrapPublic, true)

	if cpu.regs.A != StatusOK {
		t.Fatalf("A = %#02x, want StatusOK", cpu.regs.A)
	}
	got, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading transferred file: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("transferred %d bytes, want %d (IX length, not the stale BC-derived 0xF804)", len(got), len(payload))
	}
	for i, b := range payload {
		if got[i] != b {
			t.Fatalf("byte %d = %#02x, want %#02x", i, got[i], b)
		}
	}
}

// TestSysIntGetBTruncatesToIXLength confirms a get transfer never copies
// more than the guest's IX-specified maximum into guest memory, even when a
// larger file is present on the host side.
func TestSysIntGetBTruncatesToIXLength(t *testing.T) {
	d, cpu, mem, _, _, _ := newTestDispatcher()
	dir := t.TempDir()
	d.SetHostDir(dir)

	name := "IN.BIN"
	if err := os.WriteFile(filepath.Join(dir, name), []byte{9, 8, 7, 6, 5, 4, 3, 2, 1}, 0o644); err != nil {
		t.Fatalf("seeding host file: %v", err)
	}

	nameAddr := uint16(0x9000)
	for i, b := range []byte(name) {
		mem.bytes[nameAddr+uint16(i)] = b
	}
	mem.bytes[nameAddr+uint16(len(name))] = 0
	bufAddr := uint16(0xA000)

	cpu.regs.B = FnSysInt
	cpu.regs.C = SubIntGetB
	cpu.regs.D, cpu.regs.E = byte(nameAddr>>8), byte(nameAddr)
	cpu.regs.H, cpu.regs.L = byte(bufAddr>>8), byte(bufAddr)
	cpu.regs.IX = 3

	d.Service(TrapPublic, true)

	if cpu.regs.A != StatusOK {
		t.Fatalf("A = %#02x, want StatusOK", cpu.regs.A)
	}
	if got := hi16(cpu.regs.H, cpu.regs.L); got != 3 {
		t.Fatalf("HL (transferred length) = %d, want 3", got)
	}
	want := []byte{9, 8, 7}
	for i, b := range want {
		if mem.bytes[bufAddr+uint16(i)] != b {
			t.Fatalf("buffer byte %d = %#02x, want %#02x", i, mem.bytes[bufAddr+uint16(i)], b)
		}
	}
}

// TestSysIntInfoReportsCapability exercises INTINF, the one SYSINT
// subfunction with no host-directory dependency.
func TestSysIntInfoReportsCapability(t *testing.T) {
	d, cpu, _, _, _, _ := newTestDispatcher()
	cpu.regs.B = FnSysInt
	cpu.regs.C = SubIntInfo
	d.Service(TrapPublic, true)
	if cpu.regs.A != StatusOK {
		t.Fatalf("A = %#02x, want StatusOK", cpu.regs.A)
	}
	if cpu.regs.C&0x01 == 0 {
		t.Fatalf("C = %#02x, want bit 0 set (host file transfer available)", cpu.regs.C)
	}
}

// TestServicePortSysIntDoesNotAdvancePC confirms the port-dispatch path for
// SYSINT, like every other ServicePort call, never pops the Z80 stack.
func TestServicePortSysIntDoesNotAdvancePC(t *testing.T) {
	d, cpu, _, _, _, _ := newTestDispatcher()
	dir := t.TempDir()
	d.SetHostDir(dir)
	cpu.regs.B = FnSysInt
	cpu.regs.C = SubIntInfo
	cpu.pc = 0x5000
	d.ServicePort(true)
	if cpu.pc != 0x5000 {
		t.Fatalf("PC = %#04x, want unchanged 0x5000", cpu.pc)
	}
	if cpu.regs.A != StatusOK {
		t.Fatalf("A = %#02x, want StatusOK", cpu.regs.A)
	}
}
