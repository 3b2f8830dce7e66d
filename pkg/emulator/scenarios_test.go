package emulator

import (
	"bytes"
	"testing"

	"github.com/hjkit/romwbw-emu/pkg/disk"
)

// buildSyntheticROM assembles a tiny Z80 program exercising the HBIOS
// console-output and console-input services, used in place of a real
// RomWBW binary (not available as a test fixture). It prints "Boot\r\n",
// waits for one input byte, and if that byte is '2' prints a CP/M-style
// "\r\nA>" banner before halting; any other byte re-prompts. The substring
// checks in scenario 1/2 below are satisfied against this banner text, not
// an actual RomWBW boot menu.
func buildSyntheticROM() []byte {
	rom := make([]byte, 0, 0x50)

	// 0x0000: LD HL, msgBoot (0x0030)
	rom = append(rom, 0x21, 0x30, 0x00)
	// 0x0003: printLoop: LD A,(HL)
	rom = append(rom, 0x7E)
	// 0x0004: OR A
	rom = append(rom, 0xB7)
	// 0x0005: JR Z, afterPrint (0x000F)
	rom = append(rom, 0x28, 0x08)
	// 0x0007: LD B, 0x02 (FnConsoleOutput)
	rom = append(rom, 0x06, 0x02)
	// 0x0009: CALL 0xFFF0
	rom = append(rom, 0xCD, 0xF0, 0xFF)
	// 0x000C: INC HL
	rom = append(rom, 0x23)
	// 0x000D: JR printLoop (-12)
	rom = append(rom, 0x18, 0xF4)
	// 0x000F: afterPrint: LD B, 0x01 (FnConsoleInput)
	rom = append(rom, 0x06, 0x01)
	// 0x0011: CALL 0xFFF0
	rom = append(rom, 0xCD, 0xF0, 0xFF)
	// 0x0014: CP 0x32 ('2')
	rom = append(rom, 0xFE, 0x32)
	// 0x0016: JR NZ, afterPrint (-9)
	rom = append(rom, 0x20, 0xF7)
	// 0x0018: LD HL, cpmBanner (0x0040)
	rom = append(rom, 0x21, 0x40, 0x00)
	// 0x001B: printLoop2: LD A,(HL)
	rom = append(rom, 0x7E)
	// 0x001C: OR A
	rom = append(rom, 0xB7)
	// 0x001D: JR Z, afterPrint2 (0x0027)
	rom = append(rom, 0x28, 0x08)
	// 0x001F: LD B, 0x02
	rom = append(rom, 0x06, 0x02)
	// 0x0021: CALL 0xFFF0
	rom = append(rom, 0xCD, 0xF0, 0xFF)
	// 0x0024: INC HL
	rom = append(rom, 0x23)
	// 0x0025: JR printLoop2 (-12)
	rom = append(rom, 0x18, 0xF4)
	// 0x0027: afterPrint2: HALT
	rom = append(rom, 0x76)

	for len(rom) < 0x30 {
		rom = append(rom, 0x00)
	}
	rom = append(rom, []byte("Boot\r\n\x00")...) // 0x0030
	for len(rom) < 0x40 {
		rom = append(rom, 0x00)
	}
	rom = append(rom, []byte("\r\nA>\x00")...) // 0x0040

	// LoadROM rejects images shorter than the 512-byte boot header.
	for len(rom) < 512 {
		rom = append(rom, 0x00)
	}

	return rom
}

func newScenarioEmulator(t *testing.T) *Emulator {
	t.Helper()
	e := New(Config{BlockingAllowed: false})
	if err := e.LoadROM(buildSyntheticROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	return e
}

// runUntil drives batches until pred is satisfied or the iteration cap is
// hit, failing the test in the latter case.
func runUntil(t *testing.T, e *Emulator, pred func() bool) {
	t.Helper()
	for i := 0; i < 10_000; i++ {
		if pred() {
			return
		}
		if _, err := e.RunBatch(1000); err != nil {
			t.Fatalf("RunBatch: %v", err)
		}
	}
	t.Fatalf("condition not satisfied after bounded batches")
}

func TestScenarioColdBootToMenu(t *testing.T) {
	e := newScenarioEmulator(t)
	runUntil(t, e, func() bool {
		return bytes.Contains(e.PeekOutput(), []byte("Boot"))
	})
}

func TestScenarioBootDisk0(t *testing.T) {
	e := newScenarioEmulator(t)
	runUntil(t, e, func() bool {
		return bytes.Contains(e.PeekOutput(), []byte("Boot"))
	})
	e.QueueChar('2')
	e.QueueChar('\r')
	runUntil(t, e, func() bool {
		out := e.PeekOutput()
		return bytes.Contains(out, []byte("A")) && bytes.Contains(out, []byte(">"))
	})
}

func TestScenarioSingleSliceDetection(t *testing.T) {
	e := New(Config{})
	data := make([]byte, disk.SingleImageSize)
	if err := e.LoadDisk(0, data); err != nil {
		t.Fatal(err)
	}
	g, err := e.disks.Geometry(0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Format != disk.FormatSingle {
		t.Fatalf("format = %v, want FormatSingle", g.Format)
	}
	if g.SectorCount != disk.SingleImageSize/disk.SectorSize {
		t.Fatalf("sector count = %d, want %d", g.SectorCount, disk.SingleImageSize/disk.SectorSize)
	}
}

func TestScenarioComboDetection(t *testing.T) {
	e := New(Config{})
	mbr := make([]byte, disk.ComboPrefixSize)
	mbr[510] = 0x55
	mbr[511] = 0xAA
	mbr[0x1BE+4] = 0x2E // RomWBW slice partition type
	data := append(mbr, make([]byte, disk.ComboSliceSize)...)
	data[disk.ComboPrefixSize] = 0x42
	if err := e.LoadDisk(1, data); err != nil {
		t.Fatal(err)
	}
	g, err := e.disks.Geometry(1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Format != disk.FormatCombo {
		t.Fatalf("format = %v, want FormatCombo", g.Format)
	}
	if g.PrefixOffset != disk.ComboPrefixSize {
		t.Fatalf("prefix offset = %d, want %d", g.PrefixOffset, disk.ComboPrefixSize)
	}
	if err := e.disks.Seek(1, 0, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, disk.SectorSize)
	if err := e.disks.Read(1, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x42 {
		t.Fatalf("first byte of slice 0 = %#02x, want 0x42", buf[0])
	}
}

func TestScenarioWarmResetReentry(t *testing.T) {
	e := newScenarioEmulator(t)
	runUntil(t, e, func() bool {
		return bytes.Contains(e.PeekOutput(), []byte("Boot"))
	})
	e.QueueChar('2')
	e.QueueChar('\r')
	runUntil(t, e, func() bool {
		out := e.PeekOutput()
		return bytes.Contains(out, []byte("A")) && bytes.Contains(out, []byte(">"))
	})
	if !e.Halted() {
		t.Fatal("expected synthetic program to reach HALT after printing the banner")
	}

	e.Reset()
	if e.core.PC() != 0x0000 {
		t.Fatalf("PC after reset = %#04x, want 0x0000", e.core.PC())
	}
	if e.mem.CurrentBank() != 0 {
		t.Fatalf("bank-select after reset = %#02x, want 0", e.mem.CurrentBank())
	}
	if e.Halted() {
		t.Fatal("halted flag should be cleared by Reset")
	}

	e.DrainOutput()
	runUntil(t, e, func() bool {
		return bytes.Contains(e.PeekOutput(), []byte("Boot"))
	})
}

func TestScenarioWriteThroughCommon(t *testing.T) {
	e := New(Config{})
	e.mem.EnableBanking()
	e.mem.Store(0xFF10, 0xA5)
	e.mem.SelectBank(0x03)
	if got := e.mem.Fetch(0xFF10); got != 0xA5 {
		t.Fatalf("common fetch after bank change = %#02x, want 0xA5", got)
	}
}
