// Package memory implements the banked memory subsystem: a 1 MiB physical
// store (512 KiB ROM + 512 KiB RAM) projected into the Z80's 16-bit address
// space through a bank-select register, with a fixed common region.
package memory

const (
	// StoreSize is the size in bytes of each physical store (ROM and RAM).
	StoreSize = 512 * 1024

	// BankSize is the size in bytes of one 32 KiB bank.
	BankSize = 32 * 1024

	// BankCount is the number of banks per store.
	BankCount = StoreSize / BankSize

	// LowHalf is the top of the low (banked) half of the Z80 address space.
	LowHalf = 0x8000

	// commonBank is the fixed RAM bank mapped into the high half.
	commonBank = 15

	// selectRAMBit marks the high bit of the bank-select register: when
	// set, the low half projects from RAM; when clear, from ROM.
	selectRAMBit = 0x80

	// selectBankMask isolates the bank index in the low four bits.
	selectBankMask = 0x0F
)

// Banked is the 1 MiB physical store plus the bank-select register that
// projects it into the Z80's 64 KiB address space.
type Banked struct {
	rom [StoreSize]byte
	ram [StoreSize]byte

	selectReg byte
	enabled   bool
}

// New returns a Banked memory with bank-select cleared (ROM bank 0) and
// banking disarmed; call EnableBanking once ROM/RAM are loaded.
func New() *Banked {
	return &Banked{}
}

// GetROM returns a writable view of the physical ROM store, for use by
// loaders and the identification-block installer.
func (m *Banked) GetROM() []byte { return m.rom[:] }

// GetRAM returns a writable view of the physical RAM store.
func (m *Banked) GetRAM() []byte { return m.ram[:] }

// EnableBanking arms the address-space projection. Before this call Fetch
// reads 0xFF and Store is a no-op everywhere, so a core reset or stray
// access before a ROM is loaded cannot read or corrupt the zero-valued
// stores; New leaves banking disarmed for exactly that reason.
func (m *Banked) EnableBanking() { m.enabled = true }

// SelectBank sets the bank-select register. Only the low four bits select a
// bank index (0-15); the high bit selects RAM (1) or ROM (0). Selecting the
// same value twice is idempotent.
func (m *Banked) SelectBank(value byte) {
	m.selectReg = value
}

// CurrentBank returns the raw bank-select register value, as read through
// the firmware's bank-select I/O port.
func (m *Banked) CurrentBank() byte { return m.selectReg }

// bankIndex returns the 0-15 bank index currently selected for the low
// half, irrespective of ROM/RAM selection.
func (m *Banked) bankIndex() int {
	return int(m.selectReg & selectBankMask)
}

// usesRAM reports whether the low half currently projects from RAM.
func (m *Banked) usesRAM() bool {
	return m.selectReg&selectRAMBit != 0
}

// project resolves a Z80 address to a physical store and offset. The high
// half always resolves to RAM bank 15 (the common region) regardless of
// bank-select.
func (m *Banked) project(addr uint16) (store []byte, offset int) {
	if addr >= LowHalf {
		return m.ram[:], commonBank*BankSize + int(addr-LowHalf)
	}
	if m.usesRAM() {
		return m.ram[:], m.bankIndex()*BankSize + int(addr)
	}
	return m.rom[:], m.bankIndex()*BankSize + int(addr)
}

// Fetch returns the byte at the given Z80 address under the current bank
// projection, or 0xFF if banking has not yet been armed by EnableBanking.
func (m *Banked) Fetch(addr uint16) byte {
	if !m.enabled {
		return 0xFF
	}
	store, offset := m.project(addr)
	return store[offset]
}

// Store writes a byte at the given Z80 address, unless the target
// projection is ROM-backed (silently discarded) or banking has not yet
// been armed by EnableBanking (also silently discarded).
func (m *Banked) Store(addr uint16, value byte) {
	if !m.enabled {
		return
	}
	if addr < LowHalf && !m.usesRAM() {
		return
	}
	store, offset := m.project(addr)
	store[offset] = value
}

// LoadROM copies data into the physical ROM store starting at offset 0,
// zero-padding if data is smaller than StoreSize and truncating if larger.
func (m *Banked) LoadROM(data []byte) {
	loadStore(m.rom[:], data)
}

// LoadRAM copies data into the physical RAM store starting at offset 0,
// zero-padding or truncating as LoadROM does.
func (m *Banked) LoadRAM(data []byte) {
	loadStore(m.ram[:], data)
}

func loadStore(store []byte, data []byte) {
	for i := range store {
		store[i] = 0
	}
	n := copy(store, data)
	_ = n
}

// Common returns a slice view of the fixed common region (RAM bank 15),
// addressable as Z80 addresses 0x8000-0xFFFF at offset 0.
func (m *Banked) Common() []byte {
	return m.ram[commonBank*BankSize : (commonBank+1)*BankSize]
}
