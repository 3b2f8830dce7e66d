package hbios

// Function codes carried in register B at a trap. Real RomWBW firmware
// assigns its own byte values for these; the spec mandates only that
// SYSINT is multiplexed at 0xF8 (§4.3). The remaining byte values below
// are this implementation's internal convention, chosen to stay out of
// 0xF8's way and grouped by family for readability.
const (
	// Character I/O family.
	FnConsoleStatus byte = 0x00 // returns whether a byte is available
	FnConsoleInput  byte = 0x01 // returns a byte, or marks waiting
	FnConsoleOutput byte = 0x02 // writes a byte to the output buffer

	// Disk I/O family.
	FnDiskSelect   byte = 0x10 // unit select
	FnDiskSeek     byte = 0x11 // seek to slice/logical block
	FnDiskRead     byte = 0x12 // read sector
	FnDiskWrite    byte = 0x13 // write sector
	FnDiskGeometry byte = 0x14 // report unit capacity and geometry
	FnDiskStatus   byte = 0x15 // media status

	// System family.
	FnSysIdent    byte = 0x20 // identification: signature and version
	FnSysCPUInfo  byte = 0x21 // CPU type and speed
	FnSysBankJump byte = 0x22 // bank-switch primitive: select bank, jump to HL
	FnSysReset    byte = 0x23 // warm/cold reset
	FnSysTimeGet  byte = 0x24 // read host wall clock as BCD fields
	FnSysTimeSet  byte = 0x25 // write BCD fields to the in-memory clock shadow

	// Video family (optional; routed to console output when no display
	// adapter is modeled, per §4.3).
	FnVideoOutput byte = 0x30

	// Host integration, multiplexed by the subfunction in register C.
	FnSysInt byte = 0xF8
)

// SYSINT subfunction codes, selected by register C when B == FnSysInt.
const (
	SubIntInfo  byte = 0x00 // INTINF: emulator version and capability bits
	SubIntGet   byte = 0x01 // INTGET: copy host text file into guest memory
	SubIntPut   byte = 0x02 // INTPUT: copy guest memory into host text file
	SubIntGetB  byte = 0x03 // INTGETB: binary-safe INTGET
	SubIntPutB  byte = 0x04 // INTPUTB: binary-safe INTPUT
)

// Status codes written back to register A. Zero always means success; the
// taxonomy below groups the spec's error kinds (§7) into a single byte,
// consistent with "nonzero encoding a taxonomy-specific error code".
const (
	StatusOK          byte = 0x00
	StatusInvalidArg  byte = 0x01
	StatusNotReady    byte = 0x02
	StatusOutOfBounds byte = 0x03
	StatusHostIOError byte = 0x04
	StatusUnknownFunc byte = 0xFF
)

// ResetWarm and ResetCold are the two reset kinds a host reset callback
// receives, per §4.6: warm is exactly 0x01, cold is any other value.
const (
	ResetWarm byte = 0x01
	ResetCold byte = 0x00
)
