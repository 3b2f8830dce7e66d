package hbios

import "github.com/hjkit/romwbw-emu/pkg/version"

// HCBSize is the size in bytes of the HBIOS Control Block, a structure
// residing at the start of RAM bank 15 (the common region's low offset).
const HCBSize = 512

// hcbAPITypeOffset is the offset of the API-type marker byte within both
// the ROM header and the HCB. The loader forces this byte to apiTypeHBIOS
// regardless of the file's original content.
const hcbAPITypeOffset = 0x112

// apiTypeHBIOS is the API-type value identifying the HBIOS service ABI.
// The real RomWBW firmware header encodes several possible ABI types; the
// exact byte value is an emulator-internal convention here since the spec
// only requires that the loader force a single, known value (§3, §6).
const apiTypeHBIOS = 0x48 // ASCII 'H', for HBIOS

// hcbUnitTableOffset marks a 16-byte block inside the HCB, one byte per
// disk unit (0-15), nonzero meaning populated. RomWBW's boot loader
// discovery routine scans this table to build its boot menu. The exact
// in-HCB offset is an implementation choice (the spec requires only that
// "a well-known block inside the HCB" exist); 0x0130 sits safely inside a
// firmware-reserved config region away from the identification stamp.
const hcbUnitTableOffset = 0x0130

// hcbMemDiskConfigOffset holds two configuration bytes, in order: the
// number of 32 KiB pages to dedicate to MD0 (RAM-disk) from the top of the
// physical RAM store, and the number of 32 KiB pages to dedicate to MD1
// (ROM-disk) from the top of the physical ROM store. Zero means "do not
// synthesize this unit". This mirrors the spec's "configuration bytes
// taken from the loaded HCB" without committing to RomWBW's full config
// block layout, which original_source does not supply.
const hcbMemDiskConfigOffset = 0x0140

// identSignature, identComplement and identAddrs implement §3's
// identification block: a three-byte stamp (signature, its bitwise
// complement, a packed version byte) placed at two common-region
// addresses, with a little-endian pointer to the stamp placed at 0xFFFC.
const (
	identSignature  = 0x57 // 'W'
	identComplement = 0xA8 // ^0x57
)

var identAddrs = [2]uint16{0xFE00, 0xFF00}

const identPointerAddr = 0xFFFC

func packedVersion() byte {
	return version.Packed()
}

// installIdent writes the identification stamp and pointer into the
// common region. It is idempotent: calling it twice leaves the region
// bit-identical to a single call.
func installIdent(common []byte) {
	stamp := [3]byte{identSignature, identComplement, packedVersion()}
	for _, addr := range identAddrs {
		off := int(addr) - lowHalf
		copy(common[off:off+3], stamp[:])
	}
	ptrOff := identPointerAddr - lowHalf
	common[ptrOff] = byte(identAddrs[0])
	common[ptrOff+1] = byte(identAddrs[0] >> 8)
}

// lowHalf mirrors pkg/memory.LowHalf without importing pkg/memory
// for this one constant, since Common() slices are already offset from
// 0x8000 by the memory package itself; kept local to avoid an import
// cycle risk between hbios and memory as the dispatcher grows.
const lowHalf = 0x8000

// buildHCB renders a 512-byte HCB from a ROM image's first 512 bytes (the
// HCB template, per §3/§6), patching the API-type marker.
func buildHCB(romHeader []byte) [HCBSize]byte {
	var hcb [HCBSize]byte
	copy(hcb[:], romHeader)
	hcb[hcbAPITypeOffset] = apiTypeHBIOS
	return hcb
}

// InstallBootImage renders the HCB from romHeader and writes it, along with
// the identification stamp, into common (a view of the fixed common
// region). The loader calls this once immediately after LoadROM (§3, §6).
func (d *Dispatcher) InstallBootImage(common []byte, romHeader []byte) {
	hcb := buildHCB(romHeader)
	copy(common[:HCBSize], hcb[:])
	installIdent(common)
}

// RefreshUnitTable rewrites the HCB's disk-unit table to mark exactly the
// given units populated, for the boot loader's device discovery scan.
func (d *Dispatcher) RefreshUnitTable(common []byte, populated []int) {
	table := common[hcbUnitTableOffset : hcbUnitTableOffset+16]
	for i := range table {
		table[i] = 0
	}
	for _, u := range populated {
		if u >= 0 && u < 16 {
			table[u] = 1
		}
	}
}

// MemDiskConfig reads the two memory-disk page-count bytes installed by
// InstallBootImage: ramPages for MD0 (taken from the top of the physical
// RAM store) and romPages for MD1 (taken from the top of the physical ROM
// store). Zero in either means the loader should not synthesize that unit.
func (d *Dispatcher) MemDiskConfig(common []byte) (ramPages, romPages byte) {
	return common[hcbMemDiskConfigOffset], common[hcbMemDiskConfigOffset+1]
}
