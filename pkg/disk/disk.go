// Package disk implements the virtual block device manager: per-unit image
// storage, format detection (single-slice vs multi-slice "combo"), seek
// state, and fixed-512-byte-sector read/write, as exposed to the HBIOS
// dispatcher's disk service codes. It also synthesizes the two memory-disk
// units (RAM-disk and ROM-disk) from the emulator's physical stores.
package disk

import "fmt"

// MaxUnits is the number of disk unit slots (0-15).
const MaxUnits = 16

// Geometry reports capacity/layout information for the HBIOS "report unit
// capacity and geometry" service. It is informational only per spec.
type Geometry struct {
	Format       Format
	Slices       int
	SectorCount  uint32
	SectorSize   int
	PrefixOffset int64
}

// unit holds the state of one disk endpoint.
type unit struct {
	loaded bool
	image  []byte
	format Format
	slices int
	slice  int   // current slice (combo format only)
	seek   int64 // logical block number within the current slice

	// memDisk marks a unit synthesized from physical RAM/ROM rather than
	// backed by a host file; Get/Load behave the same, but the backing
	// slice is a view of the memory subsystem's store.
	memDisk bool
}

// Manager owns up to MaxUnits disk units.
type Manager struct {
	units [MaxUnits]unit
}

// NewManager returns an empty disk manager with no units loaded.
func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) checkUnit(u int) error {
	if u < 0 || u >= MaxUnits {
		return fmt.Errorf("disk: unit %d out of range 0-%d", u, MaxUnits-1)
	}
	return nil
}

// Load attaches an image to a unit, runs format detection, and resets the
// seek cursor to zero.
func (m *Manager) Load(u int, data []byte) error {
	if err := m.checkUnit(u); err != nil {
		return err
	}
	format, slices := detect(data)
	m.units[u] = unit{
		loaded: true,
		image:  data,
		format: format,
		slices: slices,
	}
	return nil
}

// LoadMemoryDisk attaches a unit backed by a slice owned by the memory
// subsystem (RAM-disk or ROM-disk), bypassing format autodetection: these
// are always treated as single-slice images spanning the given region.
func (m *Manager) LoadMemoryDisk(u int, backing []byte) error {
	if err := m.checkUnit(u); err != nil {
		return err
	}
	m.units[u] = unit{
		loaded:  true,
		image:   backing,
		format:  FormatSingle,
		slices:  1,
		memDisk: true,
	}
	return nil
}

// Unload detaches a unit's image.
func (m *Manager) Unload(u int) error {
	if err := m.checkUnit(u); err != nil {
		return err
	}
	m.units[u] = unit{}
	return nil
}

// Get returns a reference to a unit's backing image, for host-side saving.
// It returns nil if the unit is not loaded.
func (m *Manager) Get(u int) []byte {
	if err := m.checkUnit(u); err != nil {
		return nil
	}
	if !m.units[u].loaded {
		return nil
	}
	return m.units[u].image
}

// IsLoaded reports whether a unit has an attached image.
func (m *Manager) IsLoaded(u int) bool {
	if err := m.checkUnit(u); err != nil {
		return false
	}
	return m.units[u].loaded
}

// Geometry reports the format, slice count, and (for combo images) prefix
// offset of a loaded unit.
func (m *Manager) Geometry(u int) (Geometry, error) {
	if err := m.checkUnit(u); err != nil {
		return Geometry{}, err
	}
	un := &m.units[u]
	if !un.loaded {
		return Geometry{}, fmt.Errorf("disk: unit %d not loaded", u)
	}
	g := Geometry{Format: un.format, Slices: un.slices, SectorSize: SectorSize}
	switch un.format {
	case FormatSingle:
		g.SectorCount = uint32(len(un.image) / SectorSize)
	case FormatCombo:
		g.PrefixOffset = ComboPrefixSize
		g.SectorCount = uint32(ComboSliceSize / SectorSize)
	}
	return g, nil
}

// Seek positions a unit's cursor at the given slice and logical block
// number. For single-format images slice must be 0. The byte offset for a
// combo image is ComboPrefixSize + slice*ComboSliceSize + lba*SectorSize.
func (m *Manager) Seek(u int, slice int, lba int64) error {
	if err := m.checkUnit(u); err != nil {
		return err
	}
	un := &m.units[u]
	if !un.loaded {
		return fmt.Errorf("disk: unit %d not loaded", u)
	}
	switch un.format {
	case FormatSingle:
		if slice != 0 {
			return fmt.Errorf("disk: unit %d is single-slice, slice %d invalid", u, slice)
		}
		if lba < 0 || (lba+1)*SectorSize > int64(len(un.image)) {
			return fmt.Errorf("disk: unit %d seek to lba %d out of bounds", u, lba)
		}
		un.seek = lba
	case FormatCombo:
		if slice < 0 || slice >= un.slices {
			return fmt.Errorf("disk: unit %d slice %d out of range (have %d)", u, slice, un.slices)
		}
		if lba < 0 || (lba+1)*SectorSize > ComboSliceSize {
			return fmt.Errorf("disk: unit %d seek to lba %d out of bounds for slice", u, lba)
		}
		un.slice = slice
		un.seek = lba
	default:
		return fmt.Errorf("disk: unit %d has unrecognized format", u)
	}
	return nil
}

// offset resolves a unit's current seek cursor to a byte offset within the
// backing image.
func (un *unit) offset() int64 {
	switch un.format {
	case FormatSingle:
		return un.seek * SectorSize
	case FormatCombo:
		return ComboPrefixSize + int64(un.slice)*ComboSliceSize + un.seek*SectorSize
	default:
		return 0
	}
}

// Read copies one sector (SectorSize bytes) from the unit's current seek
// position into buf and advances the cursor by one sector on success.
func (m *Manager) Read(u int, buf []byte) error {
	if err := m.checkUnit(u); err != nil {
		return err
	}
	un := &m.units[u]
	if !un.loaded {
		return fmt.Errorf("disk: unit %d not loaded", u)
	}
	if len(buf) < SectorSize {
		return fmt.Errorf("disk: read buffer too small (%d < %d)", len(buf), SectorSize)
	}
	off := un.offset()
	if off < 0 || off+SectorSize > int64(len(un.image)) {
		return fmt.Errorf("disk: unit %d read at offset %d out of bounds", u, off)
	}
	copy(buf[:SectorSize], un.image[off:off+SectorSize])
	un.seek++
	return nil
}

// Write copies one sector from buf into the unit's current seek position
// and advances the cursor by one sector on success. It mutates the
// in-memory image only; the host drives any export back to storage.
func (m *Manager) Write(u int, buf []byte) error {
	if err := m.checkUnit(u); err != nil {
		return err
	}
	un := &m.units[u]
	if !un.loaded {
		return fmt.Errorf("disk: unit %d not loaded", u)
	}
	if len(buf) < SectorSize {
		return fmt.Errorf("disk: write buffer too small (%d < %d)", len(buf), SectorSize)
	}
	off := un.offset()
	if off < 0 || off+SectorSize > int64(len(un.image)) {
		return fmt.Errorf("disk: unit %d write at offset %d out of bounds", u, off)
	}
	copy(un.image[off:off+SectorSize], buf[:SectorSize])
	un.seek++
	return nil
}

// SeekCursor returns the raw seek counter, the logical block number within
// the current slice (for tests verifying advance-by-one semantics). For
// combo images the current slice is kept separately and is not part of
// this value.
func (m *Manager) SeekCursor(u int) int64 {
	if err := m.checkUnit(u); err != nil {
		return -1
	}
	return m.units[u].seek
}

// PopulatedUnits returns the indices of all currently loaded units, in
// ascending order, for the dispatcher's disk-unit table population.
func (m *Manager) PopulatedUnits() []int {
	var out []int
	for i := range m.units {
		if m.units[i].loaded {
			out = append(out, i)
		}
	}
	return out
}
