package hbios

// Register convention for the disk-I/O family (§4.3): unit number travels
// in C unless it is 0xFF, meaning "use the unit most recently selected by
// FnDiskSelect"; slice travels in D; a 16-bit logical block number travels
// in HL; the sector buffer address (for read/write) also travels in HL,
// since seek and read/write are always issued as separate calls against
// the unit's persistent seek cursor (§4.4).
const selectedUnitMarker = 0xFF

func hi16(h, l byte) uint16 { return uint16(h)<<8 | uint16(l) }

func (d *Dispatcher) resolveUnit(c byte) (int, bool) {
	if c == selectedUnitMarker {
		if d.selectedUnit < 0 {
			return 0, false
		}
		return d.selectedUnit, true
	}
	return int(c), true
}

func (d *Dispatcher) handleDiskSelect(r Registers) {
	unit := int(r.C)
	if unit < 0 || unit > 15 {
		d.cpu.SetA(StatusInvalidArg)
		return
	}
	d.selectedUnit = unit
	d.cpu.SetA(StatusOK)
}

func (d *Dispatcher) handleDiskSeek(r Registers) {
	unit, ok := d.resolveUnit(r.C)
	if !ok {
		d.cpu.SetA(StatusInvalidArg)
		return
	}
	slice := int(r.D)
	lba := int64(hi16(r.H, r.L))
	if err := d.disks.Seek(unit, slice, lba); err != nil {
		d.cpu.SetA(StatusOutOfBounds)
		d.logf("seek unit %d slice %d lba %d: %v", unit, slice, lba, err)
		return
	}
	d.cpu.SetA(StatusOK)
}

func (d *Dispatcher) handleDiskReadWrite(r Registers, isRead bool) {
	unit, ok := d.resolveUnit(r.C)
	if !ok {
		d.cpu.SetA(StatusInvalidArg)
		return
	}
	if !d.disks.IsLoaded(unit) {
		d.cpu.SetA(StatusNotReady)
		return
	}
	bufAddr := hi16(r.H, r.L)
	buf := make([]byte, 512)

	if isRead {
		if err := d.disks.Read(unit, buf); err != nil {
			d.cpu.SetA(StatusOutOfBounds)
			d.logf("read unit %d: %v", unit, err)
			return
		}
		for i, b := range buf {
			d.mem.Store(bufAddr+uint16(i), b)
		}
		d.cpu.SetA(StatusOK)
		return
	}

	for i := range buf {
		buf[i] = d.mem.Fetch(bufAddr + uint16(i))
	}
	if err := d.disks.Write(unit, buf); err != nil {
		d.cpu.SetA(StatusOutOfBounds)
		d.logf("write unit %d: %v", unit, err)
		return
	}
	d.cpu.SetA(StatusOK)
}

func (d *Dispatcher) handleDiskGeometry(r Registers) {
	unit, ok := d.resolveUnit(r.C)
	if !ok {
		d.cpu.SetA(StatusInvalidArg)
		return
	}
	g, err := d.disks.Geometry(unit)
	if err != nil {
		d.cpu.SetA(StatusNotReady)
		return
	}
	regs := d.cpu.Registers()
	regs.A = StatusOK
	regs.B = byte(g.Format)
	regs.C = byte(g.Slices)
	regs.H = byte(g.SectorCount >> 8)
	regs.L = byte(g.SectorCount)
	d.cpu.SetRegisters(regs)
}

func (d *Dispatcher) handleDiskStatus(r Registers) {
	unit, ok := d.resolveUnit(r.C)
	if !ok {
		d.cpu.SetA(StatusInvalidArg)
		return
	}
	if !d.disks.IsLoaded(unit) {
		d.cpu.SetA(StatusNotReady)
		return
	}
	d.cpu.SetA(StatusOK)
}
