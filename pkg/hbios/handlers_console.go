package hbios

// handleConsoleInput services FnConsoleInput. In a non-blocking deployment
// (blockingAllowed == false) with no byte available, it raises
// Waiting.Pending instead of returning an error: the dispatcher leaves PC
// unchanged so the same trap re-fires on the next batch, which is how
// resumption works without preserving any handler mid-state (§9).
//
// In a blocking-allowed deployment, it spins until a byte arrives; the
// driver itself remains single-threaded throughout (§5).
func (d *Dispatcher) handleConsoleInput(blockingAllowed bool) Waiting {
	b, ok := d.console.ReadChar()
	if ok {
		d.cpu.SetA(b)
		return Waiting{}
	}
	if !blockingAllowed {
		return Waiting{Pending: true}
	}
	for {
		if b, ok := d.console.ReadChar(); ok {
			d.cpu.SetA(b)
			return Waiting{}
		}
	}
}
