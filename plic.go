package rvemu

// PLIC register layout (offsets relative to plicBase), the minimal
// subset xv6 exercises per spec.md's Open Question (c): one priority
// word per source, one pending bitmap, one enable bitmap per context,
// and a claim/complete register per context. Full priority-threshold
// semantics are out of scope.
const (
	plicPriorityBase = 0x0000 // priority[source], 4 bytes each, source 0 unused
	plicPendingBase  = 0x1000 // pending bitmap, 1 bit per source
	plicEnableBase   = 0x2000 // enable bitmap per context, 0x80 bytes apart
	plicEnableStride = 0x80
	plicContextBase  = 0x20_0000 // per-context {threshold, claim/complete}
	plicContextSize  = 0x1000

	numPlicSources = 32
	numPlicCtx     = 2 // context 0 = M-mode, context 1 = S-mode, per hart
)

// Plic is a minimal Platform-Level Interrupt Controller: sources raise
// a pending bit, a context's enable bitmap gates which sources can be
// claimed from it, and claim/complete is a write-then-read register
// pair per context, per spec.md §4.5.
type Plic struct {
	priority [numPlicSources]uint32
	pending  [numPlicSources]bool
	enable   [numPlicCtx]uint32
	claimed  [numPlicCtx]uint32 // currently claimed, unacknowledged source (0 = none)

	sources [numPlicSources]func() bool

	meip bool
	seip bool
}

func newPlic() *Plic {
	return &Plic{}
}

// setSource registers a device's level-triggered interrupt line query
// at the given source id.
func (p *Plic) setSource(id uint32, asserted func() bool) {
	p.sources[id] = asserted
}

// Tick samples every registered source, raises pending bits, and
// recomputes the M/S external interrupt lines from enable masks.
func (p *Plic) Tick() {
	for id, fn := range p.sources {
		if fn != nil && fn() {
			p.pending[id] = true
		}
	}

	p.meip = p.contextHasPending(0)
	p.seip = p.contextHasPending(1)
}

func (p *Plic) contextHasPending(ctx int) bool {
	for id := 1; id < numPlicSources; id++ {
		if !p.pending[id] || p.priority[id] == 0 {
			continue
		}
		if p.enable[ctx]&(1<<uint(id)) != 0 {
			return true
		}
	}
	return false
}

// MEIPending reports the machine-mode external interrupt line.
func (p *Plic) MEIPending() bool { return p.meip }

// SEIPending reports the supervisor-mode external interrupt line.
func (p *Plic) SEIPending() bool { return p.seip }

// claim returns and clears the highest-priority pending+enabled source
// for ctx, per the write-then-read claim protocol.
func (p *Plic) claim(ctx int) uint32 {
	best := uint32(0)
	bestPrio := uint32(0)
	for id := 1; id < numPlicSources; id++ {
		if !p.pending[id] || p.enable[ctx]&(1<<uint(id)) == 0 {
			continue
		}
		if p.priority[id] > bestPrio {
			best = uint32(id)
			bestPrio = p.priority[id]
		}
	}
	if best != 0 {
		p.pending[best] = false
		p.claimed[ctx] = best
	}
	return best
}

// complete re-arms the given source for ctx, permitting it to be
// claimed again on a future assertion.
func (p *Plic) complete(ctx int, id uint32) {
	if p.claimed[ctx] == id {
		p.claimed[ctx] = 0
	}
}

func (p *Plic) Load(addr uint64, width Width) (uint64, error) {
	off := addr - plicBase
	switch {
	case off >= plicPriorityBase && off < plicPriorityBase+numPlicSources*4 && width == Word:
		id := (off - plicPriorityBase) / 4
		return uint64(p.priority[id]), nil
	case off >= plicPendingBase && off < plicPendingBase+4 && width == Word:
		var v uint32
		for id := 0; id < numPlicSources; id++ {
			if p.pending[id] {
				v |= 1 << uint(id)
			}
		}
		return uint64(v), nil
	case off >= plicEnableBase && off < plicEnableBase+numPlicCtx*plicEnableStride && width == Word:
		ctx := (off - plicEnableBase) / plicEnableStride
		return uint64(p.enable[ctx]), nil
	case off >= plicContextBase && width == Word:
		ctx, reg := plicContextDecode(off)
		if reg == 4 { // claim/complete register offset
			return uint64(p.claim(ctx)), nil
		}
		return 0, nil // threshold register, unused
	default:
		return 0, &BusError{Kind: AccessLoad, Addr: addr}
	}
}

func (p *Plic) Store(addr uint64, width Width, val uint64) error {
	off := addr - plicBase
	switch {
	case off >= plicPriorityBase && off < plicPriorityBase+numPlicSources*4 && width == Word:
		id := (off - plicPriorityBase) / 4
		p.priority[id] = uint32(val)
		return nil
	case off >= plicEnableBase && off < plicEnableBase+numPlicCtx*plicEnableStride && width == Word:
		ctx := (off - plicEnableBase) / plicEnableStride
		p.enable[ctx] = uint32(val)
		return nil
	case off >= plicContextBase && width == Word:
		ctx, reg := plicContextDecode(off)
		if reg == 4 {
			p.complete(ctx, uint32(val))
		}
		return nil
	default:
		return &BusError{Kind: AccessStore, Addr: addr}
	}
}

func plicContextDecode(off uint64) (ctx int, reg uint64) {
	rel := off - plicContextBase
	return int(rel / plicContextSize), rel % plicContextSize
}
