package rvemu

// execAtomic implements RV64A: load-reserved/store-conditional and the
// read-modify-write AMO forms. This hart never runs more than one, so
// the "reservation" is a single address/validity pair rather than a
// real cache-coherence protocol, per DESIGN.md's Open Question decision.
func (h *Hart) execAtomic(d decoded) *Trap {
	width := Word
	if isDoubleAtomic(d.op) {
		width = Double
	}

	addr := h.reg(d.rs1)

	switch d.op {
	case opLRW, opLRD:
		pa, tr := h.translate(addr, AccessTypeLoad)
		if tr != nil {
			return tr
		}
		v, err := h.bus.Load(pa, width)
		if err != nil {
			return &Trap{Cause: ExcLoadAccessFault, Tval: addr}
		}
		h.reservationValid = true
		h.reservationAddr = addr
		h.setReg(d.rd, signExtendAtomic(d.op, v))
		return nil

	case opSCW, opSCD:
		pa, tr := h.translate(addr, AccessTypeStore)
		if tr != nil {
			return tr
		}
		if h.reservationValid && h.reservationAddr == addr {
			if err := h.bus.Store(pa, width, h.reg(d.rs2)); err != nil {
				return &Trap{Cause: ExcStoreAccessFault, Tval: addr}
			}
			h.setReg(d.rd, 0)
		} else {
			h.setReg(d.rd, 1)
		}
		h.reservationValid = false
		return nil

	default:
		return h.execAMO(d, addr, width)
	}
}

func (h *Hart) execAMO(d decoded, addr uint64, width Width) *Trap {
	pa, tr := h.translate(addr, AccessTypeStore)
	if tr != nil {
		return tr
	}
	old, err := h.bus.Load(pa, width)
	if err != nil {
		return &Trap{Cause: ExcLoadAccessFault, Tval: addr}
	}
	oldExt := signExtendAtomic(d.op, old)
	rhs := h.reg(d.rs2)

	var result uint64
	switch d.op {
	case opAMOSWAPW, opAMOSWAPD:
		result = rhs
	case opAMOADDW, opAMOADDD:
		result = oldExt + rhs
	case opAMOXORW, opAMOXORD:
		result = oldExt ^ rhs
	case opAMOANDW, opAMOANDD:
		result = oldExt & rhs
	case opAMOORW, opAMOORD:
		result = oldExt | rhs
	case opAMOMINW, opAMOMIND:
		if int64(oldExt) < int64(rhs) {
			result = oldExt
		} else {
			result = rhs
		}
	case opAMOMAXW, opAMOMAXD:
		if int64(oldExt) > int64(rhs) {
			result = oldExt
		} else {
			result = rhs
		}
	case opAMOMINUW, opAMOMINUD:
		if oldExt < rhs {
			result = oldExt
		} else {
			result = rhs
		}
	case opAMOMAXUW, opAMOMAXUD:
		if oldExt > rhs {
			result = oldExt
		} else {
			result = rhs
		}
	}

	if err := h.bus.Store(pa, width, result); err != nil {
		return &Trap{Cause: ExcStoreAccessFault, Tval: addr}
	}
	h.setReg(d.rd, oldExt)
	return nil
}

func isDoubleAtomic(o op) bool {
	switch o {
	case opLRD, opSCD, opAMOSWAPD, opAMOADDD, opAMOXORD, opAMOANDD, opAMOORD,
		opAMOMIND, opAMOMAXD, opAMOMINUD, opAMOMAXUD:
		return true
	}
	return false
}

func signExtendAtomic(o op, v uint64) uint64 {
	if isDoubleAtomic(o) {
		return v
	}
	return uint64(int64(int32(v)))
}
