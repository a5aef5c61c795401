package rvemu

// execCSR implements the six Zicsr read-modify-write forms. decode32
// stashes the source register number in d.imm for the register forms
// (CSRRW/S/C) and the 5-bit zimm itself for the immediate forms
// (CSRRWI/SI/CI), since in both encodings it is simply whatever sits
// in the instruction's rs1 field.
func (h *Hart) execCSR(d decoded) *Trap {
	old, ok := h.csr.Read(d.csr)
	if !ok {
		return &Trap{Cause: ExcIllegalInstruction, Tval: uint64(d.csr)}
	}

	var src uint64
	isImmForm := d.op == opCSRRWI || d.op == opCSRRSI || d.op == opCSRRCI
	if isImmForm {
		src = uint64(d.imm)
	} else {
		src = h.reg(uint32(d.imm))
	}

	writes := d.op == opCSRRW || d.op == opCSRRWI || src != 0

	var newVal uint64
	switch d.op {
	case opCSRRW, opCSRRWI:
		newVal = src
	case opCSRRS, opCSRRSI:
		newVal = old | src
	case opCSRRC, opCSRRCI:
		newVal = old &^ src
	}

	if writes {
		if !h.csr.Write(d.csr, newVal) {
			return &Trap{Cause: ExcIllegalInstruction, Tval: uint64(d.csr)}
		}
	}
	h.setReg(d.rd, old)
	return nil
}
