package rvemu

// execLoad and execStore implement RV64I's sign/zero-extending memory
// accesses. Grounded in shape on the teacher's resolveEA()-then-Read
// pattern in ea.go: compute the effective address, translate it, then
// move bytes through the bus.
func (h *Hart) execLoad(d decoded) *Trap {
	addr := h.reg(d.rs1) + uint64(d.imm)
	pa, tr := h.translate(addr, AccessTypeLoad)
	if tr != nil {
		return tr
	}

	var width Width
	switch d.op {
	case opLB, opLBU:
		width = Byte
	case opLH, opLHU:
		width = Half
	case opLW, opLWU:
		width = Word
	case opLD:
		width = Double
	}

	v, err := h.bus.Load(pa, width)
	if err != nil {
		return &Trap{Cause: ExcLoadAccessFault, Tval: addr}
	}

	switch d.op {
	case opLB:
		h.setReg(d.rd, uint64(signExtend(uint32(v), 8)))
	case opLH:
		h.setReg(d.rd, uint64(signExtend(uint32(v), 16)))
	case opLW:
		h.setReg(d.rd, uint64(int64(int32(v))))
	case opLBU, opLHU, opLWU, opLD:
		h.setReg(d.rd, v)
	}
	return nil
}

func (h *Hart) execStore(d decoded) *Trap {
	addr := h.reg(d.rs1) + uint64(d.imm)
	pa, tr := h.translate(addr, AccessTypeStore)
	if tr != nil {
		return tr
	}

	var width Width
	switch d.op {
	case opSB:
		width = Byte
	case opSH:
		width = Half
	case opSW:
		width = Word
	case opSD:
		width = Double
	}

	if err := h.bus.Store(pa, width, h.reg(d.rs2)); err != nil {
		return &Trap{Cause: ExcStoreAccessFault, Tval: addr}
	}
	return nil
}

// execALU covers every 64-bit-wide integer-immediate and
// integer-register instruction. The immediate forms read d.rs2 as 0
// (unused); SLLI/SRLI/SRAI's shift amount rides in d.imm, per decode.go.
func (h *Hart) execALU(d decoded) {
	a := h.reg(d.rs1)
	var b uint64
	isImm := d.op == opADDI || d.op == opSLTI || d.op == opSLTIU || d.op == opXORI ||
		d.op == opORI || d.op == opANDI || d.op == opSLLI || d.op == opSRLI || d.op == opSRAI
	if isImm {
		b = uint64(d.imm)
	} else {
		b = h.reg(d.rs2)
	}

	var r uint64
	switch d.op {
	case opADDI, opADD:
		r = a + b
	case opSUB:
		r = a - b
	case opSLTI, opSLT:
		if int64(a) < int64(b) {
			r = 1
		}
	case opSLTIU, opSLTU:
		if a < b {
			r = 1
		}
	case opXORI, opXOR:
		r = a ^ b
	case opORI, opOR:
		r = a | b
	case opANDI, opAND:
		r = a & b
	case opSLLI:
		r = a << (uint64(d.imm) & 0x3F)
	case opSLL:
		r = a << (b & 0x3F)
	case opSRLI:
		r = a >> (uint64(d.imm) & 0x3F)
	case opSRL:
		r = a >> (b & 0x3F)
	case opSRAI:
		r = uint64(int64(a) >> (uint64(d.imm) & 0x3F))
	case opSRA:
		r = uint64(int64(a) >> (b & 0x3F))
	}
	h.setReg(d.rd, r)
}

// execALUW covers the *W instructions: 32-bit operation,
// sign-extended to 64 bits, per spec.md §4.3.
func (h *Hart) execALUW(d decoded) {
	a := uint32(h.reg(d.rs1))
	var b uint32
	isImm := d.op == opADDIW || d.op == opSLLIW || d.op == opSRLIW || d.op == opSRAIW
	if isImm {
		b = uint32(d.imm)
	} else {
		b = uint32(h.reg(d.rs2))
	}

	var r int32
	switch d.op {
	case opADDIW, opADDW:
		r = int32(a + b)
	case opSUBW:
		r = int32(a - b)
	case opSLLIW, opSLLW:
		r = int32(a << (b & 0x1F))
	case opSRLIW, opSRLW:
		r = int32(a >> (b & 0x1F))
	case opSRAIW, opSRAW:
		r = int32(a) >> (b & 0x1F)
	}
	h.setReg(d.rd, uint64(int64(r)))
}
