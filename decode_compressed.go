package rvemu

// decode16 expands a 16-bit compressed instruction into the same
// decoded shape a 32-bit instruction would produce, per RVC v2.0 and
// spec.md §4.8: "every legal 16-bit encoding executes as its 32-bit
// equivalent." This plays the role the teacher's ea.go extension-word
// fetching plays for the 68000 — reshaping a compact encoding into the
// canonical operand form the executor already knows how to run.
func decode16(raw uint16) decoded {
	d := decoded{length: 2}
	quadrant := raw & 0x3
	funct3 := (raw >> 13) & 0x7

	switch quadrant {
	case 0:
		decodeC0(&d, raw, funct3)
	case 1:
		decodeC1(&d, raw, funct3)
	case 2:
		decodeC2(&d, raw, funct3)
	}
	return d
}

// creg expands a 3-bit compressed register field (x8-x15) to its full
// 5-bit register number.
func creg(bits uint16) uint32 {
	return uint32(bits) + 8
}

func decodeC0(d *decoded, raw uint16, funct3 uint16) {
	rdp := creg((raw >> 2) & 0x7)
	rs1p := creg((raw >> 7) & 0x7)

	switch funct3 {
	case 0: // C.ADDI4SPN
		imm := (((raw >> 11) & 0x3) << 4) | (((raw >> 7) & 0xF) << 6) | (((raw >> 6) & 1) << 2) | (((raw >> 5) & 1) << 3)
		d.op, d.rd, d.rs1, d.imm = opADDI, rdp, 2, int64(imm)
	case 1: // C.FLD
		off := fldOffset(raw)
		d.op, d.rd, d.rs1, d.imm = opFLD, rdp, rs1p, int64(off)
	case 2: // C.LW
		off := lwOffset(raw)
		d.op, d.rd, d.rs1, d.imm = opLW, rdp, rs1p, int64(off)
	case 3: // C.LD
		off := fldOffset(raw)
		d.op, d.rd, d.rs1, d.imm = opLD, rdp, rs1p, int64(off)
	case 5: // C.FSD
		off := fldOffset(raw)
		d.op, d.rs1, d.rs2, d.imm = opFSD, rs1p, rdp, int64(off)
	case 6: // C.SW
		off := lwOffset(raw)
		d.op, d.rs1, d.rs2, d.imm = opSW, rs1p, rdp, int64(off)
	case 7: // C.SD
		off := fldOffset(raw)
		d.op, d.rs1, d.rs2, d.imm = opSD, rs1p, rdp, int64(off)
	}
}

// fldOffset computes the 8-byte-scaled offset shared by C.FLD/C.LD/
// C.FSD/C.SD: offset[5:3] = inst[12:10], offset[7:6] = inst[6:5].
func fldOffset(raw uint16) uint32 {
	return (uint32((raw>>10)&0x7) << 3) | (uint32((raw>>5)&0x3) << 6)
}

// lwOffset computes the 4-byte-scaled offset shared by C.LW/C.SW:
// offset[5:3] = inst[12:10], offset[2] = inst[6], offset[6] = inst[5].
func lwOffset(raw uint16) uint32 {
	return (uint32((raw>>10)&0x7) << 3) | (uint32((raw>>6)&1) << 2) | (uint32((raw>>5)&1) << 6)
}

func decodeC1(d *decoded, raw uint16, funct3 uint16) {
	rd := uint32((raw >> 7) & 0x1F)

	switch funct3 {
	case 0: // C.ADDI (C.NOP when rd==0)
		d.op, d.rd, d.rs1, d.imm = opADDI, rd, rd, c1Imm6(raw)
	case 1: // C.ADDIW
		d.op, d.rd, d.rs1, d.imm = opADDIW, rd, rd, c1Imm6(raw)
	case 2: // C.LI
		d.op, d.rd, d.rs1, d.imm = opADDI, rd, 0, c1Imm6(raw)
	case 3:
		if rd == 2 { // C.ADDI16SP
			raw9 := (uint32((raw>>12)&1) << 9) | (uint32((raw>>6)&1) << 4) |
				(uint32((raw>>5)&1) << 6) | (uint32((raw>>3)&0x3) << 7) | (uint32((raw>>2)&1) << 5)
			d.op, d.rd, d.rs1, d.imm = opADDI, 2, 2, signExtend(raw9, 10)
		} else { // C.LUI
			raw17 := (uint32((raw>>12)&1) << 17) | (uint32((raw>>2)&0x1F) << 12)
			d.op, d.rd, d.imm = opLUI, rd, signExtend(raw17, 18)
		}
	case 4:
		decodeC1Arith(d, raw)
	case 5: // C.J
		d.op, d.rd, d.imm = opJAL, 0, cjOffset(raw)
	case 6: // C.BEQZ
		rs1p := creg((raw >> 7) & 0x7)
		d.op, d.rs1, d.rs2, d.imm = opBEQ, rs1p, 0, cbOffset(raw)
	case 7: // C.BNEZ
		rs1p := creg((raw >> 7) & 0x7)
		d.op, d.rs1, d.rs2, d.imm = opBNE, rs1p, 0, cbOffset(raw)
	}
}

func c1Imm6(raw uint16) int64 {
	raw6 := (uint32((raw>>12)&1) << 5) | uint32((raw>>2)&0x1F)
	return signExtend(raw6, 6)
}

// cjOffset decodes C.J/C.JAL's 11-bit jump offset:
// imm[11|4|9:8|10|6|7|3:1|5] = inst[12|11|10:9|8|7|6|5:3|2]
func cjOffset(raw uint16) int64 {
	b := func(bit uint) uint32 { return uint32((raw >> bit) & 1) }
	raw11 := (b(12) << 11) | (b(11) << 4) | (uint32((raw>>9)&0x3) << 8) | (b(8) << 10) |
		(b(7) << 6) | (b(6) << 7) | (uint32((raw>>3)&0x7) << 1) | (b(2) << 5)
	return signExtend(raw11, 12)
}

// cbOffset decodes C.BEQZ/C.BNEZ's 8-bit branch offset:
// imm[8|4:3] = inst[12|11:10], imm[7:6] = inst[6:5], imm[2:1] = inst[4:3], imm[5] = inst[2]
func cbOffset(raw uint16) int64 {
	b := func(bit uint) uint32 { return uint32((raw >> bit) & 1) }
	raw8 := (b(12) << 8) | (uint32((raw>>10)&0x3) << 3) | (uint32((raw>>5)&0x3) << 6) |
		(uint32((raw>>3)&0x3) << 1) | (b(2) << 5)
	return signExtend(raw8, 9)
}

func decodeC1Arith(d *decoded, raw uint16) {
	rs1p := creg((raw >> 7) & 0x7)
	funct2 := (raw >> 10) & 0x3
	shamt := (uint32((raw>>12)&1) << 5) | uint32((raw>>2)&0x1F)

	switch funct2 {
	case 0: // C.SRLI
		d.op, d.rd, d.rs1, d.imm = opSRLI, rs1p, rs1p, int64(shamt)
	case 1: // C.SRAI
		d.op, d.rd, d.rs1, d.imm = opSRAI, rs1p, rs1p, int64(shamt)
	case 2: // C.ANDI
		d.op, d.rd, d.rs1, d.imm = opANDI, rs1p, rs1p, c1Imm6(raw)
	case 3:
		rs2p := creg((raw >> 2) & 0x7)
		isWordForm := (raw>>12)&1 != 0
		sub := (raw >> 5) & 0x3
		d.rd, d.rs1, d.rs2 = rs1p, rs1p, rs2p
		if !isWordForm {
			d.op = [4]op{opSUB, opXOR, opOR, opAND}[sub]
		} else {
			d.op = [2]op{opSUBW, opADDW}[sub&1]
		}
	}
}

func decodeC2(d *decoded, raw uint16, funct3 uint16) {
	rd := uint32((raw >> 7) & 0x1F)

	switch funct3 {
	case 0: // C.SLLI
		shamt := (uint32((raw>>12)&1) << 5) | uint32((raw>>2)&0x1F)
		d.op, d.rd, d.rs1, d.imm = opSLLI, rd, rd, int64(shamt)
	case 1: // C.FLDSP
		off := c2DQOffset(raw)
		d.op, d.rd, d.rs1, d.imm = opFLD, rd, 2, int64(off)
	case 2: // C.LWSP
		off := c2WOffset(raw)
		d.op, d.rd, d.rs1, d.imm = opLW, rd, 2, int64(off)
	case 3: // C.LDSP
		off := c2DQOffset(raw)
		d.op, d.rd, d.rs1, d.imm = opLD, rd, 2, int64(off)
	case 4:
		decodeC2Jump(d, raw, rd)
	case 5: // C.FSDSP
		off := c2SDQOffset(raw)
		rs2 := uint32((raw >> 2) & 0x1F)
		d.op, d.rs1, d.rs2, d.imm = opFSD, 2, rs2, int64(off)
	case 6: // C.SWSP
		off := c2SWOffset(raw)
		rs2 := uint32((raw >> 2) & 0x1F)
		d.op, d.rs1, d.rs2, d.imm = opSW, 2, rs2, int64(off)
	case 7: // C.SDSP
		off := c2SDQOffset(raw)
		rs2 := uint32((raw >> 2) & 0x1F)
		d.op, d.rs1, d.rs2, d.imm = opSD, 2, rs2, int64(off)
	}
}

// c2DQOffset: offset[5]=inst[12], offset[4:3]=inst[6:5], offset[8:6]=inst[4:2]. Shared by C.LDSP/C.FLDSP.
func c2DQOffset(raw uint16) uint32 {
	return (uint32((raw>>12)&1) << 5) | (uint32((raw>>5)&0x3) << 3) | (uint32((raw>>2)&0x7) << 6)
}

// c2WOffset: offset[5]=inst[12], offset[4:2]=inst[6:4], offset[7:6]=inst[3:2]. C.LWSP.
func c2WOffset(raw uint16) uint32 {
	return (uint32((raw>>12)&1) << 5) | (uint32((raw>>4)&0x7) << 2) | (uint32((raw>>2)&0x3) << 6)
}

// c2SDQOffset: offset[5:3]=inst[12:10], offset[8:6]=inst[9:7]. C.SDSP/C.FSDSP.
func c2SDQOffset(raw uint16) uint32 {
	return (uint32((raw>>10)&0x7) << 3) | (uint32((raw>>7)&0x7) << 6)
}

// c2SWOffset: offset[5:2]=inst[12:9], offset[7:6]=inst[8:7]. C.SWSP.
func c2SWOffset(raw uint16) uint32 {
	return (uint32((raw>>9)&0xF) << 2) | (uint32((raw>>7)&0x3) << 6)
}

func decodeC2Jump(d *decoded, raw uint16, rd uint32) {
	funct1 := (raw >> 12) & 1
	rs2 := uint32((raw >> 2) & 0x1F)

	switch {
	case funct1 == 0 && rs2 == 0: // C.JR
		d.op, d.rd, d.rs1, d.imm = opJALR, 0, rd, 0
	case funct1 == 0: // C.MV
		d.op, d.rd, d.rs1, d.rs2 = opADD, rd, 0, rs2
	case rd == 0 && rs2 == 0: // C.EBREAK
		d.op = opEBREAK
	case rs2 == 0: // C.JALR
		d.op, d.rd, d.rs1, d.imm = opJALR, 1, rd, 0
	default: // C.ADD
		d.op, d.rd, d.rs1, d.rs2 = opADD, rd, rd, rs2
	}
}
