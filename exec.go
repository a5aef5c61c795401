package rvemu

// execute runs one decoded instruction, returning a non-nil *Trap if
// it raised an architectural exception. retPC is the address the
// instruction was fetched from (pc before the length was added), used
// for PC-relative operands and EBREAK's Tval. This is the single
// dispatch point the teacher splits per-opcode into ops_arith.go/
// ops_logic.go/ops_bit.go/ops_branch.go/ops_move.go/ops_ctrl.go; here
// the switch stays in one place and calls out to those same
// concern-grouped files for anything beyond a one-liner.
func (h *Hart) execute(d decoded, retPC uint64) *Trap {
	switch d.op {

	// --- RV64I: upper immediate / control transfer ---
	case opLUI:
		h.setReg(d.rd, uint64(d.imm))
	case opAUIPC:
		h.setReg(d.rd, retPC+uint64(d.imm))
	case opJAL:
		h.setReg(d.rd, h.pc)
		h.pc = retPC + uint64(d.imm)
	case opJALR:
		target := (h.reg(d.rs1) + uint64(d.imm)) &^ 1
		h.setReg(d.rd, h.pc)
		h.pc = target

	case opBEQ, opBNE, opBLT, opBGE, opBLTU, opBGEU:
		if h.branchTaken(d) {
			h.pc = retPC + uint64(d.imm)
		}

	// --- RV64I: loads/stores ---
	case opLB, opLH, opLW, opLD, opLBU, opLHU, opLWU:
		return h.execLoad(d)
	case opSB, opSH, opSW, opSD:
		return h.execStore(d)

	// --- RV64I: integer-immediate/register ALU ---
	case opADDI, opSLTI, opSLTIU, opXORI, opORI, opANDI, opSLLI, opSRLI, opSRAI,
		opADD, opSUB, opSLL, opSLT, opSLTU, opXOR, opSRL, opSRA, opOR, opAND:
		h.execALU(d)
	case opADDIW, opSLLIW, opSRLIW, opSRAIW, opADDW, opSUBW, opSLLW, opSRLW, opSRAW:
		h.execALUW(d)

	case opFENCE, opFENCEI:
		// no-op: this implementation has no instruction cache or
		// reordering to flush.

	case opECALL:
		cause := uint64(ExcEnvironmentCallFromU)
		switch h.mode {
		case Supervisor:
			cause = ExcEnvironmentCallFromS
		case Machine:
			cause = ExcEnvironmentCallFromM
		}
		return &Trap{Cause: cause}
	case opEBREAK:
		return &Trap{Cause: ExcBreakpoint, Tval: retPC}

	// --- RV64M ---
	case opMUL, opMULH, opMULHSU, opMULHU, opDIV, opDIVU, opREM, opREMU:
		h.execM(d)
	case opMULW, opDIVW, opDIVUW, opREMW, opREMUW:
		h.execMW(d)

	// --- RV64A ---
	case opLRW, opLRD, opSCW, opSCD,
		opAMOSWAPW, opAMOADDW, opAMOXORW, opAMOANDW, opAMOORW, opAMOMINW, opAMOMAXW, opAMOMINUW, opAMOMAXUW,
		opAMOSWAPD, opAMOADDD, opAMOXORD, opAMOANDD, opAMOORD, opAMOMIND, opAMOMAXD, opAMOMINUD, opAMOMAXUD:
		return h.execAtomic(d)

	// --- RV64F/D ---
	case opFLW, opFLD:
		return h.execFLoad(d)
	case opFSW, opFSD:
		return h.execFStore(d)
	case opFMADDS, opFMSUBS, opFNMSUBS, opFNMADDS, opFMADDD, opFMSUBD, opFNMSUBD, opFNMADDD:
		h.execFFma(d)
	case opFADDS, opFSUBS, opFMULS, opFDIVS, opFSQRTS, opFSGNJS, opFSGNJNS, opFSGNJXS, opFMINS, opFMAXS,
		opFADDD, opFSUBD, opFMULD, opFDIVD, opFSQRTD, opFSGNJD, opFSGNJND, opFSGNJXD, opFMIND, opFMAXD,
		opFCVTSD, opFCVTDS:
		h.execFOp(d)
	case opFCVTWS, opFCVTWUS, opFMVXW, opFEQS, opFLTS, opFLES, opFCLASSS,
		opFCVTWD, opFCVTWUD, opFMVXD, opFEQD, opFLTD, opFLED, opFCLASSD,
		opFCVTLS, opFCVTLUS, opFCVTLD, opFCVTLUD:
		h.execFToInt(d)
	case opFCVTSW, opFCVTSWU, opFMVWX, opFCVTSL, opFCVTSLU,
		opFCVTDW, opFCVTDWU, opFMVDX, opFCVTDL, opFCVTDLU:
		h.execIntToF(d)

	// --- Zicsr ---
	case opCSRRW, opCSRRS, opCSRRC, opCSRRWI, opCSRRSI, opCSRRCI:
		return h.execCSR(d)

	// --- Privileged ---
	case opMRET:
		h.mret()
	case opSRET:
		h.sret()
	case opWFI:
		h.waitingForInterrupt = true
	case opSFENCEVMA:
		// no-op: this implementation has no TLB to flush, per
		// DESIGN.md's Open Question decision.

	default:
		return h.illegalInstruction(d)
	}
	return nil
}

func (h *Hart) branchTaken(d decoded) bool {
	a, b := h.reg(d.rs1), h.reg(d.rs2)
	switch d.op {
	case opBEQ:
		return a == b
	case opBNE:
		return a != b
	case opBLT:
		return int64(a) < int64(b)
	case opBGE:
		return int64(a) >= int64(b)
	case opBLTU:
		return a < b
	case opBGEU:
		return a >= b
	}
	return false
}
