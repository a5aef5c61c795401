package rvemu

import "fmt"

// Exception cause codes (bit 63 clear), per spec.md §7.
const (
	ExcInstructionAddressMisaligned = 0
	ExcInstructionAccessFault       = 1
	ExcIllegalInstruction           = 2
	ExcBreakpoint                   = 3
	ExcLoadAddressMisaligned        = 4
	ExcLoadAccessFault              = 5
	ExcStoreAddressMisaligned       = 6
	ExcStoreAccessFault             = 7
	ExcEnvironmentCallFromU         = 8
	ExcEnvironmentCallFromS         = 9
	ExcEnvironmentCallFromM         = 11
	ExcInstructionPageFault         = 12
	ExcLoadPageFault                = 13
	ExcStorePageFault               = 15
)

// Interrupt cause codes (bit 63 set in mcause/scause; these are the
// low bits only), per spec.md §4.9.
const (
	IntSupervisorSoftware = 1
	IntMachineSoftware    = 3
	IntSupervisorTimer    = 5
	IntMachineTimer       = 7
	IntSupervisorExternal = 9
	IntMachineExternal    = 11
)

const causeInterruptBit = uint64(1) << 63

// Trap carries a pending exception or interrupt through the execute
// path up to the hart loop, which performs the actual privileged-state
// transition. Exceptions and interrupts share this type and the same
// delivery machinery, per spec.md §4.9/§7: only the cause's top bit
// and Tval differ.
type Trap struct {
	Cause       uint64 // low bits: architectural cause code
	Tval        uint64
	IsInterrupt bool
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap: cause=0x%x tval=0x%x interrupt=%v", t.Cause, t.Tval, t.IsInterrupt)
}

// ErrorKind classifies a FatalError for the host, per spec.md §7.
type ErrorKind int

const (
	FatalUnhandledTrap ErrorKind = iota
	FatalUnmappedBusAccess
	FatalReservedEncoding
)

// FatalError is returned by Start/Step when the core cannot make
// progress, per spec.md §4.10/§7. It is never raised for ordinary
// architectural exceptions the guest's own trap vector can service.
type FatalError struct {
	Kind  ErrorKind
	PC    uint64
	Tval  uint64
	Cause uint64
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("rvemu: fatal error kind=%d pc=0x%x cause=0x%x tval=0x%x", e.Kind, e.PC, e.Cause, e.Tval)
}

// delegated reports whether a trap with the given cause, raised while
// running at curMode, should be delivered to S-mode rather than
// M-mode: delegation only ever lowers the target mode, and only
// applies when the current mode is at or below S, per spec.md §4.9.
func (h *Hart) delegated(cause uint64, isInterrupt bool, curMode Mode) bool {
	if curMode == Machine {
		return false
	}
	var deleg uint64
	if isInterrupt {
		deleg, _ = h.csr.Read(csrMideleg)
	} else {
		deleg, _ = h.csr.Read(csrMedeleg)
	}
	return deleg&(uint64(1)<<cause) != 0
}

// takeTrap delivers trap t, updating privileged CSR state and PC per
// spec.md §4.9. This mirrors the teacher's exception()/
// processInterrupt() in exception.go/interrupt.go: save the return
// PC, swap privileged state, set the cause, vector to the handler —
// generalized here for M-vs-S delegation, which the teacher's single
// supervisor level has no analogue for.
func (h *Hart) takeTrap(t *Trap, retPC uint64) {
	if h.Logger != nil {
		kind := "exception"
		if t.IsInterrupt {
			kind = "interrupt"
		}
		h.Logger.Printf("rvemu: %s cause=0x%x pc=0x%x tval=0x%x mode=%d", kind, t.Cause, retPC, t.Tval, h.mode)
	}

	curMode := h.mode
	toS := h.delegated(t.Cause, t.IsInterrupt, curMode)

	cause := t.Cause
	if t.IsInterrupt {
		cause |= causeInterruptBit
	}

	mstatus, _ := h.csr.Read(csrMstatus)

	if toS {
		h.csr.Write(csrSepc, retPC)
		h.csr.Write(csrScause, cause)
		h.csr.Write(csrStval, t.Tval)

		spie := (mstatus & mstatusSIE) != 0
		mstatus &^= mstatusSPIE
		if spie {
			mstatus |= mstatusSPIE
		}
		mstatus &^= mstatusSIE
		mstatus &^= mstatusSPP
		if curMode == Supervisor {
			mstatus |= mstatusSPP
		}
		h.csr.Write(csrMstatus, mstatus)

		h.mode = Supervisor
		h.pc = h.trapTarget(csrStvec, t.Cause, t.IsInterrupt)
		return
	}

	h.csr.Write(csrMepc, retPC)
	h.csr.Write(csrMcause, cause)
	h.csr.Write(csrMtval, t.Tval)

	mpie := (mstatus & mstatusMIE) != 0
	mstatus &^= mstatusMPIE
	if mpie {
		mstatus |= mstatusMPIE
	}
	mstatus &^= mstatusMIE
	mstatus &^= mstatusMPP
	mstatus |= uint64(curMode) << 11
	h.csr.Write(csrMstatus, mstatus)

	h.mode = Machine
	h.pc = h.trapTarget(csrMtvec, t.Cause, t.IsInterrupt)
}

// trapTarget computes the PC to jump to: tvec.BASE, or
// BASE + 4*cause in vectored mode for interrupts only, per spec.md §4.9.
func (h *Hart) trapTarget(tvecIdx uint16, cause uint64, isInterrupt bool) uint64 {
	tvec, _ := h.csr.Read(tvecIdx)
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if isInterrupt && mode == 1 {
		return base + 4*cause
	}
	return base
}

// mret restores privilege/PC from the machine-mode trap frame, per
// spec.md §3's invariant: mode <- MPP, MIE <- MPIE, MPIE <- 1.
func (h *Hart) mret() {
	mstatus, _ := h.csr.Read(csrMstatus)
	mpp := Mode((mstatus & mstatusMPP) >> 11)

	mie := (mstatus & mstatusMPIE) != 0
	mstatus &^= mstatusMIE
	if mie {
		mstatus |= mstatusMIE
	}
	mstatus |= mstatusMPIE
	mstatus &^= mstatusMPP // MPP <- U (least-privileged) after mret

	h.csr.Write(csrMstatus, mstatus)
	h.mode = mpp
	epc, _ := h.csr.Read(csrMepc)
	h.pc = epc
}

// sret restores privilege/PC from the supervisor-mode trap frame.
func (h *Hart) sret() {
	mstatus, _ := h.csr.Read(csrMstatus)
	spp := Mode((mstatus & mstatusSPP) >> 8)

	sie := (mstatus & mstatusSPIE) != 0
	mstatus &^= mstatusSIE
	if sie {
		mstatus |= mstatusSIE
	}
	mstatus |= mstatusSPIE
	mstatus &^= mstatusSPP

	h.csr.Write(csrMstatus, mstatus)
	h.mode = spp
	epc, _ := h.csr.Read(csrSepc)
	h.pc = epc
}
