package rvemu

import (
	"fmt"
	"log"
)

// Hart is a single RV64GC hardware thread: register files, privileged
// state, and the bus it executes against. This plays the role the
// teacher's CPU struct in cpu.go plays for the 68000 — the single
// object the fetch-decode-execute loop closes over — generalized to
// three privilege modes and a paged address space.
type Hart struct {
	regs  [32]uint64 // x0..x31; x0 is always read as zero, writes discarded
	fregs [32]uint64 // f0..f31, raw bit patterns (NaN-boxed when holding a float32)
	pc    uint64
	mode  Mode
	csr   *Csr
	bus   *Bus

	reservationValid bool
	reservationAddr  uint64

	waitingForInterrupt bool

	// Logger mirrors the teacher's convention of a *log.Logger field
	// rather than package-level log calls, so a host can redirect or
	// silence hart diagnostics per instance.
	Logger *log.Logger
}

// New constructs a Hart with DRAM and the standard device set wired
// onto its bus, booting in machine mode at the DRAM base per spec.md §6.
func New() *Hart {
	h := &Hart{
		mode:   Machine,
		csr:    newCsr(),
		Logger: log.Default(),
	}

	dram := newDram(DRAM_SIZE)
	clint := newClint()
	plic := newPlic()
	uart := newUart(nil)
	virtio := newVirtio()

	plic.setSource(UARTIrq, uart.InterruptPending)
	plic.setSource(VirtioIrq, virtio.InterruptPending)

	h.bus = newBus(dram, clint, plic, uart, virtio)
	virtio.attachBus(h.bus)

	h.pc = DRAM_BASE
	h.regs[2] = DRAM_BASE + DRAM_SIZE // sp, per spec.md §6's boot convention
	return h
}

// SetDRAM loads a kernel/firmware image at the DRAM base.
func (h *Hart) SetDRAM(data []byte) error {
	return h.bus.dram.set(data)
}

// SetDisk attaches a virtio block device image.
func (h *Hart) SetDisk(data []byte) {
	h.bus.virtio.setDisk(data)
}

// SetPC overrides the initial program counter.
func (h *Hart) SetPC(pc uint64) {
	h.pc = pc
}

// SetOutput wires the UART's transmit side to fn, called once per
// transmitted byte.
func (h *Hart) SetOutput(fn func(byte)) {
	h.bus.uart.onOutput = fn
}

// PushInputByte enqueues one byte of guest-bound UART input, per
// spec.md §5.2. Safe to call from a goroutine other than the one
// driving Step/Start.
func (h *Hart) PushInputByte(b byte) {
	h.bus.uart.pushInput(b)
}

func (h *Hart) reg(i uint32) uint64 {
	if i == 0 {
		return 0
	}
	return h.regs[i]
}

func (h *Hart) setReg(i uint32, v uint64) {
	if i == 0 {
		return
	}
	h.regs[i] = v
}

// ReadRegister exposes x0..x31 for hosts and tests, per spec.md §6.
func (h *Hart) ReadRegister(i int) uint64 {
	if i < 0 || i > 31 {
		return 0
	}
	return h.reg(uint32(i))
}

// ReadCSR exposes CSR state for hosts and tests.
func (h *Hart) ReadCSR(idx uint16) uint64 {
	v, _ := h.csr.Read(idx)
	return v
}

// PC reports the current program counter.
func (h *Hart) PC() uint64 { return h.pc }

// Mode reports the current privilege level.
func (h *Hart) Mode() Mode { return h.mode }

// fetch reads one instruction at pc, handling both 4-byte and RVC
// 2-byte forms per spec.md §4.8: the low two bits of the first
// halfword tell them apart.
func (h *Hart) fetch() (decoded, *Trap) {
	pa, tr := h.translate(h.pc, AccessTypeFetch)
	if tr != nil {
		return decoded{}, tr
	}
	lo, err := h.bus.Load(pa, Half)
	if err != nil {
		return decoded{}, &Trap{Cause: ExcInstructionAccessFault, Tval: h.pc}
	}
	if lo&0x3 != 0x3 {
		return decode16(uint16(lo)), nil
	}
	hi, err := h.bus.Load(pa+2, Half)
	if err != nil {
		return decoded{}, &Trap{Cause: ExcInstructionAccessFault, Tval: h.pc}
	}
	raw := uint32(lo) | uint32(hi)<<16
	return decode32(raw), nil
}

// Step executes exactly one instruction (or services one pending trap
// / interrupt), advancing the bus clock once, per spec.md §4.10's
// execution model. It returns a *FatalError only when the core cannot
// make further progress; ordinary guest-visible traps are delivered
// internally and never surface here.
func (h *Hart) Step() error {
	for _, t := range h.bus.tickables() {
		t.Tick()
	}
	h.csr.setMTime(h.bus.clint.MTime())
	h.syncInterruptLines()

	if tr := h.checkInterrupts(); tr != nil {
		h.waitingForInterrupt = false
		h.takeTrap(tr, h.pc)
		return nil
	}

	if h.waitingForInterrupt {
		return nil
	}

	retPC := h.pc
	d, tr := h.fetch()
	if tr == nil {
		h.pc += d.length
		h.csr.bumpCounters()
		tr = h.execute(d, retPC)
	}
	if tr != nil {
		h.takeTrap(tr, retPC)
		// A handler at address 0 (tvec never written) or at the faulting
		// PC itself would re-raise the same exception forever.
		if h.pc == 0 || h.pc == retPC {
			return &FatalError{Kind: FatalUnhandledTrap, PC: retPC, Tval: tr.Tval, Cause: tr.Cause}
		}
	}
	return nil
}

// Start runs the hart until a FatalError occurs (e.g. an unmapped bus
// access or a trap with no guest handler ever installed to catch it).
func (h *Hart) Start() error {
	for {
		if err := h.Step(); err != nil {
			return err
		}
	}
}

// syncInterruptLines folds the hardwired device interrupt lines (CLINT's
// timer comparator, the PLIC's M/S external lines) into mip each step.
// mip.SSIP/STIP stay purely software-controlled via CSR writes, matching
// how xv6's machine-mode timer trap handler signals the supervisor, per
// spec.md §4.9.
func (h *Hart) syncInterruptLines() {
	mip := h.csr.regs[csrMip]
	mip &^= ipMTIP | ipMEIP | ipSEIP
	if h.bus.clint.TimerPending() {
		mip |= ipMTIP
	}
	if h.bus.plic.MEIPending() {
		mip |= ipMEIP
	}
	if h.bus.plic.SEIPending() {
		mip |= ipSEIP
	}
	if h.bus.clint.SoftwarePending() {
		mip |= ipMSIP
	} else {
		mip &^= ipMSIP
	}
	h.csr.regs[csrMip] = mip
}

// checkInterrupts evaluates pending, enabled interrupts against the
// current privilege mode and global/per-level enables, per spec.md
// §4.9. Highest-priority pending interrupt wins: MEI > MSI > MTI > SEI
// > SSI > STI.
func (h *Hart) checkInterrupts() *Trap {
	mip, _ := h.csr.Read(csrMip)
	mie, _ := h.csr.Read(csrMie)
	pending := mip & mie
	if pending == 0 {
		return nil
	}

	mstatus, _ := h.csr.Read(csrMstatus)
	mideleg, _ := h.csr.Read(csrMideleg)

	order := []uint64{ipMEIP, ipMSIP, ipMTIP, ipSEIP, ipSSIP, ipSTIP}
	causes := map[uint64]uint64{
		ipMEIP: IntMachineExternal, ipMSIP: IntMachineSoftware, ipMTIP: IntMachineTimer,
		ipSEIP: IntSupervisorExternal, ipSSIP: IntSupervisorSoftware, ipSTIP: IntSupervisorTimer,
	}

	for _, bit := range order {
		if pending&bit == 0 {
			continue
		}
		cause := causes[bit]
		deleg := mideleg&(uint64(1)<<cause) != 0
		toS := deleg && h.mode != Machine

		globallyEnabled := true
		switch {
		case toS && h.mode == Supervisor:
			globallyEnabled = mstatus&mstatusSIE != 0
		case !deleg && h.mode == Machine:
			globallyEnabled = mstatus&mstatusMIE != 0
		case h.mode == Machine:
			globallyEnabled = false // higher-priv mode never preempted by a delegated interrupt
		default:
			globallyEnabled = true // lower-priv mode always preemptible
		}
		if !globallyEnabled {
			continue
		}
		return &Trap{Cause: cause, IsInterrupt: true}
	}
	return nil
}

func (h *Hart) illegalInstruction(d decoded) *Trap {
	return &Trap{Cause: ExcIllegalInstruction, Tval: uint64(d.op)}
}

func (h *Hart) String() string {
	return fmt.Sprintf("pc=0x%x mode=%d", h.pc, h.mode)
}
