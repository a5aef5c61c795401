package rvemu

import "testing"

// TestMachineTimerInterruptDelivered exercises spec.md §8 scenario 5:
// arm the CLINT comparator in the past, enable MTIE/MIE, and confirm
// the next Step delivers a machine timer interrupt rather than
// executing the next instruction.
func TestMachineTimerInterruptDelivered(t *testing.T) {
	h := newTestHart(t, []uint32{
		addi(1, 0, 1), // would run if the interrupt were missed
	})

	h.csr.Write(csrMtvec, DRAM_BASE+0x4000)
	h.csr.Write(csrMie, ipMTIP)
	mstatus, _ := h.csr.Read(csrMstatus)
	h.csr.Write(csrMstatus, mstatus|mstatusMIE)
	h.bus.clint.mtimecmp = 0 // already due

	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if h.pc != DRAM_BASE+0x4000 {
		t.Fatalf("pc = 0x%x, want mtvec (interrupt not taken)", h.pc)
	}
	mcause, _ := h.csr.Read(csrMcause)
	if mcause != IntMachineTimer|causeInterruptBit {
		t.Fatalf("mcause = 0x%x, want machine timer interrupt", mcause)
	}
	if got := h.ReadRegister(1); got != 0 {
		t.Fatalf("x1 = %d, want 0 (addi skipped by interrupt)", got)
	}
}

func TestInterruptDeferredWhenGloballyDisabled(t *testing.T) {
	h := newTestHart(t, []uint32{
		addi(1, 0, 1),
	})
	h.csr.Write(csrMie, ipMTIP)
	h.bus.clint.mtimecmp = 0 // due, but MIE is clear

	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := h.ReadRegister(1); got != 1 {
		t.Fatalf("x1 = %d, want 1 (interrupt must stay pending, not taken)", got)
	}
}

func TestDelegatedInterruptGoesToSupervisor(t *testing.T) {
	h := newTestHart(t, []uint32{
		addi(1, 0, 1),
	})
	h.mode = Supervisor
	h.csr.Write(csrStvec, DRAM_BASE+0x5000)
	h.csr.Write(csrMideleg, uint64(1)<<IntSupervisorSoftware)
	h.csr.Write(csrSie, ipSSIP)
	mstatus, _ := h.csr.Read(csrMstatus)
	h.csr.Write(csrMstatus, mstatus|mstatusSIE)
	h.csr.Write(csrMip, ipSSIP)

	if err := h.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if h.mode != Supervisor {
		t.Fatalf("mode = %d, want Supervisor", h.mode)
	}
	if h.pc != DRAM_BASE+0x5000 {
		t.Fatalf("pc = 0x%x, want stvec", h.pc)
	}
}

func TestWfiResumesOnPendingInterrupt(t *testing.T) {
	wfi := uint32(0x10500073)
	h := newTestHart(t, []uint32{wfi, addi(1, 0, 42)})
	h.csr.Write(csrMtvec, DRAM_BASE+0x6000)
	h.csr.Write(csrMie, ipMTIP)
	mstatus, _ := h.csr.Read(csrMstatus)
	h.csr.Write(csrMstatus, mstatus|mstatusMIE)

	if err := h.Step(); err != nil { // executes WFI
		t.Fatalf("Step (wfi): %v", err)
	}
	if !h.waitingForInterrupt {
		t.Fatal("expected waitingForInterrupt after WFI")
	}

	if err := h.Step(); err != nil { // no interrupt yet: stays parked
		t.Fatalf("Step (parked): %v", err)
	}
	if !h.waitingForInterrupt {
		t.Fatal("expected hart to remain parked with no pending interrupt")
	}

	h.bus.clint.mtimecmp = 0 // now due
	if err := h.Step(); err != nil {
		t.Fatalf("Step (wake): %v", err)
	}
	if h.waitingForInterrupt {
		t.Fatal("expected hart to resume once the timer interrupt arrived")
	}
	if h.pc != DRAM_BASE+0x6000 {
		t.Fatalf("pc = 0x%x, want mtvec", h.pc)
	}
}
