package rvemu

import "testing"

func TestSerializeRoundTrip(t *testing.T) {
	h := New()
	for i := range h.regs {
		h.regs[i] = uint64(0x1000 + i)
	}
	h.regs[0] = 0
	for i := range h.fregs {
		h.fregs[i] = uint64(0x2000 + i)
	}
	h.pc = 0x8000_0042
	h.mode = Supervisor
	h.csr.regs[csrMstatus] = mstatusSIE | mstatusSPP
	h.bus.dram.mem[0] = 0xAB
	h.bus.dram.mem[len(h.bus.dram.mem)-1] = 0xCD

	data, err := h.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	h2 := New()
	if err := h2.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if h2.regs != h.regs {
		t.Errorf("regs = %v, want %v", h2.regs, h.regs)
	}
	if h2.fregs != h.fregs {
		t.Errorf("fregs = %v, want %v", h2.fregs, h.fregs)
	}
	if h2.pc != h.pc {
		t.Errorf("pc = 0x%x, want 0x%x", h2.pc, h.pc)
	}
	if h2.mode != h.mode {
		t.Errorf("mode = %v, want %v", h2.mode, h.mode)
	}
	if h2.csr.regs != h.csr.regs {
		t.Error("csr regs diverged across round trip")
	}
	if len(h2.bus.dram.mem) != len(h.bus.dram.mem) {
		t.Fatalf("dram len = %d, want %d", len(h2.bus.dram.mem), len(h.bus.dram.mem))
	}
	if h2.bus.dram.mem[0] != 0xAB || h2.bus.dram.mem[len(h2.bus.dram.mem)-1] != 0xCD {
		t.Error("dram contents did not survive round trip")
	}

	// Devices must not be touched by LoadState; a restored hart keeps
	// the fresh device set it was constructed with.
	if h2.bus.uart == nil || h2.bus.clint == nil || h2.bus.plic == nil || h2.bus.virtio == nil {
		t.Fatal("LoadState must not clear the device set")
	}
}

func TestLoadStateRejectsBadVersion(t *testing.T) {
	h := New()
	data, err := h.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	data[0] = 99 // corrupt the leading version word's low byte

	h2 := New()
	if err := h2.LoadState(data); err == nil {
		t.Fatal("LoadState accepted a corrupted version word")
	}
}

func TestLoadStateRejectsTruncatedBuffer(t *testing.T) {
	h := New()
	if err := h.LoadState([]byte{1, 2, 3}); err == nil {
		t.Fatal("LoadState accepted a too-short buffer")
	}
}

func TestSerializeResumeExecution(t *testing.T) {
	h1 := newTestHart(t, []uint32{addi(5, 0, 7), addi(6, 5, 3)})

	if err := h1.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}

	data, err := h1.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	h2 := New()
	h2.SetDRAM(h1.bus.dram.mem)
	if err := h2.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if err := h1.Step(); err != nil {
		t.Fatalf("h1 step 2: %v", err)
	}
	if err := h2.Step(); err != nil {
		t.Fatalf("h2 step 2: %v", err)
	}

	if h1.regs != h2.regs {
		t.Errorf("registers diverged after resuming from a snapshot: %v vs %v", h1.regs, h2.regs)
	}
	if h1.pc != h2.pc {
		t.Errorf("pc diverged: 0x%x vs 0x%x", h1.pc, h2.pc)
	}
}
