package rvemu

import "testing"

func newTestBus() *Bus {
	clint := newClint()
	plic := newPlic()
	uart := newUart(nil)
	virtio := newVirtio()
	plic.setSource(UARTIrq, uart.InterruptPending)
	plic.setSource(VirtioIrq, virtio.InterruptPending)
	b := newBus(newDram(1<<20), clint, plic, uart, virtio)
	virtio.attachBus(b)
	return b
}

func TestBusRoutesDramAndDevices(t *testing.T) {
	b := newTestBus()

	if err := b.Store(DRAM_BASE+8, Double, 0x1122334455667788); err != nil {
		t.Fatalf("store dram: %v", err)
	}
	v, err := b.Load(DRAM_BASE+8, Double)
	if err != nil || v != 0x1122334455667788 {
		t.Fatalf("load dram = 0x%x, err=%v", v, err)
	}

	if err := b.Store(clintBase+clintMTimeCmp, Double, 777); err != nil {
		t.Fatalf("store clint: %v", err)
	}
	got, err := b.Load(clintBase+clintMTimeCmp, Double)
	if err != nil || got != 777 {
		t.Fatalf("load clint mtimecmp = %d, err=%v", got, err)
	}
}

func TestBusUnmappedAddressFaults(t *testing.T) {
	b := newTestBus()
	if _, err := b.Load(0x5000_0000, Word); err == nil {
		t.Fatal("expected a bus error for an unmapped address")
	}
	var busErr *BusError
	if _, err := b.Load(0x5000_0000, Word); err != nil {
		var ok bool
		busErr, ok = err.(*BusError)
		if !ok {
			t.Fatalf("error type = %T, want *BusError", err)
		}
	}
	if busErr.Kind != AccessLoad {
		t.Fatalf("Kind = %v, want AccessLoad", busErr.Kind)
	}
}

func TestBootRomReadsAsZero(t *testing.T) {
	b := newTestBus()
	v, err := b.Load(bootROMBase, Word)
	if err != nil || v != 0 {
		t.Fatalf("boot ROM load = %d, err=%v, want 0", v, err)
	}
	if err := b.Store(bootROMBase, Word, 0xFF); err != nil {
		t.Fatalf("boot ROM store should be accepted as a no-op: %v", err)
	}
}
