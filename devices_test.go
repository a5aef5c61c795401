package rvemu

import "testing"

func TestClintTimerComparator(t *testing.T) {
	c := newClint()
	c.mtimecmp = 3
	for i := 0; i < 3; i++ {
		c.Tick()
	}
	if !c.TimerPending() {
		t.Fatal("expected timer pending once mtime reaches mtimecmp")
	}
}

func TestClintSoftwareDoorbell(t *testing.T) {
	c := newClint()
	if err := c.Store(clintBase+clintMSIP, Word, 1); err != nil {
		t.Fatalf("store msip: %v", err)
	}
	c.Tick()
	if !c.SoftwarePending() {
		t.Fatal("expected software interrupt pending after msip write")
	}
}

func TestPlicClaimCompleteCycle(t *testing.T) {
	p := newPlic()
	asserted := true
	p.setSource(5, func() bool { return asserted })
	p.priority[5] = 1
	p.enable[0] = 1 << 5

	p.Tick()
	if !p.MEIPending() {
		t.Fatal("expected MEIP asserted once source 5 is pending and enabled")
	}

	id := p.claim(0)
	if id != 5 {
		t.Fatalf("claim = %d, want 5", id)
	}

	asserted = false
	p.Tick()
	if p.MEIPending() {
		t.Fatal("expected MEIP to clear once the claimed source deasserts and nothing else is pending")
	}

	p.complete(0, 5)
	if p.claimed[0] != 0 {
		t.Fatal("expected complete to clear the claimed bookkeeping")
	}
}

func TestPlicPriorityZeroMasksSource(t *testing.T) {
	p := newPlic()
	p.setSource(1, func() bool { return true })
	p.enable[0] = 1 << 1
	// priority left at zero
	p.Tick()
	if p.MEIPending() {
		t.Fatal("a source with priority 0 must never contribute a pending interrupt")
	}
}

// TestVirtioSingleSectorRead exercises spec.md §4.6: a single-descriptor
// chain requesting one sector is serviced and the used ring advances.
func TestVirtioSingleSectorRead(t *testing.T) {
	b := newTestBus()
	disk := make([]byte, sectorSize*2)
	for i := range disk {
		disk[i] = byte(i)
	}
	b.virtio.setDisk(disk)

	const queueNum = 4
	descBase := DRAM_BASE + 0x1000
	availBase := descBase + queueNum*16
	usedBase := usedRingAddr(descBase, queueNum, 0)

	b.virtio.queueNum = queueNum
	b.virtio.queueAlign = 4096
	b.virtio.queuePFN = uint32(descBase / 4096)

	reqHdrAddr := DRAM_BASE + 0x2000
	dataAddr := DRAM_BASE + 0x3000
	statusAddr := DRAM_BASE + 0x4000

	mustBusStore(t, b, reqHdrAddr, Word, blkTypeIn)
	mustBusStore(t, b, reqHdrAddr+8, Double, 0) // sector 0

	// descriptor 0: request header, 16 bytes, chained to 1
	mustBusStore(t, b, descBase+0, Double, reqHdrAddr)
	mustBusStore(t, b, descBase+8, Word, 16)
	mustBusStore(t, b, descBase+12, Half, vringDescFNext)
	mustBusStore16(t, b, descBase+14, 1)

	// descriptor 1: data buffer, device-writable, chained to 2
	mustBusStore(t, b, descBase+16, Double, dataAddr)
	mustBusStore(t, b, descBase+24, Word, sectorSize)
	mustBusStore(t, b, descBase+28, Half, vringDescFNext|vringDescFWrite)
	mustBusStore16(t, b, descBase+30, 2)

	// descriptor 2: status byte, device-writable
	mustBusStore(t, b, descBase+32, Double, statusAddr)
	mustBusStore(t, b, descBase+40, Word, 1)
	mustBusStore(t, b, descBase+44, Half, vringDescFWrite)

	// avail ring: idx=1, ring[0]=0 (head descriptor index)
	mustBusStore16(t, b, availBase+2, 1)
	mustBusStore16(t, b, availBase+4, 0)

	// used ring starts at idx 0
	mustBusStore16(t, b, usedBase+2, 0)

	if err := b.Store(virtioBase+vioQueueNotify, Word, 0); err != nil {
		t.Fatalf("notify: %v", err)
	}

	for i := 0; i < sectorSize; i++ {
		v, err := b.Load(dataAddr+uint64(i), Byte)
		if err != nil {
			t.Fatalf("load data[%d]: %v", i, err)
		}
		if byte(v) != disk[i] {
			t.Fatalf("data[%d] = %d, want %d", i, v, disk[i])
		}
	}

	status, err := b.Load(statusAddr, Byte)
	if err != nil || status != 0 {
		t.Fatalf("status = %d, err=%v, want 0", status, err)
	}
	if !b.virtio.InterruptPending() {
		t.Fatal("expected virtio irq asserted after servicing a request")
	}
}

func mustBusStore(t *testing.T, b *Bus, addr uint64, width Width, val uint64) {
	t.Helper()
	if err := b.Store(addr, width, val); err != nil {
		t.Fatalf("store at 0x%x: %v", addr, err)
	}
}

func mustBusStore16(t *testing.T, b *Bus, addr uint64, val uint16) {
	mustBusStore(t, b, addr, Half, uint64(val))
}
