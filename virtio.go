package rvemu

// Virtio MMIO register offsets (legacy layout), relative to
// virtioBase, per spec.md §4.6.
const (
	vioMagic       = 0x000
	vioVersion     = 0x004
	vioDeviceID    = 0x008
	vioVendorID    = 0x00c
	vioHostFeat    = 0x010
	vioGuestFeat   = 0x020
	vioGuestPageSz = 0x028
	vioQueueSel    = 0x030
	vioQueueNumMax = 0x034
	vioQueueNum    = 0x038
	vioQueueAlign  = 0x03c
	vioQueuePFN    = 0x040
	vioQueueNotify = 0x050
	vioInterruptSt = 0x060
	vioInterruptAck = 0x064
	vioStatus      = 0x070
)

const (
	virtioMagicValue = 0x74726976 // "virt"
	virtioVersion    = 1          // legacy
	virtioBlkDeviceID = 2

	// VirtioIrq is the conventional PLIC source id wired to Virtio,
	// per spec.md §4.6.
	VirtioIrq = 1

	sectorSize = 512

	// descriptor flags
	vringDescFNext  = 1
	vringDescFWrite = 2

	// request types, little-endian at the head of the descriptor chain
	blkTypeIn  = 0
	blkTypeOut = 1
)

// vringDesc mirrors the legacy virtqueue descriptor layout: 16 bytes,
// {addr uint64, len uint32, flags uint16, next uint16}.
type vringDesc struct {
	addr  uint64
	len   uint32
	flags uint16
	next  uint16
}

// Virtio is a single legacy MMIO virtio block device, sufficient to
// service the single-descriptor-chain requests xv6 issues, per
// spec.md §4.6.
type Virtio struct {
	disk []byte

	bus *Bus // used to reach guest DRAM once notified; set post-construction

	hostFeatures  uint32
	guestFeatures uint32
	guestPageSize uint32
	queueSel      uint32
	queueNum      uint32
	queueAlign    uint32
	queuePFN      uint32
	status        uint32

	interruptStatus uint32
	irq             bool
}

// queueNumMax is fixed; not part of mutable state.
const queueNumMax = 8

func newVirtio() *Virtio {
	return &Virtio{}
}

func (v *Virtio) setDisk(data []byte) {
	v.disk = make([]byte, len(data))
	copy(v.disk, data)
}

func (v *Virtio) attachBus(b *Bus) {
	v.bus = b
}

// Tick does nothing. The device raises its line only when a notify is
// serviced (see notify below) and lowers it on an interrupt ack; Tick
// exists so Virtio satisfies Tickable uniformly with the other devices.
func (v *Virtio) Tick() {}

// InterruptPending reports whether the device's line to the PLIC is
// asserted.
func (v *Virtio) InterruptPending() bool { return v.irq }

func (v *Virtio) Load(addr uint64, width Width) (uint64, error) {
	off := addr - virtioBase
	switch off {
	case vioMagic:
		return virtioMagicValue, nil
	case vioVersion:
		return virtioVersion, nil
	case vioDeviceID:
		return virtioBlkDeviceID, nil
	case vioVendorID:
		return 0, nil
	case vioHostFeat:
		return uint64(v.hostFeatures), nil
	case vioQueueNumMax:
		return queueNumMax, nil
	case vioQueuePFN:
		return uint64(v.queuePFN), nil
	case vioInterruptSt:
		return uint64(v.interruptStatus), nil
	case vioStatus:
		return uint64(v.status), nil
	default:
		return 0, nil
	}
}

func (v *Virtio) Store(addr uint64, width Width, val uint64) error {
	off := addr - virtioBase
	switch off {
	case vioGuestFeat:
		v.guestFeatures = uint32(val)
	case vioGuestPageSz:
		v.guestPageSize = uint32(val)
	case vioQueueSel:
		v.queueSel = uint32(val)
	case vioQueueNum:
		v.queueNum = uint32(val)
	case vioQueueAlign:
		v.queueAlign = uint32(val)
	case vioQueuePFN:
		v.queuePFN = uint32(val)
	case vioQueueNotify:
		v.notify()
	case vioInterruptAck:
		v.interruptStatus &^= uint32(val)
		if v.interruptStatus == 0 {
			v.irq = false
		}
	case vioStatus:
		v.status = uint32(val)
		if v.status == 0 {
			v.reset()
		}
	default:
		// Unknown offsets are accepted and ignored; the legacy layout
		// has gaps and device-specific config space we don't model.
	}
	return nil
}

func (v *Virtio) reset() {
	v.queueSel = 0
	v.queueNum = 0
	v.queuePFN = 0
	v.interruptStatus = 0
	v.irq = false
}

// queueAddr returns the guest-physical base address of the
// descriptor table for the (single) configured virtqueue.
func (v *Virtio) queueAddr() uint64 {
	align := v.queueAlign
	if align == 0 {
		align = 4096
	}
	return uint64(v.queuePFN) * uint64(align)
}

// descEntrySize and friends: legacy layout, descriptor table followed by
// the avail ring then (page-aligned) the used ring.
const (
	descEntrySize = 16
	availHdrSize  = 4 // flags + idx
	usedHdrSize   = 4
)

// notify walks the avail ring for one new descriptor chain and
// services exactly one request, per spec.md §4.6.
func (v *Virtio) notify() {
	if v.bus == nil || v.queueNum == 0 {
		return
	}
	base := v.queueAddr()
	availBase := base + uint64(v.queueNum)*descEntrySize

	availIdx, err := v.bus.Load(availBase+2, Half)
	if err != nil {
		return
	}
	lastUsed, err := v.lastProcessedAvail()
	if err != nil || uint16(availIdx) == lastUsed {
		return
	}

	ringSlot := lastUsed % uint16(v.queueNum)
	headIdx, err := v.bus.Load(availBase+availHdrSize+uint64(ringSlot)*2, Half)
	if err != nil {
		return
	}

	v.serviceChain(base, uint16(headIdx))
	v.advanceUsed(base, uint16(headIdx), lastUsed)

	v.interruptStatus |= 1
	v.irq = true
}

// lastProcessedAvail reads the used ring's idx field, which we use as
// our own bookkeeping of how many avail entries have been consumed.
func (v *Virtio) lastProcessedAvail() (uint16, error) {
	base := v.queueAddr()
	usedBase := usedRingAddr(base, v.queueNum, v.guestPageSize)
	idx, err := v.bus.Load(usedBase+2, Half)
	if err != nil {
		return 0, err
	}
	return uint16(idx), nil
}

func usedRingAddr(descBase uint64, queueNum uint32, pageSize uint32) uint64 {
	availBase := descBase + uint64(queueNum)*descEntrySize
	availSize := availHdrSize + uint64(queueNum)*2 + 2 // + used_event
	end := availBase + availSize
	if pageSize == 0 {
		pageSize = 4096
	}
	return ((end + uint64(pageSize) - 1) / uint64(pageSize)) * uint64(pageSize)
}

// serviceChain walks the descriptor chain starting at head and copies
// sector bytes between the disk backing store and guest DRAM.
func (v *Virtio) serviceChain(descBase uint64, head uint16) {
	descs, statusAddr, ok := v.readChain(descBase, head)
	if !ok || len(descs) < 2 {
		return
	}

	reqType, sector, ok := v.readRequestHeader(descs[0])
	if !ok {
		return
	}

	status := byte(0)
	for _, d := range descs[1 : len(descs)-1] {
		n := uint64(d.len)
		diskOff := sector * sectorSize
		if diskOff+n > uint64(len(v.disk)) {
			status = 1
			break
		}
		if d.flags&vringDescFWrite != 0 {
			// device writes guest memory: disk -> DRAM (blkTypeIn)
			for i := uint64(0); i < n; i++ {
				b, err := v.readDiskByte(diskOff + i)
				if err != nil {
					status = 1
					break
				}
				if err := v.bus.Store(d.addr+i, Byte, uint64(b)); err != nil {
					status = 1
					break
				}
			}
		} else {
			// device reads guest memory: DRAM -> disk (blkTypeOut)
			for i := uint64(0); i < n; i++ {
				val, err := v.bus.Load(d.addr+i, Byte)
				if err != nil {
					status = 1
					break
				}
				v.disk[diskOff+i] = byte(val)
			}
		}
		sector += n / sectorSize
	}
	_ = reqType

	if statusAddr != 0 {
		v.bus.Store(statusAddr, Byte, uint64(status))
	}
}

func (v *Virtio) readDiskByte(off uint64) (byte, error) {
	if off >= uint64(len(v.disk)) {
		return 0, &BusError{Kind: AccessLoad, Addr: off}
	}
	return v.disk[off], nil
}

// readChain follows the descriptor linked list starting at head and
// returns the descriptors plus the address of the final (status)
// descriptor's single byte.
func (v *Virtio) readChain(descBase uint64, head uint16) ([]vringDesc, uint64, bool) {
	var descs []vringDesc
	idx := head
	for i := 0; i < int(v.queueNum)+1; i++ {
		addr := descBase + uint64(idx)*descEntrySize
		lo, err := v.bus.Load(addr, Double)
		if err != nil {
			return nil, 0, false
		}
		length, err := v.bus.Load(addr+8, Word)
		if err != nil {
			return nil, 0, false
		}
		flags, err := v.bus.Load(addr+12, Half)
		if err != nil {
			return nil, 0, false
		}
		next, err := v.bus.Load(addr+14, Half)
		if err != nil {
			return nil, 0, false
		}
		d := vringDesc{
			addr:  lo,
			len:   uint32(length),
			flags: uint16(flags),
			next:  uint16(next),
		}
		descs = append(descs, d)
		if d.flags&vringDescFNext == 0 {
			break
		}
		idx = d.next
	}
	if len(descs) == 0 {
		return nil, 0, false
	}
	last := descs[len(descs)-1]
	return descs, last.addr, true
}

// readRequestHeader reads the virtio_blk_req header from the first
// descriptor in the chain: {type uint32, reserved uint32, sector uint64}.
func (v *Virtio) readRequestHeader(d vringDesc) (reqType uint32, sector uint64, ok bool) {
	t, err := v.bus.Load(d.addr, Word)
	if err != nil {
		return 0, 0, false
	}
	s, err := v.bus.Load(d.addr+8, Double)
	if err != nil {
		return 0, 0, false
	}
	return uint32(t), s, true
}

// advanceUsed appends an entry to the used ring and bumps its idx.
func (v *Virtio) advanceUsed(descBase uint64, headIdx uint16, lastUsed uint16) {
	usedBase := usedRingAddr(descBase, v.queueNum, v.guestPageSize)
	slot := lastUsed % uint16(v.queueNum)
	entryAddr := usedBase + usedHdrSize + uint64(slot)*8
	v.bus.Store(entryAddr, Word, uint64(headIdx))
	v.bus.Store(entryAddr+4, Word, 0)
	v.bus.Store(usedBase+2, Half, uint64(lastUsed+1))
}
