package rvemu

import "fmt"

// Physical memory map. See spec.md §3.
const (
	bootROMBase = 0x0000_1000
	bootROMTop  = 0x0000_1FFF

	clintBase = 0x0200_0000
	clintTop  = 0x0200_FFFF

	plicBase = 0x0C00_0000
	plicTop  = 0x0FFF_FFFF

	uartBase = 0x1000_0000
	uartTop  = 0x1000_00FF

	virtioBase = 0x1000_1000
	virtioTop  = 0x1000_1FFF
)

// AccessKind distinguishes the three access types a bus error can be
// attributed to, so the hart can raise the correctly-named exception.
type AccessKind int

const (
	AccessInstruction AccessKind = iota
	AccessLoad
	AccessStore
)

// BusError is returned by Bus.Load/Store when addr does not decode to
// any mapped device or DRAM, or a device rejects the access (e.g. a
// sub-word access to a register that requires a fixed width).
type BusError struct {
	Kind AccessKind
	Addr uint64
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus: %s access fault at 0x%x", accessKindName(e.Kind), e.Addr)
}

func accessKindName(k AccessKind) string {
	switch k {
	case AccessInstruction:
		return "instruction"
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	default:
		return "unknown"
	}
}

// Tickable is implemented by devices that need to observe the passage
// of one hart step (CLINT's free-running timer, UART/Virtio's
// interrupt-line recomputation). The hart polls every Tickable device
// once per step, before interrupt folding, per spec.md §4.9 step 1.
type Tickable interface {
	Tick()
}

// Bus routes a physical address + width to DRAM or one of the mapped
// devices. It is owned exclusively by a Hart (spec.md §5) and is not
// safe for concurrent use from outside the hart's single goroutine.
type Bus struct {
	dram   *Dram
	clint  *Clint
	plic   *Plic
	uart   *Uart
	virtio *Virtio
}

func newBus(dram *Dram, clint *Clint, plic *Plic, uart *Uart, virtio *Virtio) *Bus {
	return &Bus{dram: dram, clint: clint, plic: plic, uart: uart, virtio: virtio}
}

// tickables lists the bus's devices that implement Tickable, in a
// fixed poll order (CLINT must be ticked before PLIC folds lines,
// since CLINT's output feeds mip.MTIP/MSIP directly rather than
// through the PLIC).
func (b *Bus) tickables() []Tickable {
	return []Tickable{b.clint, b.uart, b.virtio, b.plic}
}

// Load reads width bits from physical address addr.
func (b *Bus) Load(addr uint64, width Width) (uint64, error) {
	switch {
	case b.dram.contains(addr, width.Bytes()):
		return b.dram.Load(addr, width)
	case addr >= clintBase && addr <= clintTop:
		return b.clint.Load(addr, width)
	case addr >= plicBase && addr <= plicTop:
		return b.plic.Load(addr, width)
	case addr >= uartBase && addr <= uartTop:
		return b.uart.Load(addr, width)
	case addr >= virtioBase && addr <= virtioTop:
		return b.virtio.Load(addr, width)
	case addr >= bootROMBase && addr <= bootROMTop:
		return 0, nil
	default:
		return 0, &BusError{Kind: AccessLoad, Addr: addr}
	}
}

// Store writes width bits of val to physical address addr.
func (b *Bus) Store(addr uint64, width Width, val uint64) error {
	switch {
	case b.dram.contains(addr, width.Bytes()):
		return b.dram.Store(addr, width, val)
	case addr >= clintBase && addr <= clintTop:
		return b.clint.Store(addr, width, val)
	case addr >= plicBase && addr <= plicTop:
		return b.plic.Store(addr, width, val)
	case addr >= uartBase && addr <= uartTop:
		return b.uart.Store(addr, width, val)
	case addr >= virtioBase && addr <= virtioTop:
		return b.virtio.Store(addr, width, val)
	case addr >= bootROMBase && addr <= bootROMTop:
		return nil
	default:
		return &BusError{Kind: AccessStore, Addr: addr}
	}
}
