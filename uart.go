package rvemu

import "sync/atomic"

// UART register offsets, relative to uartBase. Each register is a
// single byte; sub-word access policy is fixed per spec.md §4.1.
const (
	regRBR = 0 // Receiver Buffer Register (read)
	regTHR = 0 // Transmitter Holding Register (write, aliases RBR offset)
	regIER = 1 // Interrupt Enable Register
	regISR = 2 // Interrupt Status Register (read)
	regFCR = 2 // FIFO Control Register (write, aliases ISR offset)
	regLCR = 3 // Line Control Register
	regMCR = 4 // Modem Control Register
	regLSR = 5 // Line Status Register
	regMSR = 6 // Modem Status Register
	regSCR = 7 // Scratch Register
)

// LSR bits.
const (
	lsrDR   = 1 << 0 // Data Ready
	lsrTHRE = 1 << 5 // Transmitter Holding Register Empty
)

// IER bits.
const (
	ierERBFI = 1 << 0 // Enable Received Data Available Interrupt
)

// UARTIrq is the conventional PLIC source id wired to the UART,
// per spec.md §4.3.
const UARTIrq = 10

// inputQueue is a thread-safe single-producer/single-consumer byte
// queue: the host pushes bytes from its own goroutine while the hart
// drains it during RBR reads; the buffered channel is the only
// synchronization, the UART holds no lock of its own. Adapted
// from the buffered-channel-plus-atomic-counter pattern used for
// device request queues in KTStephano-GVM/vm/devices.go, since the
// teacher (a synchronous single-threaded 68000 core) has no
// concurrent device of its own to model this on.
type inputQueue struct {
	ch    chan byte
	count atomic.Int32
}

func newInputQueue(capacity int) *inputQueue {
	return &inputQueue{ch: make(chan byte, capacity)}
}

// push enqueues a byte from the host side. It never blocks: if the
// queue is full the byte is dropped, matching a real UART's behavior
// of overrunning (and in our minimal model, simply discarding) input
// that arrives faster than the guest drains it.
func (q *inputQueue) push(b byte) {
	select {
	case q.ch <- b:
		q.count.Add(1)
	default:
	}
}

// tryPop drains one byte if available.
func (q *inputQueue) tryPop() (byte, bool) {
	select {
	case b := <-q.ch:
		q.count.Add(-1)
		return b, true
	default:
		return 0, false
	}
}

func (q *inputQueue) pending() bool {
	return q.count.Load() > 0
}

// Uart models the 8 directly-mapped registers of a 16550-compatible
// UART subset, per spec.md §4.3. THRE is always set (infinite send
// speed); output bytes are delivered synchronously to onOutput.
type Uart struct {
	ier byte
	lcr byte
	mcr byte
	msr byte
	scr byte

	in       *inputQueue
	onOutput func(byte)

	irq bool
}

func newUart(onOutput func(byte)) *Uart {
	if onOutput == nil {
		onOutput = func(byte) {}
	}
	return &Uart{
		in:       newInputQueue(16),
		onOutput: onOutput,
		msr:      0,
	}
}

// pushInput is the host-facing entry point (spec.md §6 push_input_byte).
func (u *Uart) pushInput(b byte) {
	u.in.push(b)
}

// Tick recomputes the UART interrupt line from current state. Called
// once per hart step per spec.md §4.9 step 1.
func (u *Uart) Tick() {
	u.irq = (u.ier&ierERBFI != 0) && u.in.pending()
}

// InterruptPending reports whether the UART's line to the PLIC is
// asserted.
func (u *Uart) InterruptPending() bool {
	return u.irq
}

func (u *Uart) Load(addr uint64, width Width) (uint64, error) {
	if width != Byte {
		return 0, &BusError{Kind: AccessLoad, Addr: addr}
	}
	off := addr - uartBase
	switch off {
	case regRBR:
		if b, ok := u.in.tryPop(); ok {
			return uint64(b), nil
		}
		return 0, nil
	case regIER:
		return uint64(u.ier), nil
	case regISR:
		return uint64(u.isr()), nil
	case regLCR:
		return uint64(u.lcr), nil
	case regMCR:
		return uint64(u.mcr), nil
	case regLSR:
		return uint64(u.lsr()), nil
	case regMSR:
		return uint64(u.msr), nil
	case regSCR:
		return uint64(u.scr), nil
	default:
		return 0, &BusError{Kind: AccessLoad, Addr: addr}
	}
}

func (u *Uart) Store(addr uint64, width Width, val uint64) error {
	if width != Byte {
		return &BusError{Kind: AccessStore, Addr: addr}
	}
	off := addr - uartBase
	b := byte(val)
	switch off {
	case regTHR:
		u.onOutput(b)
	case regIER:
		u.ier = b
	case regFCR:
		// FIFO control: accepted and ignored, we model no FIFO.
	case regLCR:
		u.lcr = b
	case regMCR:
		u.mcr = b
	case regLSR:
		// LSR is read-only on real hardware; writes are ignored.
	case regMSR:
		// MSR is read-only; writes are ignored.
	case regSCR:
		u.scr = b
	default:
		return &BusError{Kind: AccessStore, Addr: addr}
	}
	return nil
}

func (u *Uart) lsr() byte {
	v := byte(lsrTHRE)
	if u.in.pending() {
		v |= lsrDR
	}
	return v
}

func (u *Uart) isr() byte {
	if u.irq {
		return 0x04 // "received data available" interrupt ID
	}
	return 0x01 // no interrupt pending
}
