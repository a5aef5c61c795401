package rvemu

// CLINT register offsets, relative to clintBase, per spec.md §4.4.
const (
	clintMSIP      = 0x0000
	clintMTimeCmp  = 0x4000
	clintMTime     = 0xBFF8
	clintTickDelta = 1 // fixed tick per hart step; cycle accuracy is a non-goal
)

// Clint implements the Core-Local Interruptor: a software-interrupt
// doorbell (msip), a 64-bit compare register (mtimecmp), and a
// free-running 64-bit timer (mtime) advanced by clintTickDelta every
// hart step.
type Clint struct {
	msip      uint32
	mtimecmp  uint64
	mtime     uint64
	timerIrq  bool
	softIrq   bool
}

func newClint() *Clint {
	return &Clint{mtimecmp: ^uint64(0)}
}

// Tick advances mtime and recomputes the timer/software interrupt
// lines. Called once per hart step per spec.md §4.9 step 1.
func (c *Clint) Tick() {
	c.mtime += clintTickDelta
	c.timerIrq = c.mtime >= c.mtimecmp
	c.softIrq = c.msip&1 != 0
}

// TimerPending reports whether mtime has reached mtimecmp.
func (c *Clint) TimerPending() bool { return c.timerIrq }

// SoftwarePending reports whether msip's doorbell bit is set.
func (c *Clint) SoftwarePending() bool { return c.softIrq }

// MTime returns the current free-running timer value, exposed for the
// mtime CSR's read-only shadow.
func (c *Clint) MTime() uint64 { return c.mtime }

func (c *Clint) Load(addr uint64, width Width) (uint64, error) {
	off := addr - clintBase
	switch {
	case off == clintMSIP && width == Word:
		return uint64(c.msip), nil
	case off == clintMTimeCmp && width == Double:
		return c.mtimecmp, nil
	case off == clintMTime && width == Double:
		return c.mtime, nil
	default:
		return 0, &BusError{Kind: AccessLoad, Addr: addr}
	}
}

func (c *Clint) Store(addr uint64, width Width, val uint64) error {
	off := addr - clintBase
	switch {
	case off == clintMSIP && width == Word:
		c.msip = uint32(val)
		return nil
	case off == clintMTimeCmp && width == Double:
		c.mtimecmp = val
		return nil
	case off == clintMTime && width == Double:
		c.mtime = val
		return nil
	default:
		return &BusError{Kind: AccessStore, Addr: addr}
	}
}
