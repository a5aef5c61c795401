package rvemu

// CSR indices. Named per spec.md §3's required minimum set. Modeled as
// a fixed-size array indexed by the 12-bit id, with per-register write
// masks applied in Csr.Write, rather than a sparse map —
// the same "narrow table-driven state" shape as the teacher's Size/
// flag constant tables in size.go/flags.go.
const (
	csrFflags = 0x001
	csrFrm    = 0x002
	csrFcsr   = 0x003

	csrSstatus = 0x100
	csrSie     = 0x104
	csrStvec   = 0x105
	csrSscratch = 0x140
	csrSepc    = 0x141
	csrScause  = 0x142
	csrStval   = 0x143
	csrSip     = 0x144
	csrSatp    = 0x180

	csrMstatus  = 0x300
	csrMisa     = 0x301
	csrMedeleg  = 0x302
	csrMideleg  = 0x303
	csrMie      = 0x304
	csrMtvec    = 0x305
	csrMscratch = 0x340
	csrMepc     = 0x341
	csrMcause   = 0x342
	csrMtval    = 0x343
	csrMip      = 0x344

	csrCycle   = 0xC00
	csrTime    = 0xC01
	csrInstret = 0xC02
	csrMcycle  = 0xB00
	csrMinstret = 0xB02
)

// mstatus / sstatus field bit positions.
const (
	mstatusSIE  = uint64(1) << 1
	mstatusMIE  = uint64(1) << 3
	mstatusSPIE = uint64(1) << 5
	mstatusMPIE = uint64(1) << 7
	mstatusSPP  = uint64(1) << 8
	mstatusMPP  = uint64(3) << 11
	mstatusFS   = uint64(3) << 13
	mstatusMPRV = uint64(1) << 17
	mstatusSUM  = uint64(1) << 18
	mstatusMXR  = uint64(1) << 19
	mstatusSD   = uint64(1) << 63
)

const sstatusMask = mstatusSIE | mstatusSPIE | mstatusSPP | mstatusFS | mstatusSUM | mstatusMXR | mstatusSD

// mip / mie / sip / sie bit positions.
const (
	ipSSIP = uint64(1) << 1
	ipMSIP = uint64(1) << 3
	ipSTIP = uint64(1) << 5
	ipMTIP = uint64(1) << 7
	ipSEIP = uint64(1) << 9
	ipMEIP = uint64(1) << 11
)

const sipSieMask = ipSSIP | ipSTIP | ipSEIP

// satp.MODE value for Sv39.
const satpModeSv39 = uint64(8) << 60

// Csr is the hart's control-and-status register file. sstatus/sie/sip
// are computed projections of the machine registers, never stored
// separately, per spec.md §9.
type Csr struct {
	regs [4096]uint64
}

func newCsr() *Csr {
	return &Csr{}
}

// Read returns the value of CSR idx and whether idx is implemented.
// An unimplemented index raises illegal instruction at the caller.
func (c *Csr) Read(idx uint16) (uint64, bool) {
	switch idx {
	case csrSstatus:
		return c.regs[csrMstatus] & sstatusMask, true
	case csrSie:
		return c.regs[csrMie] & sipSieMask, true
	case csrSip:
		return c.regs[csrMip] & sipSieMask, true
	case csrFflags:
		return c.regs[csrFcsr] & 0x1F, true
	case csrFrm:
		return (c.regs[csrFcsr] >> 5) & 0x7, true
	case csrTime:
		return c.regs[csrTime], true
	case csrCycle:
		return c.regs[csrMcycle], true
	case csrInstret:
		return c.regs[csrMinstret], true
	}
	if !csrImplemented(idx) {
		return 0, false
	}
	return c.regs[idx], true
}

// Write sets CSR idx to val, applying the register's write mask and
// any shadow-projection semantics. Returns false if idx is not
// implemented (caller raises illegal instruction). Writes to misa are
// always ignored (masked to no-op) per spec.md §3.
func (c *Csr) Write(idx uint16, val uint64) bool {
	switch idx {
	case csrMisa:
		return true // writes ignored
	case csrSstatus:
		c.regs[csrMstatus] = (c.regs[csrMstatus] &^ sstatusMask) | (val & sstatusMask)
		return true
	case csrSie:
		c.regs[csrMie] = (c.regs[csrMie] &^ sipSieMask) | (val & sipSieMask)
		return true
	case csrSip:
		c.regs[csrMip] = (c.regs[csrMip] &^ sipSieMask) | (val & sipSieMask)
		return true
	case csrFflags:
		c.regs[csrFcsr] = (c.regs[csrFcsr] &^ 0x1F) | (val & 0x1F)
		return true
	case csrFrm:
		c.regs[csrFcsr] = (c.regs[csrFcsr] &^ (0x7 << 5)) | ((val & 0x7) << 5)
		return true
	case csrMstatus:
		c.regs[idx] = val & mstatusWriteMask
		return true
	case csrMip:
		c.regs[idx] = val & (ipSSIP | ipMSIP | ipSTIP | ipMTIP | ipSEIP | ipMEIP)
		return true
	case csrMie:
		c.regs[idx] = val & (ipSSIP | ipMSIP | ipSTIP | ipMTIP | ipSEIP | ipMEIP)
		return true
	case csrSatp:
		c.regs[idx] = val
		return true
	case csrTime, csrCycle, csrInstret:
		return false // read-only shadows, not directly writable CSR numbers
	}
	if !csrImplemented(idx) {
		return false
	}
	c.regs[idx] = val
	return true
}

const mstatusWriteMask = mstatusSIE | mstatusMIE | mstatusSPIE | mstatusMPIE |
	mstatusSPP | mstatusMPP | mstatusFS | mstatusMPRV | mstatusSUM | mstatusMXR

// csrImplemented reports whether idx is one of the CSRs this hart
// honors per spec.md §3's minimum set.
func csrImplemented(idx uint16) bool {
	switch idx {
	case csrMstatus, csrMisa, csrMedeleg, csrMideleg, csrMie, csrMtvec,
		csrMscratch, csrMepc, csrMcause, csrMtval, csrMip,
		csrMcycle, csrMinstret,
		csrSstatus, csrSie, csrStvec, csrSscratch, csrSepc, csrScause, csrStval, csrSip,
		csrSatp, csrFcsr, csrFrm, csrFflags, csrTime, csrCycle, csrInstret:
		return true
	}
	return false
}

// setMTime mirrors the CLINT's free-running timer into the read-only
// `time` CSR shadow each step.
func (c *Csr) setMTime(v uint64) {
	c.regs[csrTime] = v
}

// bumpCounters advances mcycle/minstret by one, called once per
// retired instruction.
func (c *Csr) bumpCounters() {
	c.regs[csrMcycle]++
	c.regs[csrMinstret]++
}

// satpMode, satpPPN decode the satp CSR.
func (c *Csr) satpMode() uint64 { return c.regs[csrSatp] >> 60 }
func (c *Csr) satpPPN() uint64  { return c.regs[csrSatp] & ((uint64(1) << 44) - 1) }

// FRM returns the current dynamic rounding mode from fcsr.frm, used by
// FP instructions encoding rm==dynamicRM.
func (c *Csr) FRM() uint32 {
	return uint32((c.regs[csrFcsr] >> 5) & 0x7)
}

// AddFFlags ORs the given fflags bits into fcsr, sticky per spec: once
// set, a flag stays set until software clears it.
func (c *Csr) AddFFlags(bits uint64) {
	c.regs[csrFcsr] |= bits & 0x1F
}
