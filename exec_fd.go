package rvemu

import "math"

// Float registers store raw bits in a 64-bit word. A single-precision
// value is kept NaN-boxed (upper 32 bits all ones) per the F extension
// spec so f-regs never need to track their own width.
const nanBoxUpper = uint64(0xFFFFFFFF) << 32

func (h *Hart) freg32(i uint32) float32 {
	return math.Float32frombits(uint32(h.fregs[i]))
}

func (h *Hart) setFreg32(i uint32, v float32) {
	h.fregs[i] = nanBoxUpper | uint64(math.Float32bits(v))
}

func (h *Hart) freg64(i uint32) float64 {
	return math.Float64frombits(h.fregs[i])
}

func (h *Hart) setFreg64(i uint32, v float64) {
	h.fregs[i] = math.Float64bits(v)
}

func (h *Hart) execFLoad(d decoded) *Trap {
	addr := h.reg(d.rs1) + uint64(d.imm)
	pa, tr := h.translate(addr, AccessTypeLoad)
	if tr != nil {
		return tr
	}
	width := Word
	if d.op == opFLD {
		width = Double
	}
	v, err := h.bus.Load(pa, width)
	if err != nil {
		return &Trap{Cause: ExcLoadAccessFault, Tval: addr}
	}
	if d.op == opFLW {
		h.fregs[d.rd] = nanBoxUpper | v
	} else {
		h.fregs[d.rd] = v
	}
	return nil
}

func (h *Hart) execFStore(d decoded) *Trap {
	addr := h.reg(d.rs1) + uint64(d.imm)
	pa, tr := h.translate(addr, AccessTypeStore)
	if tr != nil {
		return tr
	}
	width := Word
	val := h.fregs[d.rs2] & 0xFFFFFFFF
	if d.op == opFSD {
		width = Double
		val = h.fregs[d.rs2]
	}
	if err := h.bus.Store(pa, width, val); err != nil {
		return &Trap{Cause: ExcStoreAccessFault, Tval: addr}
	}
	return nil
}

func isDoubleFOp(o op) bool {
	switch o {
	case opFMADDD, opFMSUBD, opFNMSUBD, opFNMADDD,
		opFADDD, opFSUBD, opFMULD, opFDIVD, opFSQRTD,
		opFSGNJD, opFSGNJND, opFSGNJXD, opFMIND, opFMAXD,
		opFCVTDS, opFEQD, opFLTD, opFLED, opFCLASSD,
		opFCVTWD, opFCVTWUD, opFCVTDW, opFCVTDWU,
		opFCVTLD, opFCVTLUD, opFCVTDL, opFCVTDLU, opFMVXD, opFMVDX:
		return true
	}
	return false
}

// singlePrec/doublePrec are the IEEE binary32/binary64 significand
// widths (23/52 explicit bits plus the implicit leading bit), used as
// math/big.Float precisions so arithmetic rounds the same way the
// hardware would for RNE, RTZ, RDN and RUP; RMM arithmetic rounds as
// RNE (see bigRoundingMode).
const (
	singlePrec = 24
	doublePrec = 53
)

func (h *Hart) execFFma(d decoded) {
	rm := h.effectiveRM(d)
	mode := bigRoundingMode(rm)
	if isDoubleFOp(d.op) {
		a, b, c := h.freg64(d.rs1), h.freg64(d.rs2), h.freg64(d.rs3)
		var r float64
		var flags uint64
		switch d.op {
		case opFMADDD:
			r, flags = fpFma(doublePrec, mode, a, b, c)
		case opFMSUBD:
			r, flags = fpFma(doublePrec, mode, a, b, -c)
		case opFNMSUBD:
			r, flags = fpFma(doublePrec, mode, -a, b, c)
		case opFNMADDD:
			r, flags = fpFma(doublePrec, mode, -a, b, -c)
		}
		h.csr.AddFFlags(flags)
		h.setFreg64(d.rd, r)
		return
	}
	a, b, c := float64(h.freg32(d.rs1)), float64(h.freg32(d.rs2)), float64(h.freg32(d.rs3))
	var r float64
	var flags uint64
	switch d.op {
	case opFMADDS:
		r, flags = fpFma(singlePrec, mode, a, b, c)
	case opFMSUBS:
		r, flags = fpFma(singlePrec, mode, a, b, -c)
	case opFNMSUBS:
		r, flags = fpFma(singlePrec, mode, -a, b, c)
	case opFNMADDS:
		r, flags = fpFma(singlePrec, mode, -a, b, -c)
	}
	h.csr.AddFFlags(flags)
	h.setFreg32(d.rd, float32(r))
}

func (h *Hart) execFOp(d decoded) {
	rm := h.effectiveRM(d)
	switch d.op {
	case opFCVTSD:
		r, flags := roundNarrow(h.freg64(d.rs1), rm)
		h.csr.AddFFlags(flags)
		h.setFreg32(d.rd, r)
		return
	case opFCVTDS:
		h.setFreg64(d.rd, float64(h.freg32(d.rs1)))
		return
	}

	mode := bigRoundingMode(rm)
	if isDoubleFOp(d.op) {
		a, b := h.freg64(d.rs1), h.freg64(d.rs2)
		var r float64
		var flags uint64
		switch d.op {
		case opFADDD:
			r, flags = fpAdd(doublePrec, mode, a, b)
		case opFSUBD:
			r, flags = fpSub(doublePrec, mode, a, b)
		case opFMULD:
			r, flags = fpMul(doublePrec, mode, a, b)
		case opFDIVD:
			r, flags = fpDiv(doublePrec, mode, a, b)
		case opFSQRTD:
			r, flags = fpSqrt(doublePrec, mode, a)
		case opFSGNJD:
			h.setFreg64(d.rd, math.Copysign(a, b))
			return
		case opFSGNJND:
			h.setFreg64(d.rd, math.Copysign(a, -b))
			return
		case opFSGNJXD:
			if math.Signbit(a) != math.Signbit(b) {
				h.setFreg64(d.rd, -a)
			} else {
				h.setFreg64(d.rd, a)
			}
			return
		case opFMIND:
			h.csr.AddFFlags(invalidIfSignaling(a, b))
			h.setFreg64(d.rd, fMin64(a, b))
			return
		case opFMAXD:
			h.csr.AddFFlags(invalidIfSignaling(a, b))
			h.setFreg64(d.rd, fMax64(a, b))
			return
		}
		h.csr.AddFFlags(flags)
		h.setFreg64(d.rd, r)
		return
	}

	a, b := float64(h.freg32(d.rs1)), float64(h.freg32(d.rs2))
	var r float64
	var flags uint64
	switch d.op {
	case opFADDS:
		r, flags = fpAdd(singlePrec, mode, a, b)
	case opFSUBS:
		r, flags = fpSub(singlePrec, mode, a, b)
	case opFMULS:
		r, flags = fpMul(singlePrec, mode, a, b)
	case opFDIVS:
		r, flags = fpDiv(singlePrec, mode, a, b)
	case opFSQRTS:
		r, flags = fpSqrt(singlePrec, mode, a)
	case opFSGNJS:
		h.setFreg32(d.rd, float32(math.Copysign(a, b)))
		return
	case opFSGNJNS:
		h.setFreg32(d.rd, float32(math.Copysign(a, -b)))
		return
	case opFSGNJXS:
		if math.Signbit(a) != math.Signbit(b) {
			h.setFreg32(d.rd, float32(-a))
		} else {
			h.setFreg32(d.rd, float32(a))
		}
		return
	case opFMINS:
		h.csr.AddFFlags(invalidIfSignaling(a, b))
		h.setFreg32(d.rd, float32(fMin64(a, b)))
		return
	case opFMAXS:
		h.csr.AddFFlags(invalidIfSignaling(a, b))
		h.setFreg32(d.rd, float32(fMax64(a, b)))
		return
	}
	h.csr.AddFFlags(flags)
	h.setFreg32(d.rd, float32(r))
}

func fMin64(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return math.Min(a, b)
}

func fMax64(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return math.Max(a, b)
}

// execFToInt covers FP-to-integer conversions, raw bit moves out of
// the float file, classification, and comparisons.
func (h *Hart) execFToInt(d decoded) {
	switch d.op {
	case opFMVXW:
		h.setReg(d.rd, uint64(int64(int32(h.fregs[d.rs1]))))
		return
	case opFMVXD:
		h.setReg(d.rd, h.fregs[d.rs1])
		return
	case opFCLASSS:
		h.setReg(d.rd, classifyFloat32(h.freg32(d.rs1)))
		return
	case opFCLASSD:
		h.setReg(d.rd, classifyFloat64(h.freg64(d.rs1)))
		return
	}

	isD := d.op == opFEQD || d.op == opFLTD || d.op == opFLED ||
		d.op == opFCVTWD || d.op == opFCVTWUD || d.op == opFCVTLD || d.op == opFCVTLUD

	if d.op == opFEQS || d.op == opFLTS || d.op == opFLES || d.op == opFEQD || d.op == opFLTD || d.op == opFLED {
		var a, b float64
		if isD {
			a, b = h.freg64(d.rs1), h.freg64(d.rs2)
		} else {
			a, b = float64(h.freg32(d.rs1)), float64(h.freg32(d.rs2))
		}
		var r bool
		switch d.op {
		case opFEQS, opFEQD:
			r = a == b
			h.csr.AddFFlags(invalidIfSignaling(a, b))
		case opFLTS, opFLTD:
			r = a < b
			h.csr.AddFFlags(invalidIfAnyNaN(a, b))
		case opFLES, opFLED:
			r = a <= b
			h.csr.AddFFlags(invalidIfAnyNaN(a, b))
		}
		if r {
			h.setReg(d.rd, 1)
		} else {
			h.setReg(d.rd, 0)
		}
		return
	}

	var src float64
	if isD {
		src = h.freg64(d.rs1)
	} else {
		src = float64(h.freg32(d.rs1))
	}
	rm := h.effectiveRM(d)
	var bits uint64
	var flags uint64
	switch d.op {
	case opFCVTWS, opFCVTWD:
		bits, flags = floatToInt(src, rm, true, 32)
	case opFCVTWUS, opFCVTWUD:
		bits, flags = floatToInt(src, rm, false, 32)
	case opFCVTLS, opFCVTLD:
		bits, flags = floatToInt(src, rm, true, 64)
	case opFCVTLUS, opFCVTLUD:
		bits, flags = floatToInt(src, rm, false, 64)
	}
	h.csr.AddFFlags(flags)
	h.setReg(d.rd, bits)
}

// invalidIfAnyNaN is the comparison variant of invalidIfSignaling:
// FLT/FLE are non-quiet comparisons and raise NV on any NaN operand,
// not only a signaling one.
func invalidIfAnyNaN(a, b float64) uint64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return fflagNV
	}
	return 0
}

// execIntToF covers integer-to-FP conversions and raw bit moves into
// the float file.
func (h *Hart) execIntToF(d decoded) {
	switch d.op {
	case opFMVWX:
		h.fregs[d.rd] = nanBoxUpper | (h.reg(d.rs1) & 0xFFFFFFFF)
		return
	case opFMVDX:
		h.fregs[d.rd] = h.reg(d.rs1)
		return
	}

	isD := d.op == opFCVTDW || d.op == opFCVTDWU || d.op == opFCVTDL || d.op == opFCVTDLU
	rm := h.effectiveRM(d)
	mode := bigRoundingMode(rm)
	prec := uint(singlePrec)
	if isD {
		prec = doublePrec
	}

	raw := h.reg(d.rs1)
	var v float64
	var flags uint64
	switch d.op {
	case opFCVTSW, opFCVTDW:
		v, flags = intToFloat(raw, true, 32, prec, mode)
	case opFCVTSWU, opFCVTDWU:
		v, flags = intToFloat(raw, false, 32, prec, mode)
	case opFCVTSL, opFCVTDL:
		v, flags = intToFloat(raw, true, 64, prec, mode)
	case opFCVTSLU, opFCVTDLU:
		v, flags = intToFloat(raw, false, 64, prec, mode)
	}
	h.csr.AddFFlags(flags)
	if isD {
		h.setFreg64(d.rd, v)
	} else {
		h.setFreg32(d.rd, float32(v))
	}
}

func classifyFloat32(f float32) uint64 {
	return classifyFloat64(float64(f))
}

// classifyFloat64 implements FCLASS per spec: one-hot result over the
// ten defined classes.
func classifyFloat64(f float64) uint64 {
	neg := math.Signbit(f)
	switch {
	case math.IsNaN(f):
		bits := math.Float64bits(f)
		if bits&(1<<51) == 0 {
			return 1 << 8 // signaling NaN
		}
		return 1 << 9 // quiet NaN
	case math.IsInf(f, -1):
		return 1 << 0
	case math.IsInf(f, 1):
		return 1 << 7
	case f == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case math.Abs(f) < 2.2250738585072014e-308: // subnormal
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}
