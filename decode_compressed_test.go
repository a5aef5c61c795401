package rvemu

import "testing"

// Encodings below are hand-assembled from the RVC v2.0 tables rather
// than produced by decode16 itself, so they exercise the bit-field
// extraction independently of the implementation under test.

func TestDecode16Nop(t *testing.T) {
	d := decode16(0x0001) // c.nop
	if d.op != opADDI || d.rd != 0 || d.rs1 != 0 || d.imm != 0 {
		t.Fatalf("c.nop decoded as %+v", d)
	}
	if d.length != 2 {
		t.Fatalf("length = %d, want 2", d.length)
	}
}

func TestDecode16Li(t *testing.T) {
	d := decode16(0x4295) // c.li x5, 5
	if d.op != opADDI || d.rd != 5 || d.rs1 != 0 || d.imm != 5 {
		t.Fatalf("c.li decoded as %+v", d)
	}
}

func TestDecode16Addi4spn(t *testing.T) {
	d := decode16(0x0040) // c.addi4spn x8, sp, 4
	if d.op != opADDI || d.rd != 8 || d.rs1 != 2 || d.imm != 4 {
		t.Fatalf("c.addi4spn decoded as %+v", d)
	}
}

func TestDecode16Sw(t *testing.T) {
	d := decode16(0xc044) // c.sw x9, 4(x8)
	if d.op != opSW || d.rs1 != 8 || d.rs2 != 9 || d.imm != 4 {
		t.Fatalf("c.sw decoded as %+v", d)
	}
}

func TestDecode16Beqz(t *testing.T) {
	d := decode16(0xc009) // c.beqz x8, +2
	if d.op != opBEQ || d.rs1 != 8 || d.rs2 != 0 || d.imm != 2 {
		t.Fatalf("c.beqz decoded as %+v", d)
	}
}

func TestDecode16Add(t *testing.T) {
	d := decode16(0x929a) // c.add x5, x6
	if d.op != opADD || d.rd != 5 || d.rs1 != 5 || d.rs2 != 6 {
		t.Fatalf("c.add decoded as %+v", d)
	}
}

func TestDecode16Jr(t *testing.T) {
	d := decode16(0x8082) // c.jr x1
	if d.op != opJALR || d.rd != 0 || d.rs1 != 1 || d.imm != 0 {
		t.Fatalf("c.jr decoded as %+v", d)
	}
}

func TestDecode16Lwsp(t *testing.T) {
	d := decode16(0x42c2) // c.lwsp x5, 16(sp)
	if d.op != opLW || d.rd != 5 || d.rs1 != 2 || d.imm != 16 {
		t.Fatalf("c.lwsp decoded as %+v", d)
	}
}

func TestDecode16Swsp(t *testing.T) {
	d := decode16(0xc81a) // c.swsp x6, 16(sp)
	if d.op != opSW || d.rs1 != 2 || d.rs2 != 6 || d.imm != 16 {
		t.Fatalf("c.swsp decoded as %+v", d)
	}
}

func TestDecode16Srli(t *testing.T) {
	d := decode16(0x800d) // c.srli x8, 3
	if d.op != opSRLI || d.rd != 8 || d.rs1 != 8 || d.imm != 3 {
		t.Fatalf("c.srli decoded as %+v", d)
	}
}

func TestDecode16Sub(t *testing.T) {
	d := decode16(0x8c05) // c.sub x8, x9
	if d.op != opSUB || d.rd != 8 || d.rs1 != 8 || d.rs2 != 9 {
		t.Fatalf("c.sub decoded as %+v", d)
	}
}

func TestDecode16J(t *testing.T) {
	d := decode16(0xa029) // c.j +10
	if d.op != opJAL || d.rd != 0 || d.imm != 10 {
		t.Fatalf("c.j decoded as %+v", d)
	}
}

func TestDecode16Ebreak(t *testing.T) {
	d := decode16(0x9002) // c.ebreak
	if d.op != opEBREAK {
		t.Fatalf("c.ebreak decoded as %+v", d)
	}
}
