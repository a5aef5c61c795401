package rvemu

import "testing"

func TestSstatusProjectsFromMstatus(t *testing.T) {
	c := newCsr()
	c.Write(csrMstatus, mstatusSIE|mstatusSPP|mstatusMIE)

	sstatus, ok := c.Read(csrSstatus)
	if !ok {
		t.Fatal("sstatus not implemented")
	}
	if sstatus&mstatusMIE != 0 {
		t.Fatal("sstatus leaked mstatus.MIE, which is not part of its projection")
	}
	if sstatus&mstatusSIE == 0 || sstatus&mstatusSPP == 0 {
		t.Fatal("sstatus missing SIE/SPP bits present in mstatus")
	}
}

func TestSieSipShadowMie(t *testing.T) {
	c := newCsr()
	c.Write(csrSie, ipSSIP|ipSTIP)

	mie, _ := c.Read(csrMie)
	if mie&(ipSSIP|ipSTIP) != ipSSIP|ipSTIP {
		t.Fatalf("mie = 0x%x, want SSIP|STIP set via sie write", mie)
	}

	c.Write(csrMip, ipSSIP)
	sip, _ := c.Read(csrSip)
	if sip != ipSSIP {
		t.Fatalf("sip = 0x%x, want only SSIP visible", sip)
	}
}

func TestMisaWritesAreIgnored(t *testing.T) {
	c := newCsr()
	before, _ := c.Read(csrMisa)
	if ok := c.Write(csrMisa, 0xFFFFFFFF); !ok {
		t.Fatal("misa write should report success")
	}
	after, _ := c.Read(csrMisa)
	if before != after {
		t.Fatalf("misa changed from 0x%x to 0x%x, want no-op", before, after)
	}
}

func TestTimeCounterIsReadOnly(t *testing.T) {
	c := newCsr()
	c.setMTime(42)
	v, ok := c.Read(csrTime)
	if !ok || v != 42 {
		t.Fatalf("time = %d, ok=%v, want 42", v, ok)
	}
	if c.Write(csrTime, 0) {
		t.Fatal("time CSR must reject direct writes")
	}
}

func TestUnimplementedCsrRejected(t *testing.T) {
	c := newCsr()
	if _, ok := c.Read(0x7FF); ok {
		t.Fatal("expected an unimplemented CSR index to report false")
	}
	if c.Write(0x7FF, 1) {
		t.Fatal("expected write to an unimplemented CSR to fail")
	}
}
