package rvemu

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// snapshotVersion guards the wire format of SaveState/LoadState.
// Bumped whenever a field is added, removed, or reordered, per the
// teacher's serialize.go convention of a leading version word.
const snapshotVersion = 1

// SaveState serializes the hart's architectural state (registers, PC,
// mode, CSR file, DRAM contents) to a byte stream, skipping devices:
// a restored hart resumes instruction execution from the same point
// but UART/CLINT/PLIC/virtio resume as freshly reset, per spec.md §9's
// Non-goals around device state persistence.
func (h *Hart) SaveState() ([]byte, error) {
	var buf bytes.Buffer
	w := func(v interface{}) error { return binary.Write(&buf, binary.LittleEndian, v) }

	if err := w(uint32(snapshotVersion)); err != nil {
		return nil, err
	}
	if err := w(h.regs); err != nil {
		return nil, err
	}
	if err := w(h.fregs); err != nil {
		return nil, err
	}
	if err := w(h.pc); err != nil {
		return nil, err
	}
	if err := w(uint8(h.mode)); err != nil {
		return nil, err
	}
	if err := w(h.csr.regs); err != nil {
		return nil, err
	}
	if err := w(uint64(len(h.bus.dram.mem))); err != nil {
		return nil, err
	}
	if err := w(h.bus.dram.mem); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadState restores a hart from a buffer produced by SaveState. The
// hart's device set must already be constructed (e.g. via New) before
// calling LoadState, since devices are not part of the snapshot.
func (h *Hart) LoadState(data []byte) error {
	r := bytes.NewReader(data)
	read := func(v interface{}) error { return binary.Read(r, binary.LittleEndian, v) }

	var version uint32
	if err := read(&version); err != nil {
		return fmt.Errorf("rvemu: reading snapshot version: %w", err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("rvemu: unsupported snapshot version %d (want %d)", version, snapshotVersion)
	}
	if err := read(&h.regs); err != nil {
		return err
	}
	if err := read(&h.fregs); err != nil {
		return err
	}
	if err := read(&h.pc); err != nil {
		return err
	}
	var mode uint8
	if err := read(&mode); err != nil {
		return err
	}
	h.mode = Mode(mode)
	if err := read(&h.csr.regs); err != nil {
		return err
	}

	var dramLen uint64
	if err := read(&dramLen); err != nil {
		return err
	}
	mem := make([]byte, dramLen)
	if err := read(mem); err != nil {
		return err
	}
	h.bus.dram.mem = mem
	return nil
}
