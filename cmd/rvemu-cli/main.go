// Command rvemu-cli boots a kernel image (and, optionally, a disk
// image) on a single rvemu hart, bridging host stdin/stdout to the
// emulated UART. Grounded in shape on bassosimone-risc32's cmd/interp,
// generalized from that interpreter's buffered fmt.Scanln stepping to
// a raw-terminal passthrough loop, since a booting kernel expects an
// unbuffered, unechoed tty.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/d0iasm/rvemu"
)

func main() {
	log.SetFlags(0)
	kernelPath := flag.String("kernel", "", "path to the kernel/firmware image to load at DRAM base")
	diskPath := flag.String("disk", "", "optional path to a raw disk image for the virtio block device")
	verbose := flag.Bool("v", false, "log each retired instruction's PC")
	flag.Parse()

	if *kernelPath == "" {
		log.Fatal("usage: rvemu-cli -kernel <image> [-disk <image>] [-v]")
	}

	kernel, err := os.ReadFile(*kernelPath)
	if err != nil {
		log.Fatalf("rvemu-cli: reading kernel image: %v", err)
	}

	h := rvemu.New()
	if err := h.SetDRAM(kernel); err != nil {
		log.Fatalf("rvemu-cli: loading kernel image: %v", err)
	}

	if *diskPath != "" {
		disk, err := os.ReadFile(*diskPath)
		if err != nil {
			log.Fatalf("rvemu-cli: reading disk image: %v", err)
		}
		h.SetDisk(disk)
	}

	h.SetOutput(func(b byte) {
		os.Stdout.Write([]byte{b})
	})

	restore, err := bridgeStdin(h)
	if err != nil {
		log.Fatalf("rvemu-cli: %v", err)
	}
	defer restore()

	if err := run(h, *verbose); err != nil {
		var fatal *rvemu.FatalError
		if errors.As(err, &fatal) {
			fmt.Fprintf(os.Stderr, "\nrvemu-cli: %v\n", fatal)
			os.Exit(1)
		}
		log.Fatalf("rvemu-cli: %v", err)
	}
}

func run(h *rvemu.Hart, verbose bool) error {
	if !verbose {
		return h.Start()
	}
	for {
		if verbose {
			fmt.Fprintf(os.Stderr, "rvemu: pc=0x%x mode=%d\n", h.PC(), h.Mode())
		}
		if err := h.Step(); err != nil {
			return err
		}
	}
}

// bridgeStdin puts the controlling terminal into raw mode (so the
// guest sees every keystroke immediately, unechoed) and forwards bytes
// to the hart's UART input queue from a background goroutine. It
// returns a restore function that undoes the raw-mode switch; safe to
// call even when stdin isn't a terminal (e.g. piped input in tests).
func bridgeStdin(h *rvemu.Hart) (func(), error) {
	fd := int(os.Stdin.Fd())
	noop := func() {}

	if !term.IsTerminal(fd) {
		go forwardStdin(h)
		return noop, nil
	}

	prev, err := term.MakeRaw(fd)
	if err != nil {
		return noop, fmt.Errorf("putting stdin into raw mode: %w", err)
	}
	go forwardStdin(h)
	return func() { term.Restore(fd, prev) }, nil
}

func forwardStdin(h *rvemu.Hart) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			h.PushInputByte(buf[0])
		}
		if err != nil {
			return
		}
	}
}
