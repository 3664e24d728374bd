// Package asmtest exercises the full source-to-execution pipeline: assemble
// a program with asm.Build, load the resulting image into a VM, run it to
// completion, and inspect the final stacks and memory. Every fixture here is
// laid out by hand so that each `lit`'s operand lands on the exact image
// word its fetch cursor will reach — the packed-word encoding interleaves
// code and operand words rather than segregating them, so the source order
// below is load-bearing, not cosmetic.
package asmtest_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bear/asm"
	"bear/cell"
	"bear/device"
	"bear/vm"
)

func assembleAndRun(src string, devices ...device.Device) (*vm.VM, error) {
	image, _, err := asm.Build(src, nil)
	if err != nil {
		return nil, err
	}
	machine := vm.NewFromBytes(image)
	for _, d := range devices {
		machine.WithDevice(d)
	}
	state, err := machine.Start()
	if err != nil {
		return nil, err
	}
	if err := state.Run(); err != nil {
		return nil, err
	}
	return machine, nil
}

var _ = Describe("the source-to-execution pipeline", func() {
	It("sign-extends a byte pushed through lit", func() {
		src := `
lit sext.8 halt nop
d8 253
d8 0
d8 0
d8 0
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(-3)}))
	})

	It("adds two literals", func() {
		src := `
lit lit add halt
d32 7
d32 2
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(9)}))
	})

	It("subtracts tos-nos, not nos-tos", func() {
		src := `
lit lit sub halt
d32 2
d32 7
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(5)}))
	})

	It("subtracts with the operands swapped, flipping the sign", func() {
		src := `
lit lit sub halt
d32 7
d32 2
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(-5)}))
	})

	It("multiplies two negative literals to a positive product", func() {
		src := `
lit lit mul halt
d32 -2
d32 -7
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(14)}))
	})

	It("stores through a forward mark reference into a later word", func() {
		src := `
lit lit store halt
d32 $>
d32 1000
$ d32 0
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(BeEmpty())
		Expect(machine.Image[3]).To(Equal(uint32(1000)))
	})

	It("jumps to a labeled target", func() {
		src := `
lit jump halt nop
d32 target
:target lit halt nop nop
d32 99
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(99)}))
	})

	It("takes ifz:jump when the predicate is zero", func() {
		src := `
lit lit ifz:jump halt
d32 0
d32 target
:target lit halt nop nop
d32 7
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(7)}))
	})

	It("round-trips a byte through a stdin device's io exec/read", func() {
		src := `
lit lit io halt
d32 0
d32 0x03000000
`
		stdin := device.NewStdinDevice(bytes.NewReader([]byte{0x41}))
		machine, err := assembleAndRun(src, stdin)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(0), cell.FromInt32(0x41)}))
	})

	It("writes a single low byte with store.8", func() {
		src := `
lit lit store.8 halt
d32 target
d32 171
:target d32 0
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(BeEmpty())
		Expect(machine.Image[3]).To(Equal(uint32(171)))
	})

	It("packs one little-endian word from four store.8 calls", func() {
		src := `
lit lit store.8 nop
d32 target
d32 0x78
lit lit store.8 nop
d32 target+1
d32 0x56
lit lit store.8 nop
d32 target+2
d32 0x34
lit lit store.8 nop
d32 target+3
d32 0x12
lit load halt nop
d32 target
:target d32 0
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.Cell(0x12345678)}))
	})

	It("rotates the top three data cells with the std rot macro", func() {
		src := `
#include "std";
lit nop nop nop
d32 1
lit nop nop nop
d32 2
lit nop nop nop
d32 3
!rot halt
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(2), cell.FromInt32(3), cell.FromInt32(1)}))
	})

	It("duplicates the second cell onto the top with the std over macro", func() {
		src := `
#include "std";
lit nop nop nop
d32 5
lit nop nop nop
d32 9
!over halt
`
		machine, err := assembleAndRun(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(machine.Data).To(Equal([]cell.Cell{cell.FromInt32(5), cell.FromInt32(9), cell.FromInt32(5)}))
	})
})
