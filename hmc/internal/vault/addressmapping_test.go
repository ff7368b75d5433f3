package vault

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AddressMapper", func() {
	It("should take bank, column and row above the vault bits", func() {
		m := NewAddressMapper(32, 32, 8, 16384, 1024)

		addr := uint64(5)<<5 | // vault
			uint64(3)<<10 | // bank
			uint64(7)<<13 | // column
			uint64(100)<<18 // row

		Expect(m.Map(addr)).To(Equal(Location{
			Bank:   3,
			Row:    100,
			Column: 7 << 5,
		}))
	})

	It("should ignore the offset inside a block", func() {
		m := NewAddressMapper(64, 16, 16, 16384, 1024)

		Expect(m.Map(0x3f)).To(Equal(m.Map(0)))
		Expect(m.Map(uint64(1) << 10).Bank).To(Equal(1))
	})

	It("should wrap rows", func() {
		m := NewAddressMapper(32, 32, 8, 16384, 1024)

		Expect(m.Map(uint64(16384+2) << 18).Row).To(Equal(uint64(2)))
	})

	It("should reject sizes that are not powers of two", func() {
		Expect(func() { NewAddressMapper(48, 32, 8, 16384, 1024) }).
			To(Panic())
	})
})
