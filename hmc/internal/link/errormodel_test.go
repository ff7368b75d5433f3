package link

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/hmc/signal"
)

var _ = Describe("BitErrorModel", func() {
	It("should scale the packet error probability with the length", func() {
		m := NewBitErrorModel(-1, rand.New(rand.NewSource(1)))

		Expect(m.Probability(1)).To(
			BeNumerically("~", 1-math.Pow(0.9, 128), 1e-12))
		Expect(m.Probability(5)).To(
			BeNumerically("~", 1-math.Pow(0.9, 640), 1e-12))
	})

	It("should stay accurate for tiny error rates", func() {
		m := NewBitErrorModel(-10, rand.New(rand.NewSource(1)))

		Expect(m.Probability(1)).To(BeNumerically("~", 128e-10, 1e-15))
	})

	It("should always corrupt at a bit error rate of one", func() {
		m := NewBitErrorModel(0, rand.New(rand.NewSource(1)))
		p := signal.NewFlow(signal.CmdNULL)

		for i := 0; i < 10; i++ {
			Expect(m.Corrupts(p)).To(BeTrue())
		}
	})

	It("should hit roughly the expected share of packets", func() {
		m := NewBitErrorModel(-3, rand.New(rand.NewSource(7)))
		p := signal.NewFlow(signal.CmdNULL)

		hits := 0
		for i := 0; i < 10000; i++ {
			if m.Corrupts(p) {
				hits++
			}
		}

		expected := m.Probability(1) * 10000
		Expect(float64(hits)).To(BeNumerically("~", expected, 300))
	})

	It("should never corrupt without errors", func() {
		Expect(NoErrors{}.Corrupts(signal.NewFlow(signal.CmdNULL))).
			To(BeFalse())
	})
})
