package tracegen

import (
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hmcsim/hmc/signal"
)

var _ = Describe("Driver", func() {
	var (
		mockCtrl  *gomock.Controller
		src       *MockSource
		submitter *MockSubmitter
		d         *Driver
	)

	read := Request{Cycle: 5, Kind: signal.DataRead, Addr: 0x40, Size: 32}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		src = NewMockSource(mockCtrl)
		submitter = NewMockSubmitter(mockCtrl)
		d = NewDriver(src, 1)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should hold a request until its cycle", func() {
		src.EXPECT().Next(uint64(3)).Return(read, true, nil)

		issued, err := d.Tick(3, submitter)

		Expect(err).NotTo(HaveOccurred())
		Expect(issued).To(BeFalse())
		Expect(d.Pending()).To(Equal(1))
	})

	It("should not poll a full backlog", func() {
		src.EXPECT().Next(uint64(3)).Return(read, true, nil)
		submitter.EXPECT().Submit(signal.DataRead, uint64(0x40), 32).Return(false)

		d.Tick(3, submitter)
		issued, err := d.Tick(6, submitter)

		Expect(err).NotTo(HaveOccurred())
		Expect(issued).To(BeFalse())
		Expect(d.Pending()).To(Equal(1))
	})

	It("should submit a due request", func() {
		src.EXPECT().Next(uint64(5)).Return(read, true, nil)
		submitter.EXPECT().Submit(signal.DataRead, uint64(0x40), 32).Return(true)

		issued, err := d.Tick(5, submitter)

		Expect(err).NotTo(HaveOccurred())
		Expect(issued).To(BeTrue())
		Expect(d.Issued()).To(Equal(uint64(1)))
		Expect(d.Pending()).To(BeZero())
	})

	It("should become exhausted at the end of the source", func() {
		src.EXPECT().Next(uint64(0)).Return(Request{}, false, io.EOF)

		issued, err := d.Tick(0, submitter)

		Expect(err).NotTo(HaveOccurred())
		Expect(issued).To(BeFalse())
		Expect(d.Exhausted()).To(BeTrue())

		_, err = d.Tick(1, submitter)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should report source errors", func() {
		src.EXPECT().Next(uint64(0)).Return(Request{}, false, errors.New("bad"))

		_, err := d.Tick(0, submitter)

		Expect(err).To(MatchError("bad"))
	})

	It("should keep every request when unbounded", func() {
		d = NewDriver(src, 0)
		src.EXPECT().Next(gomock.Any()).Return(read, true, nil).Times(3)

		for now := uint64(0); now < 3; now++ {
			d.Tick(now, submitter)
		}

		Expect(d.Pending()).To(Equal(3))
	})
})
