package cmdq

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/internal/org"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"go.uber.org/mock/gomock"
)

type fixedClock struct {
	now uint64
}

func (c *fixedClock) Now() uint64 {
	return c.now
}

func cmd(
	kind signal.CommandKind,
	tag uint16,
	bank int,
	row uint64,
) *signal.Command {
	return &signal.Command{
		Kind:           kind,
		Tag:            tag,
		Bank:           bank,
		Row:            row,
		DataSize:       32,
		ResponseLength: 2,
		Last:           kind != signal.CmdActivate,
	}
}

var _ = Describe("CommandQueueImpl", func() {
	var (
		mockCtrl *gomock.Controller
		budget   *MockResponseBudget
		dev      *org.DeviceImpl
		clock    *fixedClock
	)

	newQueue := func(perBank, openPage bool) *CommandQueueImpl {
		q := NewCommandQueue("CQ", 8, 16, perBank)
		q.OpenPage = openPage
		q.MaxRowAccesses = 8
		q.TFAW = 10
		q.Banks = dev
		q.Budget = budget
		q.Clock = clock

		return q
	}

	openRow := func(bank int, row uint64) {
		b := dev.Bank(bank)
		b.State = org.BankRowActive
		b.OpenRow = row
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		budget = NewMockResponseBudget(mockCtrl)
		dev = org.NewDevice("DRAM", 8, config.Timing{})
		clock = &fixedClock{now: 100}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("closed page", func() {
		var q *CommandQueueImpl

		BeforeEach(func() {
			q = newQueue(true, false)
		})

		It("should wait one cycle after a command arrives", func() {
			act := cmd(signal.CmdActivate, 1, 0, 1)
			q.Accept(0, act)

			Expect(q.GetCommandToIssue()).To(BeNil())

			q.Tick()

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(act))
			Expect(q.Empty()).To(BeTrue())
		})

		It("should issue an activate and then its read", func() {
			act := cmd(signal.CmdActivate, 1, 0, 1)
			read := cmd(signal.CmdReadPrecharge, 1, 0, 1)
			q.Accept(0, act)
			q.Accept(0, read)
			q.Tick()

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(act))

			openRow(0, 1)
			budget.EXPECT().CanReserve(2).Return(true)

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(read))
		})

		It("should hold a read when the response would not fit", func() {
			openRow(0, 1)
			q.Accept(0, cmd(signal.CmdReadPrecharge, 1, 0, 1))
			q.Tick()

			budget.EXPECT().CanReserve(2).Return(false)

			Expect(q.GetCommandToIssue()).To(BeNil())
		})

		It("should not separate a read from its pending activate", func() {
			openRow(0, 1)
			q.Accept(0, cmd(signal.CmdActivate, 1, 0, 1))
			q.Accept(0, cmd(signal.CmdReadPrecharge, 1, 0, 1))
			q.Tick()

			Expect(q.GetCommandToIssue()).To(BeNil())
		})

		It("should allow four activates in a tFAW window", func() {
			for b := 0; b < 5; b++ {
				q.Accept(b, cmd(signal.CmdActivate, uint16(b), b, 0))
			}
			q.Tick()

			for b := 0; b < 4; b++ {
				c := q.GetCommandToIssue()
				Expect(c.Kind).To(Equal(signal.CmdActivate))
				Expect(c.Bank).To(Equal(b))
			}

			for i := 0; i < 6; i++ {
				Expect(q.GetCommandToIssue()).To(BeNil())
			}

			c := q.GetCommandToIssue()
			Expect(c.Bank).To(Equal(4))
		})

		It("should refresh once every bank is closed", func() {
			q.Accept(0, cmd(signal.CmdActivate, 1, 0, 1))
			q.Tick()
			q.RequestRefresh()

			openRow(3, 2)
			Expect(q.GetCommandToIssue()).To(BeNil())

			dev.Bank(3).State = org.BankIdle
			c := q.GetCommandToIssue()

			Expect(c.Kind).To(Equal(signal.CmdRefresh))
			Expect(q.RefreshPending()).To(BeFalse())
		})

		It("should let an open row finish before a refresh", func() {
			act := cmd(signal.CmdActivate, 1, 0, 1)
			read := cmd(signal.CmdReadPrecharge, 1, 0, 1)
			q.Accept(0, act)
			q.Accept(0, read)
			q.Accept(1, cmd(signal.CmdActivate, 2, 1, 4))
			q.Accept(1, cmd(signal.CmdReadPrecharge, 2, 1, 4))
			q.Tick()

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(act))

			openRow(0, 1)
			q.RequestRefresh()
			budget.EXPECT().CanReserve(2).Return(true)

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(read))

			dev.Bank(0).State = org.BankIdle
			c := q.GetCommandToIssue()

			Expect(c.Kind).To(Equal(signal.CmdRefresh))
			Expect(q.Len(1)).To(Equal(2))
		})

		It("should not refresh a powered down device", func() {
			Expect(dev.PowerDown()).To(BeTrue())
			q.RequestRefresh()

			Expect(q.GetCommandToIssue()).To(BeNil())
			Expect(q.RefreshPending()).To(BeTrue())
		})

		It("should lock a bank for an atomic until its write-back", func() {
			openRow(0, 1)

			atomicRead := cmd(signal.CmdRead, 9, 0, 1)
			atomicRead.Atomic = true
			other := cmd(signal.CmdReadPrecharge, 10, 0, 1)
			q.Accept(0, atomicRead)
			q.Accept(0, other)
			q.Tick()

			budget.EXPECT().CanReserve(gomock.Any()).Return(true).AnyTimes()

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(atomicRead))
			Expect(q.Locked(0)).To(BeTrue())
			Expect(q.GetCommandToIssue()).To(BeNil())

			writeBack := cmd(signal.CmdWritePrecharge, 9, 0, 1)
			writeBack.Atomic = true
			writeBack.WriteBack = true
			q.AcceptWriteBack(writeBack)

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(writeBack))
			Expect(q.Locked(0)).To(BeFalse())
			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(other))
		})

		It("should panic on commands it cannot schedule", func() {
			Expect(func() {
				q.IsIssuable(&signal.Command{Kind: signal.CmdReadData})
			}).To(Panic())
		})
	})

	Context("open page", func() {
		var q *CommandQueueImpl

		BeforeEach(func() {
			q = newQueue(false, true)
			budget.EXPECT().CanReserve(gomock.Any()).Return(true).AnyTimes()
		})

		It("should keep same-row commands in order", func() {
			openRow(0, 3)
			openRow(1, 5)
			dev.Bank(0).NextWrite = 200
			dev.Bank(1).NextPrecharge = 1000

			writeA := cmd(signal.CmdWrite, 1, 0, 3)
			writeB := cmd(signal.CmdWrite, 2, 0, 3)
			readC := cmd(signal.CmdRead, 3, 0, 3)
			readE := cmd(signal.CmdRead, 4, 1, 5)

			q.Accept(0, cmd(signal.CmdActivate, 1, 0, 3))
			q.Accept(0, writeA)
			q.Accept(0, cmd(signal.CmdActivate, 2, 0, 3))
			q.Accept(0, writeB)
			q.Accept(0, cmd(signal.CmdActivate, 3, 0, 3))
			q.Accept(0, readC)
			q.Accept(1, readE)
			q.Tick()

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(readE))
			Expect(q.GetCommandToIssue()).To(BeNil())

			dev.Bank(0).NextWrite = 0

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(writeA))
			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(writeB))
			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(readC))
			Expect(q.Empty()).To(BeTrue())
		})

		It("should close a row with no more work", func() {
			openRow(0, 3)

			c := q.GetCommandToIssue()

			Expect(c.Kind).To(Equal(signal.CmdPrecharge))
			Expect(c.Bank).To(Equal(0))
		})

		It("should close a row after too many accesses", func() {
			q.MaxRowAccesses = 2
			openRow(0, 3)

			for tag := uint16(1); tag <= 3; tag++ {
				q.Accept(0, cmd(signal.CmdActivate, tag, 0, 3))
				q.Accept(0, cmd(signal.CmdRead, tag, 0, 3))
			}
			q.Tick()

			Expect(q.GetCommandToIssue().Tag).To(Equal(uint16(1)))
			Expect(q.GetCommandToIssue().Tag).To(Equal(uint16(2)))

			c := q.GetCommandToIssue()
			Expect(c.Kind).To(Equal(signal.CmdPrecharge))
			Expect(q.Len(0)).To(Equal(2))
		})

		It("should close open rows before a refresh", func() {
			openRow(0, 3)
			q.RequestRefresh()

			c := q.GetCommandToIssue()

			Expect(c.Kind).To(Equal(signal.CmdPrecharge))
			Expect(q.RefreshPending()).To(BeTrue())

			dev.Bank(0).State = org.BankIdle
			c = q.GetCommandToIssue()

			Expect(c.Kind).To(Equal(signal.CmdRefresh))
		})

		It("should not close a row locked by an atomic", func() {
			openRow(0, 3)

			atomicRead := cmd(signal.CmdRead, 9, 0, 3)
			atomicRead.Atomic = true
			q.Accept(0, atomicRead)
			q.Tick()

			Expect(q.GetCommandToIssue()).To(BeIdenticalTo(atomicRead))
			Expect(q.GetCommandToIssue()).To(BeNil())

			q.Unlock(0)

			Expect(q.GetCommandToIssue().Kind).To(Equal(signal.CmdPrecharge))
		})
	})
})
