package org

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"go.uber.org/mock/gomock"
)

func tickN(d *DeviceImpl, n int) {
	for i := 0; i < n; i++ {
		d.Tick()
	}
}

var _ = Describe("Device", func() {
	var (
		mockCtrl *gomock.Controller
		returner *MockDataReturner
		t        config.Timing
		d        *DeviceImpl
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		returner = NewMockDataReturner(mockCtrl)
		t = config.Default().DeriveTiming()
		d = NewDevice("DRAM[0]", 8, t)
		d.SetReturner(returner)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should open a row on activate", func() {
		d.ReceiveCommand(&signal.Command{
			Kind: signal.CmdActivate,
			Bank: 1,
			Row:  7,
		})

		b := d.Bank(1)
		Expect(b.State).To(Equal(BankRowActive))
		Expect(b.OpenRow).To(Equal(uint64(7)))
		Expect(b.NextActivate).To(Equal(t.TRC))
		Expect(b.NextPrecharge).To(Equal(t.TRAS))
		Expect(b.NextRead).To(Equal(t.TRCD))
		Expect(d.Bank(0).NextActivate).To(Equal(t.TRRD))
		Expect(d.Bank(0).State).To(Equal(BankIdle))
	})

	It("should return read data after the read latency and burst", func() {
		d.ReceiveCommand(&signal.Command{Kind: signal.CmdActivate, Bank: 0})
		tickN(d, int(t.TRCD))

		d.ReceiveCommand(&signal.Command{
			Kind: signal.CmdReadPrecharge,
			Tag:  3,
			Bank: 0,
			Last: true,
		})
		tickN(d, int(t.RL+t.BL))

		returner.EXPECT().
			ReturnCommand(gomock.Any()).
			Do(func(cmd *signal.Command) {
				Expect(cmd.Kind).To(Equal(signal.CmdReadData))
				Expect(cmd.Tag).To(Equal(uint16(3)))
			})
		d.Tick()
	})

	It("should auto-precharge after a read with precharge", func() {
		d.ReceiveCommand(&signal.Command{Kind: signal.CmdActivate, Bank: 0})
		tickN(d, int(t.TRCD))

		returner.EXPECT().ReturnCommand(gomock.Any()).AnyTimes()
		d.ReceiveCommand(&signal.Command{
			Kind: signal.CmdReadPrecharge,
			Bank: 0,
		})

		tickN(d, int(t.ReadToPre))
		Expect(d.Bank(0).State).To(Equal(BankPrecharging))

		tickN(d, int(t.TRP))
		Expect(d.Bank(0).State).To(Equal(BankIdle))
		Expect(d.Bank(0).NextActivate).To(Equal(t.TRC))
	})

	It("should refresh every bank", func() {
		d.ReceiveCommand(&signal.Command{Kind: signal.CmdRefresh})

		for i := 0; i < d.NumBanks(); i++ {
			Expect(d.Bank(i).State).To(Equal(BankRefreshing))
			Expect(d.Bank(i).NextActivate).To(Equal(t.TRFC))
		}

		tickN(d, int(t.TRFC))

		for i := 0; i < d.NumBanks(); i++ {
			Expect(d.Bank(i).State).To(Equal(BankIdle))
		}
	})

	It("should only power down when all banks are idle", func() {
		d.ReceiveCommand(&signal.Command{Kind: signal.CmdActivate, Bank: 2})
		Expect(d.PowerDown()).To(BeFalse())

		d.ReceiveCommand(&signal.Command{Kind: signal.CmdPrecharge, Bank: 2})
		tickN(d, int(t.TRP))

		Expect(d.PowerDown()).To(BeTrue())
		Expect(d.Bank(0).State).To(Equal(BankPowerDown))
		Expect(d.Bank(0).NextPowerUp).To(Equal(d.Now() + t.TCKE))

		d.PowerUp()
		Expect(d.Bank(0).State).To(Equal(BankAwaking))

		tickN(d, int(t.TXP))
		Expect(d.Bank(0).State).To(Equal(BankIdle))
	})

	It("should panic on commands a device cannot execute", func() {
		Expect(func() {
			d.ReceiveCommand(&signal.Command{Kind: signal.CmdReadData})
		}).To(Panic())
	})

	It("should report bank state changes", func() {
		var seen [][]*Bank
		d.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			Expect(ctx.Pos).To(Equal(HookPosBankState))
			seen = append(seen, ctx.Item.([]*Bank))
		}))

		d.Tick()
		Expect(seen).To(BeEmpty())

		d.ReceiveCommand(&signal.Command{Kind: signal.CmdActivate, Bank: 0})
		d.Tick()
		d.Tick()

		Expect(seen).To(HaveLen(1))
	})

	It("should never move a timing counter backwards", func() {
		returner.EXPECT().ReturnCommand(gomock.Any()).AnyTimes()

		kinds := []signal.CommandKind{
			signal.CmdActivate,
			signal.CmdRead,
			signal.CmdReadPrecharge,
			signal.CmdWrite,
			signal.CmdWritePrecharge,
			signal.CmdPrecharge,
			signal.CmdRefresh,
		}
		rng := rand.New(rand.NewSource(7))

		type snapshot struct{ act, rd, wr, pre, pu uint64 }
		take := func() []snapshot {
			s := make([]snapshot, d.NumBanks())
			for i := range s {
				b := d.Bank(i)
				s[i] = snapshot{
					b.NextActivate, b.NextRead, b.NextWrite,
					b.NextPrecharge, b.NextPowerUp,
				}
			}

			return s
		}

		prev := take()
		for i := 0; i < 2000; i++ {
			if i%3 == 0 {
				d.ReceiveCommand(&signal.Command{
					Kind: kinds[rng.Intn(len(kinds))],
					Bank: rng.Intn(d.NumBanks()),
					Row:  uint64(rng.Intn(16)),
				})
			}

			d.Tick()

			cur := take()
			for b := range cur {
				Expect(cur[b].act).To(BeNumerically(">=", prev[b].act))
				Expect(cur[b].rd).To(BeNumerically(">=", prev[b].rd))
				Expect(cur[b].wr).To(BeNumerically(">=", prev[b].wr))
				Expect(cur[b].pre).To(BeNumerically(">=", prev[b].pre))
				Expect(cur[b].pu).To(BeNumerically(">=", prev[b].pu))
			}
			prev = cur
		}
	})
})
