// Package vault models the vault controllers of a memory cube. A vault
// controller takes request packets from the crossbar, turns them into DRAM
// commands, and turns the data its DRAM returns into response packets.
package vault

import (
	"log"
	"math"
	"math/rand"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/internal/cmdq"
	"github.com/sarchlab/hmcsim/hmc/internal/org"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// An Upstream takes the responses a vault sends back.
type Upstream interface {
	ReceiveUp(p *signal.Packet) bool
}

type countdownCommand struct {
	cmd       *signal.Command
	countdown uint64
}

// Comp is a vault controller.
type Comp struct {
	hooking.HookableBase

	name string
	id   int
	now  uint64

	downBuffer  *queueing.Buffer[*signal.Packet]
	upBuffer    *queueing.Buffer[*signal.Packet]
	bufPopDelay int

	creator  CommandCreator
	cmdQueue cmdq.CommandQueue
	dram     org.Device
	upstream Upstream
	rng      *rand.Rand

	timing        config.Timing
	hostPerDRAM   float64
	useLowPower   bool
	refreshPeriod uint64

	cmdBus         *signal.Command
	cmdCyclesLeft  uint64
	dataBus        *signal.Command
	dataCyclesLeft uint64
	writeData      []countdownCommand
	atomics        []countdownCommand

	pendingReads    map[uint16]int
	pendingDataSize int

	refreshCountdown uint64
	powerDown        bool
}

// Name returns the name of the vault.
func (c *Comp) Name() string {
	return c.name
}

// ID returns the index of the vault in the cube.
func (c *Comp) ID() int {
	return c.id
}

// Now returns the current DRAM cycle of the vault.
func (c *Comp) Now() uint64 {
	return c.now
}

// DRAM returns the device the vault drives.
func (c *Comp) DRAM() org.Device {
	return c.dram
}

// CommandQueue returns the queue of DRAM commands waiting to issue.
func (c *Comp) CommandQueue() cmdq.CommandQueue {
	return c.cmdQueue
}

// DownBuffer returns the buffer of request packets.
func (c *Comp) DownBuffer() *queueing.Buffer[*signal.Packet] {
	return c.downBuffer
}

// UpBuffer returns the buffer of response packets.
func (c *Comp) UpBuffer() *queueing.Buffer[*signal.Packet] {
	return c.upBuffer
}

// SetUpstream sets where responses go.
func (c *Comp) SetUpstream(u Upstream) {
	c.upstream = u
}

// PoweredDown tells if the DRAM of the vault is in power-down mode.
func (c *Comp) PoweredDown() bool {
	return c.powerDown
}

// ReceiveDown takes a request packet from the crossbar. It returns false if
// the request buffer is full.
func (c *Comp) ReceiveDown(p *signal.Packet) bool {
	if !c.downBuffer.CanPush(p.Slots()) {
		return false
	}

	if c.downBuffer.Empty() {
		c.bufPopDelay = 1
	}

	c.downBuffer.Push(p)

	return true
}

// CanReserve tells if a response of the given length still fits in the
// response buffer once every reserved response is in.
func (c *Comp) CanReserve(flits int) bool {
	free := c.upBuffer.Capacity() - c.upBuffer.Size()
	return c.pendingDataSize+flits <= free
}

// Busy tells if the vault holds any request or response.
func (c *Comp) Busy() bool {
	return !c.downBuffer.Empty() ||
		!c.upBuffer.Empty() ||
		!c.cmdQueue.Empty() ||
		c.cmdBus != nil ||
		c.dataBus != nil ||
		len(c.writeData) > 0 ||
		len(c.atomics) > 0 ||
		len(c.pendingReads) > 0
}

// Tick advances the vault by one DRAM cycle. The DRAM is ticked separately,
// after every vault of the cube.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.issueToDRAM() || madeProgress
	madeProgress = c.transferWriteData() || madeProgress
	c.countDownRefresh()
	madeProgress = c.finishAtomics() || madeProgress
	madeProgress = c.convertRequests() || madeProgress
	madeProgress = c.sendUp() || madeProgress
	madeProgress = c.popCommand() || madeProgress
	c.managePower()
	madeProgress = c.cmdQueue.Tick() || madeProgress

	c.now++

	if c.bufPopDelay > 0 {
		c.bufPopDelay--
	}

	return madeProgress
}

func (c *Comp) issueToDRAM() bool {
	if c.cmdBus == nil {
		return false
	}

	c.cmdCyclesLeft--
	if c.cmdCyclesLeft > 0 {
		return true
	}

	cmd := c.cmdBus
	c.cmdBus = nil

	if cmd.Trace != nil {
		cmd.Trace.MarkVaultIssue(c.now)
	}

	c.dram.ReceiveCommand(cmd)

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    signal.HookPosCommandIssue,
			Item: signal.CommandIssue{
				Vault:   c.id,
				Command: cmd,
				Cycle:   c.now,
			},
		})
	}

	return true
}

func (c *Comp) transferWriteData() bool {
	madeProgress := false

	if c.dataBus != nil {
		madeProgress = true

		c.dataCyclesLeft--
		if c.dataCyclesLeft == 0 {
			cmd := c.dataBus
			c.dataBus = nil

			if cmd.Last {
				c.finishWrite(cmd)
			}

			c.dram.ReceiveCommand(cmd)
		}
	}

	if len(c.writeData) == 0 {
		return madeProgress
	}

	if c.writeData[0].countdown == 0 {
		if c.dataBus != nil {
			log.Panicf("%s: data bus collision between %s and %s",
				c.name, c.dataBus, c.writeData[0].cmd)
		}

		c.dataBus = c.writeData[0].cmd
		c.dataCyclesLeft = max(c.timing.BL, 1)
		c.writeData = c.writeData[1:]
	}

	for i := range c.writeData {
		if c.writeData[i].countdown > 0 {
			c.writeData[i].countdown--
		}
	}

	return true
}

func (c *Comp) finishWrite(cmd *signal.Command) {
	if cmd.Posted {
		c.retirePosted(cmd)
		return
	}

	c.respond(cmd)
}

// retirePosted records the latencies of a posted request, which no response
// will carry back to the host.
func (c *Comp) retirePosted(cmd *signal.Command) {
	t := cmd.Trace
	if t == nil {
		return
	}

	if cmd.Segment {
		t.Segments--
		if t.Segments > 0 {
			return
		}
	}

	hostNow := uint64(math.Ceil(float64(c.now) * c.hostPerDRAM))
	t.TranFullLat = hostNow - t.TranTransmitTime
	t.LinkFullLat = hostNow - t.LinkTransmitTime
	t.MarkVaultDone(c.now)
	t.MustBeComplete()

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    signal.HookPosTransactionRetire,
		Item:   t,
	})
}

func (c *Comp) countDownRefresh() {
	if c.refreshCountdown == 0 {
		return
	}

	c.refreshCountdown--
	if c.refreshCountdown == 0 {
		c.cmdQueue.RequestRefresh()
		c.refreshCountdown = c.refreshPeriod
	}
}

// finishAtomics completes the operation of atomics whose read data has
// arrived, one cycle after the data.
func (c *Comp) finishAtomics() bool {
	if len(c.atomics) == 0 {
		return false
	}

	remaining := c.atomics[:0]

	for _, a := range c.atomics {
		if a.countdown > 1 {
			a.countdown--
			remaining = append(remaining, a)

			continue
		}

		c.completeAtomic(a.cmd)
	}

	c.atomics = remaining

	return true
}

func (c *Comp) completeAtomic(read *signal.Command) {
	if read.PacketCmd.IsCompareOnly() {
		c.cmdQueue.Unlock(read.Bank)
		c.respond(read)

		return
	}

	wb := read.Clone(c.creator.WriteBackKind())
	wb.WriteBack = true
	wb.Last = true
	c.cmdQueue.AcceptWriteBack(wb)
}

func (c *Comp) convertRequests() bool {
	if c.bufPopDelay > 0 || c.downBuffer.Empty() {
		return false
	}

	madeProgress := false
	blocked := make(map[int]bool)

	for i := 0; i < c.downBuffer.Size(); {
		p := c.downBuffer.Item(i)
		cmds := c.creator.Create(p)
		bank := cmds[0].Bank

		if blocked[bank] || !c.cmdQueue.CanAccept(bank, len(cmds)) {
			blocked[bank] = true
			i += p.Slots()

			continue
		}

		for _, cmd := range cmds {
			if cmd.Kind.IsRead() {
				c.pendingReads[cmd.Tag]++
			}

			c.cmdQueue.Accept(bank, cmd)
		}

		c.downBuffer.Remove(i)
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) sendUp() bool {
	p, ok := c.upBuffer.Head()
	if !ok || c.upstream == nil {
		return false
	}

	if !c.upstream.ReceiveUp(p) {
		return false
	}

	c.upBuffer.Pop()

	return true
}

func (c *Comp) popCommand() bool {
	if c.cmdBus != nil {
		return false
	}

	cmd := c.cmdQueue.GetCommandToIssue()
	if cmd == nil {
		return false
	}

	if cmd.Kind.IsWrite() {
		c.writeData = append(c.writeData, countdownCommand{
			cmd:       cmd.Clone(signal.CmdWriteData),
			countdown: c.timing.WL,
		})
	}

	if cmd.Last && cmd.Kind.IsColumn() && !cmd.WriteBack {
		c.pendingDataSize += cmd.ResponseLength
	}

	c.cmdBus = cmd
	c.cmdCyclesLeft = max(c.timing.TCMD, 1)

	return true
}

func (c *Comp) managePower() {
	if !c.useLowPower {
		return
	}

	if c.cmdQueue.Empty() && !c.cmdQueue.RefreshPending() {
		if c.dram.PowerDown() {
			c.powerDown = true
		}

		return
	}

	if c.powerDown && c.dram.Bank(0).NextPowerUp <= c.now {
		c.dram.PowerUp()
		c.powerDown = false
	}
}

// ReturnCommand receives read data from the DRAM.
func (c *Comp) ReturnCommand(cmd *signal.Command) {
	if c.dataBus != nil {
		log.Panicf("%s: data bus collision between %s and returned %s",
			c.name, c.dataBus, cmd)
	}

	n, found := c.pendingReads[cmd.Tag]
	if !found {
		log.Panicf("%s: no pending read matches %s", c.name, cmd)
	}

	if n > 1 {
		c.pendingReads[cmd.Tag] = n - 1
	} else {
		delete(c.pendingReads, cmd.Tag)
	}

	if !cmd.Last {
		return
	}

	if cmd.Atomic {
		c.atomics = append(c.atomics, countdownCommand{cmd: cmd, countdown: 1})
		return
	}

	c.respond(cmd)
}

// respond creates the response to the request cmd was issued for.
func (c *Comp) respond(cmd *signal.Command) {
	rspCmd := signal.CmdWRRS

	switch {
	case cmd.Atomic && cmd.PacketCmd.ReturnsData():
		rspCmd = signal.CmdRDRS
	case !cmd.Atomic && cmd.Kind == signal.CmdReadData:
		rspCmd = signal.CmdRDRS
	}

	length := cmd.ResponseLength
	rsp := signal.NewResponse(rspCmd, cmd.Tag, length, cmd.Trace, c.rng)
	rsp.AtomicFlag = cmd.Atomic &&
		(cmd.PacketCmd.ReturnsData() || cmd.PacketCmd.IsCompareOnly())
	rsp.Segment = cmd.Segment
	rsp.DataSize = cmd.DataSize

	c.pendingDataSize -= length
	if c.pendingDataSize < 0 {
		log.Panicf("%s: released more response space than reserved", c.name)
	}

	if cmd.Trace != nil {
		cmd.Trace.MarkVaultDone(c.now)
	}

	c.upBuffer.Push(rsp)
}
