package cmdq

import (
	"fmt"
	"log"

	"github.com/sarchlab/hmcsim/hmc/internal/org"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/queueing"
	"github.com/sarchlab/hmcsim/sim/timing"
)

// maxActivatesInWindow is the number of activates allowed within tFAW.
const maxActivatesInWindow = 4

type bankLock struct {
	locked bool
	tag    uint16
}

// CommandQueueImpl implements CommandQueue with either one queue per bank or
// one queue shared by all banks.
type CommandQueueImpl struct {
	Queues    []*queueing.Buffer[*signal.Command]
	PopDelays []int

	PerBank        bool
	OpenPage       bool
	MaxRowAccesses int
	TFAW           uint64

	Banks  BankSource
	Budget ResponseBudget
	Clock  timing.TimeTeller

	nextBank       int
	refreshWaiting bool
	fawCountdown   []uint64
	rowAccesses    []int
	locks          []bankLock
	writeBacks     []*signal.Command
}

// NewCommandQueue creates a command queue for a DRAM with numBanks banks.
func NewCommandQueue(
	name string,
	numBanks, capacity int,
	perBank bool,
) *CommandQueueImpl {
	n := 1
	if perBank {
		n = numBanks
	}

	q := &CommandQueueImpl{
		Queues:         make([]*queueing.Buffer[*signal.Command], n),
		PopDelays:      make([]int, n),
		PerBank:        perBank,
		MaxRowAccesses: 1,
		rowAccesses:    make([]int, numBanks),
		locks:          make([]bankLock, numBanks),
	}

	for i := range q.Queues {
		q.Queues[i] = queueing.NewBuffer[*signal.Command](
			fmt.Sprintf("%s.Queue[%d]", name, i), capacity)
	}

	return q
}

func (q *CommandQueueImpl) queueIndex(bank int) int {
	if q.PerBank {
		return bank
	}

	return 0
}

func (q *CommandQueueImpl) queue(bank int) *queueing.Buffer[*signal.Command] {
	return q.Queues[q.queueIndex(bank)]
}

func (q *CommandQueueImpl) now() uint64 {
	return q.Clock.Now()
}

// CanAccept tells if n more commands fit in the queue of the bank.
func (q *CommandQueueImpl) CanAccept(bank, n int) bool {
	return q.queue(bank).CanPush(n)
}

// Accept appends a command to the queue of the bank.
func (q *CommandQueueImpl) Accept(bank int, cmd *signal.Command) {
	i := q.queueIndex(bank)
	if q.Queues[i].Empty() && q.PopDelays[i] == 0 {
		q.PopDelays[i] = 1
	}

	q.Queues[i].Push(cmd)
}

// AcceptWriteBack queues the write half of an atomic.
func (q *CommandQueueImpl) AcceptWriteBack(cmd *signal.Command) {
	if q.writeBacks == nil {
		q.writeBacks = make([]*signal.Command, len(q.locks))
	}

	if q.writeBacks[cmd.Bank] != nil {
		log.Panicf("bank %d already has a write-back waiting", cmd.Bank)
	}

	q.writeBacks[cmd.Bank] = cmd
}

// RequestRefresh asks for a refresh.
func (q *CommandQueueImpl) RequestRefresh() {
	q.refreshWaiting = true
}

// RefreshPending tells if a requested refresh has not been issued yet.
func (q *CommandQueueImpl) RefreshPending() bool {
	return q.refreshWaiting
}

// Unlock frees a bank locked by an atomic.
func (q *CommandQueueImpl) Unlock(bank int) {
	q.locks[bank] = bankLock{}
}

// Locked tells if an atomic holds the bank.
func (q *CommandQueueImpl) Locked(bank int) bool {
	return q.locks[bank].locked
}

// Empty tells if no command is waiting.
func (q *CommandQueueImpl) Empty() bool {
	for _, queue := range q.Queues {
		if !queue.Empty() {
			return false
		}
	}

	for _, wb := range q.writeBacks {
		if wb != nil {
			return false
		}
	}

	return true
}

// Len returns the number of commands waiting for the bank.
func (q *CommandQueueImpl) Len(bank int) int {
	return q.queue(bank).Size()
}

// Tick counts down the pop delays.
func (q *CommandQueueImpl) Tick() bool {
	madeProgress := false

	for i := range q.PopDelays {
		if q.PopDelays[i] > 0 {
			q.PopDelays[i]--
			madeProgress = true
		}
	}

	return madeProgress
}

// GetCommandToIssue returns the command to issue in this cycle, or nil if
// nothing can be issued.
func (q *CommandQueueImpl) GetCommandToIssue() *signal.Command {
	q.countDownActivateWindow()

	cmd := q.issueWriteBack()

	if cmd == nil {
		if q.OpenPage {
			cmd = q.scheduleOpenPage()
		} else {
			cmd = q.scheduleClosedPage()
		}
	}

	if cmd == nil {
		return nil
	}

	q.onIssue(cmd)

	return cmd
}

func (q *CommandQueueImpl) countDownActivateWindow() {
	for i := range q.fawCountdown {
		if q.fawCountdown[i] > 0 {
			q.fawCountdown[i]--
		}
	}

	if len(q.fawCountdown) > 0 && q.fawCountdown[0] == 0 {
		q.fawCountdown = q.fawCountdown[1:]
	}
}

func (q *CommandQueueImpl) onIssue(cmd *signal.Command) {
	switch {
	case cmd.Kind == signal.CmdActivate:
		q.fawCountdown = append(q.fawCountdown, q.TFAW)
	case cmd.WriteBack:
		q.Unlock(cmd.Bank)
	case cmd.Atomic && cmd.Kind.IsRead():
		q.locks[cmd.Bank] = bankLock{locked: true, tag: cmd.Tag}
	}
}

func (q *CommandQueueImpl) issueWriteBack() *signal.Command {
	for b, wb := range q.writeBacks {
		if wb != nil && q.IsIssuable(wb) {
			q.writeBacks[b] = nil
			return wb
		}
	}

	return nil
}

// refreshBlocked tells if a bank keeps the DRAM from being refreshed.
func (q *CommandQueueImpl) refreshBlocked(b *org.Bank) bool {
	return b.State == org.BankRowActive || b.NextActivate > q.now()
}

func (q *CommandQueueImpl) newRefresh() *signal.Command {
	q.refreshWaiting = false

	return &signal.Command{Kind: signal.CmdRefresh, Last: true}
}

func (q *CommandQueueImpl) newPrecharge(bank int) *signal.Command {
	q.rowAccesses[bank] = 0

	return &signal.Command{Kind: signal.CmdPrecharge, Bank: bank, Last: true}
}

func (q *CommandQueueImpl) scheduleClosedPage() *signal.Command {
	if q.refreshWaiting && q.refreshReady() {
		return q.newRefresh()
	}

	return q.roundRobin(q.firstIssuableClosedPage)
}

// refreshReady tells if every bank is closed and the device is awake.
func (q *CommandQueueImpl) refreshReady() bool {
	for i := 0; i < q.Banks.NumBanks(); i++ {
		if q.refreshBlocked(q.Banks.Bank(i)) {
			return false
		}
	}

	return q.Banks.Bank(0).State != org.BankPowerDown
}

// roundRobin visits the queues from the one after the last visited and
// returns the first command pick finds.
func (q *CommandQueueImpl) roundRobin(
	pick func(queue *queueing.Buffer[*signal.Command]) *signal.Command,
) *signal.Command {
	for range q.Queues {
		i := q.nextBank
		q.nextBank = (q.nextBank + 1) % len(q.Queues)

		if q.PopDelays[i] > 0 {
			continue
		}

		if cmd := pick(q.Queues[i]); cmd != nil {
			return cmd
		}
	}

	return nil
}

func (q *CommandQueueImpl) firstIssuableClosedPage(
	queue *queueing.Buffer[*signal.Command],
) *signal.Command {
	var (
		prev  *signal.Command
		found = -1
	)

	queue.ForEach(func(i int, cmd *signal.Command) bool {
		pairedWithActivate := prev != nil &&
			prev.Kind == signal.CmdActivate &&
			prev.Tag == cmd.Tag

		prev = cmd

		// No row opens while a refresh waits. Rows already open still
		// take their column command, which closes them.
		if q.refreshWaiting && cmd.Kind == signal.CmdActivate {
			return true
		}

		if pairedWithActivate || !q.IsIssuable(cmd) {
			return true
		}

		found = i

		return false
	})

	if found < 0 {
		return nil
	}

	return queue.Remove(found)
}

func (q *CommandQueueImpl) scheduleOpenPage() *signal.Command {
	if q.refreshWaiting {
		if cmd := q.prepareRefreshOpenPage(); cmd != nil {
			return cmd
		}
	}

	if cmd := q.roundRobin(q.firstIssuableOpenPage); cmd != nil {
		return cmd
	}

	return q.closeIdleRow()
}

// prepareRefreshOpenPage refreshes the DRAM if every bank is closed.
// Otherwise it drains or closes the first open bank.
func (q *CommandQueueImpl) prepareRefreshOpenPage() *signal.Command {
	for i := 0; i < q.Banks.NumBanks(); i++ {
		b := q.Banks.Bank(i)

		if b.State == org.BankRowActive {
			return q.drainOpenRow(i, b)
		}

		if b.NextActivate > q.now() {
			return nil
		}
	}

	if q.Banks.Bank(0).State == org.BankPowerDown {
		return nil
	}

	return q.newRefresh()
}

// drainOpenRow issues the next piece of work on the open row of a bank, or
// closes the row when no such work remains.
func (q *CommandQueueImpl) drainOpenRow(bank int, b *org.Bank) *signal.Command {
	queue := q.queue(bank)
	closeRow := true
	found := -1

	queue.ForEach(func(i int, cmd *signal.Command) bool {
		if cmd.Bank != bank || cmd.Row != b.OpenRow {
			return true
		}

		if cmd.Kind == signal.CmdActivate {
			return false
		}

		closeRow = false

		if q.IsIssuable(cmd) {
			found = i
		}

		return false
	})

	if found >= 0 {
		return q.removeWithActivate(queue, found)
	}

	if closeRow && !q.locks[bank].locked && b.NextPrecharge <= q.now() {
		return q.newPrecharge(bank)
	}

	return nil
}

func (q *CommandQueueImpl) firstIssuableOpenPage(
	queue *queueing.Buffer[*signal.Command],
) *signal.Command {
	entries := queue.Entries()

	for i, cmd := range entries {
		if !q.IsIssuable(cmd) || q.dependsOnEarlier(entries[:i], cmd) {
			continue
		}

		return q.removeWithActivate(queue, i)
	}

	return nil
}

func (q *CommandQueueImpl) dependsOnEarlier(
	earlier []*signal.Command,
	cmd *signal.Command,
) bool {
	for _, prev := range earlier {
		if prev.Kind != signal.CmdActivate &&
			prev.Bank == cmd.Bank &&
			prev.Row == cmd.Row {
			return true
		}
	}

	return false
}

// removeWithActivate takes the i-th command out of the queue. A column
// command that finds its row already open no longer needs the activate
// queued right before it, so that activate goes too.
func (q *CommandQueueImpl) removeWithActivate(
	queue *queueing.Buffer[*signal.Command],
	i int,
) *signal.Command {
	cmd := queue.Item(i)

	if i > 0 && cmd.Kind.IsColumn() {
		prev := queue.Item(i - 1)
		if prev.Kind == signal.CmdActivate && prev.Tag == cmd.Tag {
			q.rowAccesses[cmd.Bank]++
			queue.Remove(i)
			queue.Remove(i - 1)

			return cmd
		}
	}

	return queue.Remove(i)
}

// closeIdleRow precharges an open bank that has no more work on its row or
// that has served too many accesses in a row.
func (q *CommandQueueImpl) closeIdleRow() *signal.Command {
	for i := 0; i < q.Banks.NumBanks(); i++ {
		b := q.Banks.Bank(i)
		if b.State != org.BankRowActive || q.locks[i].locked {
			continue
		}

		if q.hasWorkOnRow(i, b.OpenRow) &&
			q.rowAccesses[i] < q.MaxRowAccesses {
			continue
		}

		if b.NextPrecharge <= q.now() {
			return q.newPrecharge(i)
		}
	}

	return nil
}

func (q *CommandQueueImpl) hasWorkOnRow(bank int, row uint64) bool {
	found := false

	q.queue(bank).ForEach(func(_ int, cmd *signal.Command) bool {
		if cmd.Bank == bank && cmd.Row == row {
			found = true
			return false
		}

		return true
	})

	return found
}

// IsIssuable tells if the command can be issued in the current cycle.
func (q *CommandQueueImpl) IsIssuable(cmd *signal.Command) bool {
	lock := q.locks[cmd.Bank]
	if lock.locked && lock.tag != cmd.Tag {
		return false
	}

	b := q.Banks.Bank(cmd.Bank)
	now := q.now()

	switch cmd.Kind {
	case signal.CmdActivate:
		return (b.State == org.BankIdle || b.State == org.BankRefreshing) &&
			b.NextActivate <= now &&
			len(q.fawCountdown) < maxActivatesInWindow
	case signal.CmdWrite, signal.CmdWritePrecharge:
		return q.columnReady(cmd, b, b.NextWrite)
	case signal.CmdRead, signal.CmdReadPrecharge:
		return q.columnReady(cmd, b, b.NextRead)
	case signal.CmdPrecharge:
		return b.State == org.BankRowActive && b.NextPrecharge <= now
	case signal.CmdRefresh:
		return false
	}

	log.Panicf("cannot schedule command %s", cmd)

	return false
}

func (q *CommandQueueImpl) columnReady(
	cmd *signal.Command,
	b *org.Bank,
	next uint64,
) bool {
	if b.State != org.BankRowActive ||
		next > q.now() ||
		b.OpenRow != cmd.Row {
		return false
	}

	if cmd.WriteBack {
		return true
	}

	return q.rowAccesses[cmd.Bank] < q.MaxRowAccesses &&
		q.Budget.CanReserve(cmd.ResponseLength)
}
