package hooking

import (
	"github.com/sirupsen/logrus"
)

// A LogHook writes the hook events it receives to a logrus logger.
type LogHook struct {
	Logger *logrus.Logger
	Level  logrus.Level

	// Positions limits the hook to the listed positions. An empty set logs
	// everything.
	Positions map[*HookPos]bool
}

// NewLogHook creates a LogHook that logs at the given level.
func NewLogHook(
	logger *logrus.Logger,
	level logrus.Level,
	positions ...*HookPos,
) *LogHook {
	h := &LogHook{
		Logger:    logger,
		Level:     level,
		Positions: make(map[*HookPos]bool),
	}

	for _, p := range positions {
		h.Positions[p] = true
	}

	return h
}

// Func logs the event.
func (h *LogHook) Func(ctx HookCtx) {
	if len(h.Positions) > 0 && !h.Positions[ctx.Pos] {
		return
	}

	if !h.Logger.IsLevelEnabled(h.Level) {
		return
	}

	fields := logrus.Fields{"pos": ctx.Pos.Name}

	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		fields["where"] = named.Name()
	}

	if ctx.Detail != nil {
		fields["detail"] = ctx.Detail
	}

	h.Logger.WithFields(fields).Log(h.Level, ctx.Item)
}
