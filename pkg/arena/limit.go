package arena

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Limiter tracks the read budget of one arena. Byte charges never refill.
// Depth is a property of each resolved pointer rather than of the arena: a
// pointer followed out of an object at level n sits at level n+1, so
// siblings share their parent's level and only nesting consumes depth.
// A Limiter is not safe for concurrent use.
type Limiter interface {
	// ChargeBytes consumes n bytes of budget.
	ChargeBytes(n int) error
	// ChargeLevel admits one pointer indirection that reaches level.
	ChargeLevel(level int) error
}

// Limited is a bounded Limiter.
type Limited struct {
	bytes    int
	maxLevel int
}

// NewLimited returns a limiter allowing maxBytes bytes of reads in total and
// pointer chains at most maxLevel indirections deep. The byte budget is
// charged down to zero and never refilled; the depth bound applies to each
// chain from the root independently.
func NewLimited(maxBytes, maxLevel int) *Limited {
	return &Limited{bytes: maxBytes, maxLevel: maxLevel}
}

// ChargeBytes fails with ErrReadLimit when n exceeds the remaining budget.
// A refused charge consumes nothing.
func (l *Limited) ChargeBytes(n int) error {
	if n > l.bytes {
		logrus.Debugf("Read limit reached: requested %d bytes with %d remaining", n, l.bytes)
		return errors.Wrapf(ErrReadLimit, "requested %d bytes, %d remaining", n, l.bytes)
	}
	l.bytes -= n
	return nil
}

// ChargeLevel fails with ErrPointerLevel when level is deeper than the
// limiter allows.
func (l *Limited) ChargeLevel(level int) error {
	if level > l.maxLevel {
		logrus.Debugf("Pointer depth limit reached: level %d of %d", level, l.maxLevel)
		return errors.Wrapf(ErrPointerLevel, "level %d, limit %d", level, l.maxLevel)
	}
	return nil
}

// RemainingBytes is the byte budget left.
func (l *Limited) RemainingBytes() int { return l.bytes }

// MaxLevel is the deepest level a pointer chain may reach.
func (l *Limited) MaxLevel() int { return l.maxLevel }

// Unlimited never fails. Use it for data that is already trusted, such as
// messages built in-process.
type Unlimited struct{}

func (Unlimited) ChargeBytes(int) error { return nil }

func (Unlimited) ChargeLevel(int) error { return nil }
