package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const countersKey = "reply_counters"

// replyCounters records what a handler sent back for the update summary.
type replyCounters struct {
	messages int
	keyboard bool
}

// countingContext counts successful sends and edits made through it.
type countingContext struct {
	tele.Context
	n *replyCounters
}

func (m countingContext) track(err error, opts []interface{}) error {
	if err == nil {
		m.n.messages++
		m.n.keyboard = m.n.keyboard || hasKeyboard(opts)
	}
	return err
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.EditOrSend(what, opts...), opts)
}

func (m countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the messages each handler sends so the
// router can report them in its summary line.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns how many messages were sent for the update and whether
// any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return n.messages, n.keyboard
}
