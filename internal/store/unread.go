package store

// UnreadTracker keeps the aggregate unread count. The Directory adjusts it on
// every per-conversation change, so Total always equals the sum of the
// conversations' UnreadCount.
type UnreadTracker struct {
	total    int
	onChange func(total int)
}

func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{}
}

// OnChange registers fn to be called with the new total after every change.
func (u *UnreadTracker) OnChange(fn func(total int)) {
	u.onChange = fn
}

func (u *UnreadTracker) Total() int {
	return u.total
}

func (u *UnreadTracker) adjust(delta int) {
	if delta == 0 {
		return
	}
	u.set(u.total + delta)
}

func (u *UnreadTracker) reset(total int) {
	if total == u.total {
		return
	}
	u.set(total)
}

func (u *UnreadTracker) set(total int) {
	u.total = total
	if u.onChange != nil {
		u.onChange(total)
	}
}
