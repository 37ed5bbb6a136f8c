package debounce

import (
	"sort"
	"sync"
	"time"
)

// Clock 时间抽象，测试中用虚拟时钟替换真实定时器
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 可取消的定时任务
type Timer interface {
	Stop() bool
}

// NewRealClock 创建真实时钟
func NewRealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// VirtualClock 虚拟时钟
// Advance按到期顺序触发定时器，让防抖逻辑可以不等真实时间就被验证。
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*virtualTimer
}

type virtualTimer struct {
	clock   *VirtualClock
	fireAt  time.Time
	fn      func()
	stopped bool
	fired   bool
}

// NewVirtualClock 创建虚拟时钟
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &virtualTimer{
		clock:  c,
		fireAt: c.now.Add(d),
		fn:     f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进虚拟时间，触发到期的定时器
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		// 找到下一个到期的定时器
		var next *virtualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.fireAt.After(target) {
				continue
			}
			if next == nil || t.fireAt.Before(next.fireAt) {
				next = t
			}
		}
		if next == nil {
			break
		}

		next.fired = true
		c.now = next.fireAt
		fn := next.fn
		// 回调在锁外执行，允许回调里重新调度
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}

	c.now = target
	c.cleanup()
	c.mu.Unlock()
}

// PendingCount 未触发的定时器数量
func (c *VirtualClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *VirtualClock) cleanup() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].fireAt.Before(live[j].fireAt) })
	c.timers = live
}

func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
