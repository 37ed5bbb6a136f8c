package debounce

import (
	"sync"
	"time"
)

// Debouncer 防抖调度器
// 同一时刻最多挂起一个任务，重新调度会取消并替换未触发的定时器，
// 保证两次写不会同时落地。
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	timer   Timer
	pending bool
}

// NewDebouncer 创建防抖调度器
func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Debouncer{
		clock: clock,
		delay: delay,
	}
}

// Schedule 调度任务，替换还未触发的任务
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.pending = false
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel 取消挂起的任务
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}

// Pending 是否有任务在等待触发
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Delay 返回防抖窗口
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
