package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit  = 1000
	DefaultWindow = time.Hour
)

// Result 单次准入判定的结果，字段用于 X-RateLimit-* 响应头
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     int64 // 窗口重置的 Unix 时间戳
}

type window struct {
	start time.Time
	count int
}

// Limiter 按 token 身份做固定窗口计数。状态仅存在于进程内，
// 重启后重新计数（与文档化行为一致，无持久化要求）。
type Limiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewLimiter(limit int, period time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultWindow
	}
	return &Limiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// WithClock 替换时钟（测试用）
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow 原子地递增并判定；超限请求不再递增计数。
// 窗口按日历对齐（now 截断到 period），重置是惰性的。
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.period)

	w := l.windows[key]
	if w == nil || !w.start.Equal(start) {
		w = &window{start: start}
		l.windows[key] = w
	}

	reset := start.Add(l.period).Unix()

	if w.count >= l.limit {
		return Result{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			Reset:     reset,
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		Reset:     reset,
	}
}
