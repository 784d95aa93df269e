package crawlers

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func newTestMonitor(available uint64, err error) *ResourceMonitor {
	rm := NewResourceMonitor(ResourceMonitorConfig{
		SafetyReserveMemory: 1024,
		SessionMemoryUsage:  1024,
		MaxSessionsLimit:    64,
	})
	rm.availableMemory = func() (uint64, error) {
		return available, err
	}
	return rm
}

func TestResourceMonitor_MaxSessions(t *testing.T) {
	tests := []struct {
		name      string
		available uint64
		err       error
		requested int
		want      int
	}{
		{"内存充足时取请求值", 1024 * 1024, nil, 1, 1},
		{"内存不足时至少1个", 512, nil, 4, 1},
		{"请求值非法时按1处理", 1024 * 1024, nil, 0, 1},
		{"内存探测失败时不限制", 0, errors.New("no /proc"), 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTestMonitor(tt.available, tt.err)
			if got := rm.MaxSessions(tt.requested); got != tt.want {
				t.Errorf("期望 %d, 实际 %d", tt.want, got)
			}
		})
	}

	t.Run("不超过CPU核数", func(t *testing.T) {
		rm := newTestMonitor(1024*1024*1024, nil)
		if got := rm.MaxSessions(1000); got > runtime.NumCPU() {
			t.Errorf("会话数 %d 超过CPU核数 %d", got, runtime.NumCPU())
		}
	})
}

func TestPagePool_SlotLimit(t *testing.T) {
	pp := NewPagePool(nil, 1)
	if pp.Size() != 1 {
		t.Fatalf("期望容量1, 实际 %d", pp.Size())
	}

	if err := pp.acquireSlot(context.Background()); err != nil {
		t.Fatalf("第一次获取失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pp.acquireSlot(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("池满时应阻塞至超时, 实际 %v", err)
	}

	pp.releaseSlot()
	if err := pp.acquireSlot(context.Background()); err != nil {
		t.Errorf("释放后应可再次获取: %v", err)
	}

	pp.Close()
	if err := pp.acquireSlot(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("关闭后期望 ErrPoolClosed, 实际 %v", err)
	}
}
