package crawlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSession 按步骤注入失败的标签页
type fakeSession struct {
	ctx    context.Context
	failAt string
	html   string
	found  bool

	mu        sync.Mutex
	userAgent string
	headers   []string
	opened    string
	closed    bool
}

var errStep = errors.New("step failed")

func (s *fakeSession) step(name string) error {
	switch {
	case s.failAt == name+":panic":
		panic("browser disconnected")
	case s.failAt == name+":block":
		<-s.ctx.Done()
		return s.ctx.Err()
	case s.failAt == name:
		return errStep
	}
	return nil
}

func (s *fakeSession) SetUserAgent(userAgent string) error {
	s.userAgent = userAgent
	return nil
}

func (s *fakeSession) SetExtraHeaders(dict []string) error {
	s.headers = dict
	return nil
}

func (s *fakeSession) Open(pageURL string) error {
	s.opened = pageURL
	return s.step("open")
}

func (s *fakeSession) WaitElement(string) error {
	return s.step("wait")
}

func (s *fakeSession) InnerHTML(string) (string, bool, error) {
	if err := s.step("payload"); err != nil {
		return "", false, err
	}
	return s.html, s.found, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeOpener 记录所有打开过的标签页
type fakeOpener struct {
	mu       sync.Mutex
	template fakeSession
	err      error
	sessions []*fakeSession
}

func (o *fakeOpener) open(ctx context.Context) (session, error) {
	if o.err != nil {
		return nil, o.err
	}
	s := &fakeSession{ctx: ctx, failAt: o.template.failAt, html: o.template.html, found: o.template.found}
	o.mu.Lock()
	o.sessions = append(o.sessions, s)
	o.mu.Unlock()
	return s, nil
}

// newTestRenderer 使用注入的标签页池,不启动浏览器
func newTestRenderer(opener *fakeOpener, size int, config RodRendererConfig) *RodRenderer {
	r := NewRodRenderer(config)
	r.pagePool = newPagePool(opener.open, size)
	r.launchOnce.Do(func() {})
	return r
}

var testRequest = RenderRequest{
	URL:             "https://shop.example.com/search?q=game",
	WaitSelector:    ".result",
	PayloadSelector: "script",
	UserAgent:       "TestAgent/1.0",
}

func TestRodRenderer_Render(t *testing.T) {
	opener := &fakeOpener{template: fakeSession{html: `{"results":[]}`, found: true}}
	r := newTestRenderer(opener, 2, RodRendererConfig{
		HeaderProvider: staticHeaders{
			"User-Agent":      []string{"ignored"},
			"Accept-Language": []string{"en-AU"},
		},
	})

	html, err := r.Render(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if html != `{"results":[]}` {
		t.Errorf("内容 = %q", html)
	}

	s := opener.sessions[0]
	if s.opened != testRequest.URL || s.userAgent != "TestAgent/1.0" {
		t.Errorf("页面参数错误: url=%s ua=%s", s.opened, s.userAgent)
	}
	if len(s.headers) != 2 || s.headers[0] != "Accept-Language" || s.headers[1] != "en-AU" {
		t.Errorf("额外头部应排除User-Agent, 实际 %v", s.headers)
	}
	if !s.isClosed() || r.pagePool.InUse() != 0 {
		t.Errorf("渲染结束后应关闭标签页并释放槽位: closed=%v inUse=%d", s.isClosed(), r.pagePool.InUse())
	}
}

func TestRodRenderer_ReleasesOnEveryExit(t *testing.T) {
	tests := []struct {
		name    string
		failAt  string
		found   bool
		timeout time.Duration
		wantErr error
	}{
		{"导航失败", "open", true, 0, errStep},
		{"等待元素失败", "wait", true, 0, errStep},
		{"读取数据失败", "payload", true, 0, errStep},
		{"缺少数据元素", "", false, 0, ErrPayloadMissing},
		{"导航panic", "open:panic", true, 0, nil},
		{"等待元素超时", "wait:block", true, 30 * time.Millisecond, ErrRenderTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &fakeOpener{template: fakeSession{failAt: tt.failAt, found: tt.found}}
			r := newTestRenderer(opener, 1, RodRendererConfig{})

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			_, err := r.Render(ctx, testRequest)
			if err == nil {
				t.Fatal("期望返回错误")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v, 实际 %v", tt.wantErr, err)
			}

			if len(opener.sessions) != 1 || !opener.sessions[0].isClosed() {
				t.Error("标签页应被关闭")
			}
			if r.pagePool.InUse() != 0 {
				t.Errorf("槽位未释放, 占用 %d", r.pagePool.InUse())
			}
		})
	}
}

func TestRodRenderer_OpenFailure(t *testing.T) {
	r := newTestRenderer(&fakeOpener{err: errors.New("browser crashed")}, 1, RodRendererConfig{})

	if _, err := r.Render(context.Background(), testRequest); err == nil {
		t.Fatal("期望返回错误")
	}
	if r.pagePool.InUse() != 0 {
		t.Errorf("创建失败时应释放槽位, 占用 %d", r.pagePool.InUse())
	}
}

func TestRodRenderer_PoolFull(t *testing.T) {
	opener := &fakeOpener{template: fakeSession{html: "ok", found: true}}
	r := newTestRenderer(opener, 1, RodRendererConfig{})

	// 占满唯一的槽位
	if err := r.pagePool.acquireSlot(context.Background()); err != nil {
		t.Fatalf("占用槽位失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := r.Render(ctx, testRequest); !errors.Is(err, ErrRenderTimeout) {
		t.Errorf("等待槽位超时应返回 ErrRenderTimeout, 实际 %v", err)
	}
	if len(opener.sessions) != 0 {
		t.Error("未取得槽位时不应打开标签页")
	}

	r.pagePool.releaseSlot()
	if _, err := r.Render(context.Background(), testRequest); err != nil {
		t.Errorf("释放后应可渲染: %v", err)
	}
	if r.pagePool.InUse() != 0 {
		t.Errorf("槽位未释放, 占用 %d", r.pagePool.InUse())
	}
}

func TestRodRenderer_Closed(t *testing.T) {
	r := newTestRenderer(&fakeOpener{}, 1, RodRendererConfig{})
	if err := r.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	if _, err := r.Render(context.Background(), testRequest); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("关闭后期望 ErrPoolClosed, 实际 %v", err)
	}
}
