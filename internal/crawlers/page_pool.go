package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed 标签页池已关闭
var ErrPoolClosed = errors.New("标签页池已关闭")

// session 一个浏览器标签页上的渲染操作
// 除 Close 外的操作都受获取时的ctx约束
type session interface {
	SetUserAgent(userAgent string) error
	SetExtraHeaders(dict []string) error

	// Open 导航并等待页面加载
	Open(pageURL string) error

	// WaitElement 等待元素出现,直到ctx到期
	WaitElement(selector string) error

	// InnerHTML 读取第一个匹配元素的innerHTML, found 表示是否存在匹配元素
	InnerHTML(selector string) (html string, found bool, err error)

	Close() error
}

// sessionOpener 打开一个新标签页
type sessionOpener func(ctx context.Context) (session, error)

// rodSession 基于 rod.Page 的标签页
type rodSession struct {
	// 关闭时使用不带ctx的页面,ctx到期后仍能关闭
	page    *rod.Page
	ctxPage *rod.Page
}

func (s *rodSession) SetUserAgent(userAgent string) error {
	return s.ctxPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})
}

func (s *rodSession) SetExtraHeaders(dict []string) error {
	_, err := s.ctxPage.SetExtraHeaders(dict)
	return err
}

func (s *rodSession) Open(pageURL string) error {
	if err := s.ctxPage.Navigate(pageURL); err != nil {
		return err
	}
	return s.ctxPage.WaitLoad()
}

func (s *rodSession) WaitElement(selector string) error {
	// Element会一直重试直到元素出现或ctx到期
	_, err := s.ctxPage.Element(selector)
	return err
}

func (s *rodSession) InnerHTML(selector string) (string, bool, error) {
	elements, err := s.ctxPage.Elements(selector)
	if err != nil {
		return "", false, err
	}
	if elements.Empty() {
		return "", false, nil
	}
	html, err := elements.First().Property("innerHTML")
	if err != nil {
		return "", true, err
	}
	return html.Str(), true, nil
}

func (s *rodSession) Close() error {
	return s.page.Close()
}

// rodOpener 在浏览器中创建空白标签页
func rodOpener(browser *rod.Browser) sessionOpener {
	return func(ctx context.Context) (session, error) {
		page, err := browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, err
		}
		return &rodSession{page: page, ctxPage: page.Context(ctx)}, nil
	}
}

// PagePool 标签页池管理器
// 职责: 限制同时打开的浏览器标签页数量
// 每次获取都创建新标签页,归还时总是关闭,不复用页面状态
type PagePool struct {
	open sessionOpener

	// 并发槽位
	slots chan struct{}

	// 当前打开的标签页
	active map[session]struct{}

	// 保护active和closed的锁
	mu sync.Mutex

	// 是否已关闭
	closed bool
}

// NewPagePool 创建标签页池实例, size 为最大并发标签页数
func NewPagePool(browser *rod.Browser, size int) *PagePool {
	return newPagePool(rodOpener(browser), size)
}

func newPagePool(open sessionOpener, size int) *PagePool {
	if size < 1 {
		size = 1
	}
	return &PagePool{
		open:   open,
		slots:  make(chan struct{}, size),
		active: make(map[session]struct{}),
	}
}

// Size 返回池的容量
func (pp *PagePool) Size() int {
	return cap(pp.slots)
}

// InUse 返回已占用的槽位数
func (pp *PagePool) InUse() int {
	return len(pp.slots)
}

// acquireSlot 占用一个槽位,池满时阻塞直到ctx结束
func (pp *PagePool) acquireSlot(ctx context.Context) error {
	pp.mu.Lock()
	closed := pp.closed
	pp.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case pp.slots <- struct{}{}:
		return nil
	}
}

// releaseSlot 释放一个槽位
func (pp *PagePool) releaseSlot() {
	select {
	case <-pp.slots:
	default:
	}
}

// acquire 获取一个新标签页
func (pp *PagePool) acquire(ctx context.Context) (session, error) {
	if err := pp.acquireSlot(ctx); err != nil {
		return nil, err
	}

	s, err := pp.open(ctx)
	if err != nil {
		pp.releaseSlot()
		// 浏览器可能已崩溃或连接断开
		log.Error().Err(err).Msg("创建标签页失败,浏览器可能已崩溃")
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	pp.mu.Lock()
	pp.active[s] = struct{}{}
	currentSize := len(pp.active)
	pp.mu.Unlock()

	log.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", currentSize, pp.Size())
	return s, nil
}

// release 关闭标签页并释放槽位
// 无论查询成功、失败还是超时都必须调用
func (pp *PagePool) release(s session) {
	if s == nil {
		return
	}
	defer pp.releaseSlot()

	pp.mu.Lock()
	delete(pp.active, s)
	pp.mu.Unlock()

	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
}

// Close 关闭标签页池,关闭所有仍打开的标签页
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		return nil
	}

	for s := range pp.active {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	pp.active = make(map[session]struct{})
	pp.closed = true

	log.Info().Msg("标签页池已关闭")
	return nil
}
