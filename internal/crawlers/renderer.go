package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// 渲染错误
var (
	ErrRenderTimeout  = errors.New("等待页面元素超时")
	ErrPayloadMissing = errors.New("页面中未找到数据元素")
)

// RenderRequest 一次浏览器渲染请求
type RenderRequest struct {
	URL string

	// 等待出现的元素,出现即视为结果已渲染
	WaitSelector string

	// 读取innerHTML的元素
	PayloadSelector string

	// 可选的User-Agent覆盖
	UserAgent string
}

// Renderer 浏览器渲染接口
// Render 返回 PayloadSelector 元素的innerHTML
// ctx 到期时返回包装了 ErrRenderTimeout 的错误
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// RodRendererConfig 渲染器配置
type RodRendererConfig struct {
	Headless bool

	// 最大并发标签页数,最终值受资源监控器限制
	Sessions int

	// HTTP头部提供者
	HeaderProvider models.HeaderProvider

	// 资源监控器,为nil时使用默认配置
	Monitor *ResourceMonitor
}

// RodRenderer 基于Rod的渲染器
// 浏览器在第一次渲染时才启动
type RodRenderer struct {
	config RodRendererConfig

	launchOnce sync.Once
	launchErr  error

	browser  *rod.Browser
	pagePool *PagePool

	mu     sync.Mutex
	closed bool
}

// NewRodRenderer 创建渲染器
func NewRodRenderer(config RodRendererConfig) *RodRenderer {
	if config.Monitor == nil {
		config.Monitor = NewResourceMonitor(DefaultResourceMonitorConfig())
	}
	return &RodRenderer{config: config}
}

// launchBrowser 启动浏览器
func (r *RodRenderer) launchBrowser() error {
	r.launchOnce.Do(func() {
		l := launcher.New().
			Headless(r.config.Headless).
			NoSandbox(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("window-size", "1920,1080")

		controlURL, err := l.Launch()
		if err != nil {
			r.launchErr = fmt.Errorf("启动浏览器失败: %w", err)
			return
		}

		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			r.launchErr = fmt.Errorf("连接浏览器失败: %w", err)
			return
		}

		sessions := r.config.Monitor.MaxSessions(r.config.Sessions)
		r.browser = browser
		r.pagePool = NewPagePool(browser, sessions)
		utils.Infof("浏览器已启动, 最大并发标签页: %d", sessions)
	})
	return r.launchErr
}

// Render 打开页面,等待结果元素出现后读取数据元素
func (r *RodRenderer) Render(ctx context.Context, req RenderRequest) (content string, err error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return "", ErrPoolClosed
	}

	if err := r.launchBrowser(); err != nil {
		return "", err
	}

	s, err := r.pagePool.acquire(ctx)
	if err != nil {
		return "", renderError(ctx, req.URL, err)
	}
	defer r.pagePool.release(s)

	// rod在浏览器断开时可能panic
	defer func() {
		if rec := recover(); rec != nil {
			utils.Errorf("捕获panic: URL=%s, 错误=%v", req.URL, rec)
			err = fmt.Errorf("渲染panic [%s]: %v", req.URL, rec)
		}
	}()

	if req.UserAgent != "" {
		if err := s.SetUserAgent(req.UserAgent); err != nil {
			utils.Warnf("设置User-Agent失败 [%s]: %v", req.URL, err)
		}
	}
	r.applyHeaders(s, req.URL)

	if err := s.Open(req.URL); err != nil {
		return "", renderError(ctx, req.URL, err)
	}
	if err := s.WaitElement(req.WaitSelector); err != nil {
		return "", renderError(ctx, req.URL, err)
	}

	html, found, err := s.InnerHTML(req.PayloadSelector)
	if err != nil {
		return "", renderError(ctx, req.URL, err)
	}
	if !found {
		return "", fmt.Errorf("%w [%s]: %s", ErrPayloadMissing, req.URL, req.PayloadSelector)
	}

	utils.Debugf("页面渲染完成: %s", req.URL)
	return html, nil
}

// applyHeaders 将头部提供者的头部设置到标签页
func (r *RodRenderer) applyHeaders(s session, pageURL string) {
	if r.config.HeaderProvider == nil {
		return
	}
	headers, err := r.config.HeaderProvider.GetHeaders()
	if err != nil {
		utils.Warnf("获取HTTP头部失败: %v", err)
		return
	}

	dict := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		// User-Agent由SetUserAgent单独处理
		if len(values) == 0 || name == "User-Agent" {
			continue
		}
		dict = append(dict, name, values[0])
	}
	if len(dict) == 0 {
		return
	}
	if err := s.SetExtraHeaders(dict); err != nil {
		utils.Warnf("设置HTTP头部失败 [%s]: %v", pageURL, err)
	}
}

// renderError 将ctx到期映射为 ErrRenderTimeout
func renderError(ctx context.Context, pageURL string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w [%s]", ErrRenderTimeout, pageURL)
	}
	return fmt.Errorf("渲染失败 [%s]: %w", pageURL, err)
}

// Close 关闭标签页池和浏览器
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.pagePool != nil {
		r.pagePool.Close()
	}
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			return fmt.Errorf("关闭浏览器失败: %w", err)
		}
		utils.Debugf("浏览器已关闭")
	}
	return nil
}
