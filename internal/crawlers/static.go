package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// HTTPStatusError 非2xx响应
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

// Error 实现error接口
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("请求失败 [%s]: 状态码 %d", e.URL, e.StatusCode)
}

// Response 一次静态请求的结果
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK 是否为2xx响应
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Document 将响应体解析为文档快照
func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败 [%s]: %w", r.URL, err)
	}
	return doc, nil
}

// Fetcher 静态文档获取接口
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error)
}

// StaticFetcher 静态获取器(使用Colly)
type StaticFetcher struct {
	collector *colly.Collector

	// HTTP头部提供者
	headerProvider models.HeaderProvider
}

// NewStaticFetcher 创建静态获取器
// parallelism 为同时进行的请求上限,小于1时不限制
func NewStaticFetcher(timeout time.Duration, parallelism int, headerProvider models.HeaderProvider) *StaticFetcher {
	// 同一URL会被不同零售商/多次运行重复访问,必须允许重访
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	// 克隆出的collector共享同一个后端,限制对所有请求生效
	if parallelism > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: parallelism,
		}); err != nil {
			utils.Warnf("设置并发限制失败: %v", err)
		}
	}

	c.SetRequestTimeout(timeout)
	utils.Debugf("静态获取器: 请求超时 %v, 并发上限 %d", timeout, parallelism)

	return &StaticFetcher{
		collector:      c,
		headerProvider: headerProvider,
	}
}

// Fetch 获取URL
// 非2xx响应也返回 Response (不返回错误),连接失败/超时返回错误
// headers 覆盖头部提供者的同名头部
func (sf *StaticFetcher) Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 克隆collector,回调只属于本次请求
	c := sf.collector.Clone()
	c.Context = ctx

	var result *Response
	c.OnRequest(func(r *colly.Request) {
		if sf.headerProvider != nil {
			merged, err := sf.headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range merged {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		utils.Debugf("访问: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		var respHeaders http.Header
		if r.Headers != nil {
			respHeaders = *r.Headers
		}
		body, err := decodeBody(respHeaders.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s]: %v", r.Request.URL, err)
			body = r.Body
		}
		result = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    respHeaders,
			Body:       body,
		}
	})

	if err := c.Visit(rawURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("访问失败 [%s]: %w", rawURL, ctxErr)
		}
		return nil, fmt.Errorf("访问失败 [%s]: %w", rawURL, err)
	}
	if result == nil {
		return nil, fmt.Errorf("访问失败 [%s]: 未收到响应", rawURL)
	}
	return result, nil
}

// FetchDocument 获取并解析文档,非2xx返回 *HTTPStatusError
func FetchDocument(ctx context.Context, f Fetcher, rawURL string) (*goquery.Document, error) {
	resp, err := f.Fetch(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Document()
}

// decodeBody 根据Content-Encoding解压响应体
// Colly已处理gzip,这里只在仍带gzip魔数时才解压
func decodeBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "br":
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decoded, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decoded, nil

	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decoded, nil

	default:
		return body, nil
	}
}
