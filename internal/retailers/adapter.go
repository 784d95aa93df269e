// Package retailers 第三方零售商报价适配器
//
// 每个适配器负责自己的获取方式(静态请求或浏览器渲染)和失败映射:
// 网络错误、超时、结构变化都在适配器边界转换为 models.Absence,
// 调用方只需处理 models.QuoteSlot。
package retailers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
)

// 零售商标识
const (
	EBGamesID = "ebgames"
	BigWID    = "bigw"
	JBHiFiID  = "jbhifi"
)

// desktopUserAgent 静态请求使用的浏览器标识
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Adapter 零售商适配器
// Lookup 从不返回错误,失败以 QuoteSlot.Absence 表示
type Adapter interface {
	ID() string
	Lookup(ctx context.Context, title, platform string) models.QuoteSlot
}

// Dependencies 构建适配器所需的协作者
type Dependencies struct {
	Fetcher  crawlers.Fetcher
	Renderer crawlers.Renderer

	// BIG W响应体解析器,为nil时BIG W只抓取不解析
	BigWExtractor BodyExtractor
}

// KnownRetailers 所有支持的零售商,按默认顺序
func KnownRetailers() []string {
	return []string{EBGamesID, BigWID, JBHiFiID}
}

// Build 按启用列表构建适配器,重复项只保留一个
func Build(enabled []string, deps Dependencies) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(enabled))
	seen := make(map[string]bool)

	for _, raw := range enabled {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		adapter, err := newAdapter(id, deps)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func newAdapter(id string, deps Dependencies) (Adapter, error) {
	switch id {
	case EBGamesID:
		if deps.Renderer == nil {
			return nil, fmt.Errorf("零售商 %s 需要浏览器渲染器", id)
		}
		return NewEBGames(deps.Renderer, ""), nil
	case BigWID:
		if deps.Fetcher == nil {
			return nil, fmt.Errorf("零售商 %s 需要静态获取器", id)
		}
		return NewBigW(deps.Fetcher, "", deps.BigWExtractor), nil
	case JBHiFiID:
		if deps.Fetcher == nil {
			return nil, fmt.Errorf("零售商 %s 需要静态获取器", id)
		}
		return NewJBHiFi(deps.Fetcher, ""), nil
	default:
		return nil, fmt.Errorf("未知零售商: %s (支持: %s)", id, strings.Join(KnownRetailers(), ", "))
	}
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	hyphenRun     = regexp.MustCompile(`-+`)
)

// Slugify 生成商品URL片段
// 空白折叠为单个连字符,合并连续连字符,去除首尾连字符并转为小写
func Slugify(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.ToLower(strings.Trim(s, "-"))
}

// transportFailure 将获取错误映射为缺失结果
func transportFailure(ctx context.Context, retailer string, err error) models.QuoteSlot {
	var timeoutErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, crawlers.ErrRenderTimeout) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &timeoutErr) && timeoutErr.Timeout()) {
		return models.Missing(retailer, models.AbsenceTimeout, err.Error())
	}

	var statusErr *crawlers.HTTPStatusError
	if errors.As(err, &statusErr) {
		return models.HTTPFailure(retailer, statusErr.StatusCode)
	}
	return models.Missing(retailer, models.AbsenceTransport, err.Error())
}
