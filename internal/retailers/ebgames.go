package retailers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/shopspring/decimal"
)

const (
	defaultEBGamesURL = "https://www.ebgames.com.au"

	// 搜索结果卡片,出现后结构化数据才可用
	ebGamesResultSelector  = ".search-result__product"
	ebGamesPayloadSelector = `script[type="application/ld+json"]`
)

// ebGamesPayload 搜索页内嵌的结构化数据
// 结果逐条解码,单条格式错误不影响其他结果
type ebGamesPayload struct {
	Results []json.RawMessage `json:"results"`
}

type ebGamesResult struct {
	Title        string              `json:"title"`
	PlatformName string              `json:"platformName"`
	Price        decimal.NullDecimal `json:"price"`
	IsPreowned   bool                `json:"isPreowned"`
	URL          string              `json:"url"`
}

// EBGames 渲染搜索适配器
type EBGames struct {
	renderer crawlers.Renderer
	baseURL  string
}

// NewEBGames 创建EB Games适配器, baseURL为空时使用线上地址
func NewEBGames(renderer crawlers.Renderer, baseURL string) *EBGames {
	if baseURL == "" {
		baseURL = defaultEBGamesURL
	}
	return &EBGames{
		renderer: renderer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// ID 零售商标识
func (eb *EBGames) ID() string {
	return EBGamesID
}

// SearchURL 搜索地址, 查询词为小写标题
func (eb *EBGames) SearchURL(title string) string {
	return eb.baseURL + "/search/query?q=" + url.QueryEscape(strings.ToLower(title))
}

// Lookup 渲染搜索页,按平台过滤结果
// 所有符合平台的结果都作为报价返回
func (eb *EBGames) Lookup(ctx context.Context, title, platform string) models.QuoteSlot {
	searchURL := eb.SearchURL(title)

	payload, err := eb.renderer.Render(ctx, crawlers.RenderRequest{
		URL:             searchURL,
		WaitSelector:    ebGamesResultSelector,
		PayloadSelector: ebGamesPayloadSelector,
	})
	if err != nil {
		utils.Warnf("EB Games查询失败 [%s]: %v", title, err)
		return transportFailure(ctx, EBGamesID, err)
	}

	quotes, skipped, err := parseEBGamesPayload(payload, platform, searchURL)
	if err != nil {
		utils.Warnf("EB Games数据解析失败 [%s]: %v", title, err)
		return models.Missing(EBGamesID, models.AbsenceMalformed, err.Error())
	}
	if len(quotes) == 0 {
		if skipped > 0 {
			return models.Missing(EBGamesID, models.AbsenceMalformed, fmt.Sprintf("%d results without a usable price", skipped))
		}
		return models.Missing(EBGamesID, models.AbsenceNoMatch, fmt.Sprintf("no products found for platform %q", platform))
	}

	utils.Debugf("EB Games: %s 找到 %d 条报价", title, len(quotes))
	return models.Found(EBGamesID, quotes...)
}

// parseEBGamesPayload 解析结构化数据并按平台过滤
// 无法解码或缺少价格的结果被跳过, skipped 为跳过的条数
// 只有顶层JSON无法解析时返回错误
func parseEBGamesPayload(payload, platform, searchURL string) (quotes []models.PriceQuote, skipped int, err error) {
	var data ebGamesPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &data); err != nil {
		return nil, 0, fmt.Errorf("解析JSON失败: %w", err)
	}

	quotes = make([]models.PriceQuote, 0, len(data.Results))
	for i, raw := range data.Results {
		var result ebGamesResult
		if err := json.Unmarshal(raw, &result); err != nil {
			// 其他平台的坏数据直接忽略
			if resultPlatform(raw) != platform {
				continue
			}
			utils.Warnf("EB Games跳过第%d条结果: %v", i+1, err)
			skipped++
			continue
		}
		if result.PlatformName != platform {
			continue
		}
		if !result.Price.Valid {
			utils.Warnf("EB Games跳过第%d条结果: 缺少价格", i+1)
			skipped++
			continue
		}

		condition := models.ConditionNew
		if result.IsPreowned {
			condition = models.ConditionPreOwned
		}

		quoteURL := searchURL
		if result.URL != "" {
			quoteURL = result.URL
		}

		quotes = append(quotes, models.PriceQuote{
			Retailer:     EBGamesID,
			MatchedTitle: result.Title,
			Price:        result.Price.Decimal,
			Condition:    condition,
			Platform:     result.PlatformName,
			URL:          quoteURL,
		})
	}
	return quotes, skipped, nil
}

// resultPlatform 只读取结果的平台名
func resultPlatform(raw json.RawMessage) string {
	var head struct {
		PlatformName string `json:"platformName"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.PlatformName
}
