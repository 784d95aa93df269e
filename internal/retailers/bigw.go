package retailers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
)

const (
	defaultBigWURL = "https://www.bigw.com.au"

	// 搜索结果限定为PS5和PS4格式
	bigWFormatFilter = "&filter%5Bformat%5D=PlayStation+5&filter%5Bformat%5D=PlayStation+4"
)

// BodyExtractor 从BIG W搜索响应体中提取报价
type BodyExtractor interface {
	ExtractQuotes(body []byte, title, platform string) ([]models.PriceQuote, error)
}

// BodyExtractorFunc 函数形式的 BodyExtractor
type BodyExtractorFunc func(body []byte, title, platform string) ([]models.PriceQuote, error)

// ExtractQuotes 实现 BodyExtractor
func (f BodyExtractorFunc) ExtractQuotes(body []byte, title, platform string) ([]models.PriceQuote, error) {
	return f(body, title, platform)
}

// BigW 静态搜索适配器
// 只负责抓取,响应体交给调用方提供的 BodyExtractor 解析
type BigW struct {
	fetcher   crawlers.Fetcher
	baseURL   string
	extractor BodyExtractor
}

// NewBigW 创建BIG W适配器, extractor可以为nil
func NewBigW(fetcher crawlers.Fetcher, baseURL string, extractor BodyExtractor) *BigW {
	if baseURL == "" {
		baseURL = defaultBigWURL
	}
	return &BigW{
		fetcher:   fetcher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		extractor: extractor,
	}
}

// ID 零售商标识
func (bw *BigW) ID() string {
	return BigWID
}

// SearchURL 搜索地址: 空格替换为'+', '&'替换为'%26'
func (bw *BigW) SearchURL(title string) string {
	query := strings.NewReplacer(" ", "+", "&", "%26").Replace(title)
	return bw.baseURL + "/search?text=" + query + bigWFormatFilter
}

// Lookup 抓取搜索页,有解析器时解析报价
func (bw *BigW) Lookup(ctx context.Context, title, platform string) models.QuoteSlot {
	searchURL := bw.SearchURL(title)
	headers := http.Header{"User-Agent": []string{desktopUserAgent}}

	resp, err := bw.fetcher.Fetch(ctx, searchURL, headers)
	if err != nil {
		utils.Warnf("BIG W查询失败 [%s]: %v", title, err)
		return transportFailure(ctx, BigWID, err)
	}
	if !resp.OK() {
		utils.Warnf("BIG W返回状态码 %d [%s]", resp.StatusCode, title)
		return models.HTTPFailure(BigWID, resp.StatusCode)
	}

	if bw.extractor == nil {
		return models.Unparsed(BigWID, resp.Body)
	}

	quotes, err := bw.extractor.ExtractQuotes(resp.Body, title, platform)
	if err != nil {
		utils.Warnf("BIG W数据解析失败 [%s]: %v", title, err)
		return models.Missing(BigWID, models.AbsenceMalformed, err.Error())
	}
	if len(quotes) == 0 {
		return models.Missing(BigWID, models.AbsenceNoMatch, fmt.Sprintf("no products found for platform %q", platform))
	}

	for i := range quotes {
		quotes[i].Retailer = BigWID
		if quotes[i].URL == "" {
			quotes[i].URL = searchURL
		}
	}
	return models.Found(BigWID, quotes...)
}
