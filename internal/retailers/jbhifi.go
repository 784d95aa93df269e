package retailers

import (
	"context"
	"net/http"
	"strings"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/shopspring/decimal"
)

const (
	defaultJBHiFiURL = "https://www.jbhifi.com.au"

	jbHiFiPriceSelector = `meta[property="og:price:amount"]`
)

// JBHiFi 商品直链适配器
type JBHiFi struct {
	fetcher crawlers.Fetcher
	baseURL string
}

// NewJBHiFi 创建JB Hi-Fi适配器, baseURL为空时使用线上地址
func NewJBHiFi(fetcher crawlers.Fetcher, baseURL string) *JBHiFi {
	if baseURL == "" {
		baseURL = defaultJBHiFiURL
	}
	return &JBHiFi{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ID 零售商标识
func (jb *JBHiFi) ID() string {
	return JBHiFiID
}

// ProductURL 商品地址: /products/{平台}-{标题}
func (jb *JBHiFi) ProductURL(title, platform string) string {
	return jb.baseURL + "/products/" + Slugify(platform+" "+title)
}

// Lookup 抓取商品页并读取价格元数据
func (jb *JBHiFi) Lookup(ctx context.Context, title, platform string) models.QuoteSlot {
	productURL := jb.ProductURL(title, platform)
	headers := http.Header{"User-Agent": []string{desktopUserAgent}}

	resp, err := jb.fetcher.Fetch(ctx, productURL, headers)
	if err != nil {
		utils.Warnf("JB Hi-Fi查询失败 [%s]: %v", title, err)
		return transportFailure(ctx, JBHiFiID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.HTTPFailure(JBHiFiID, resp.StatusCode)
	}

	doc, err := resp.Document()
	if err != nil {
		return models.Missing(JBHiFiID, models.AbsenceMalformed, err.Error())
	}

	content, ok := doc.Find(jbHiFiPriceSelector).First().Attr("content")
	content = strings.TrimSpace(content)
	if !ok || content == "" {
		return models.Missing(JBHiFiID, models.AbsenceNotFound, "price not found")
	}

	price, err := decimal.NewFromString(content)
	if err != nil {
		utils.Warnf("JB Hi-Fi价格格式错误 [%s]: %q", title, content)
		return models.Missing(JBHiFiID, models.AbsenceMalformed, err.Error())
	}

	return models.Found(JBHiFiID, models.PriceQuote{
		Retailer:     JBHiFiID,
		MatchedTitle: title,
		Price:        price,
		Condition:    models.ConditionNew,
		Platform:     platform,
		URL:          productURL,
	})
}
