package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
)

// ErrCatalogUnreachable 所有目录页都获取失败
var ErrCatalogUnreachable = errors.New("目录无法访问")

// productTileSelector 目录页中的商品卡片链接
const productTileSelector = `a[data-track="web:store:product-tile"]`

// CatalogLinkSource 目录链接来源
// 依次抓取 catalogURL+页码 (1..pageCount),收集商品链接
type CatalogLinkSource struct {
	fetcher   Fetcher
	catalog   string
	base      *url.URL
	pageCount int
}

// NewCatalogLinkSource 创建目录链接来源
func NewCatalogLinkSource(fetcher Fetcher, catalogURL, productBaseURL string, pageCount int) (*CatalogLinkSource, error) {
	if catalogURL == "" {
		return nil, fmt.Errorf("目录URL不能为空")
	}
	base, err := url.Parse(productBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("商品基准URL格式无效: %s", productBaseURL)
	}
	if pageCount < 1 {
		pageCount = 1
	}

	return &CatalogLinkSource{
		fetcher:   fetcher,
		catalog:   catalogURL,
		base:      base,
		pageCount: pageCount,
	}, nil
}

// Links 返回去重后的绝对商品URL,保持首次出现的顺序
// 单页失败只记录日志;所有页都失败时返回 ErrCatalogUnreachable
func (cs *CatalogLinkSource) Links(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	links := make([]string, 0)
	reached := 0

	for page := 1; page <= cs.pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		pageURL := cs.catalog + strconv.Itoa(page)
		doc, err := FetchDocument(ctx, cs.fetcher, pageURL)
		if err != nil {
			utils.Warnf("获取目录页失败 [%s]: %v", pageURL, err)
			continue
		}
		reached++

		found := 0
		for _, link := range cs.extractLinks(doc) {
			if seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
			found++
		}
		utils.Infof("目录第%d页: 新增 %d 个商品链接", page, found)
	}

	if reached == 0 {
		return nil, fmt.Errorf("%w: %s (共%d页)", ErrCatalogUnreachable, cs.catalog, cs.pageCount)
	}
	return links, nil
}

// extractLinks 提取并解析商品链接
func (cs *CatalogLinkSource) extractLinks(doc *goquery.Document) []string {
	var result []string
	doc.Find(productTileSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			utils.Debugf("跳过无效链接: %s", href)
			return
		}
		result = append(result, cs.base.ResolveReference(ref).String())
	})
	return result
}
