// Package parser 将商店商品页解析为规范化的商品记录
package parser

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/PSPriceScout/internal/extract"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
)

// ErrEmptyDocument 文档缺少顶层结构(页面未正常加载)
var ErrEmptyDocument = errors.New("文档为空,页面可能未正常加载")

// DefaultPlatformPrefix 平台专属语言字段的默认前缀
const DefaultPlatformPrefix = "ps4"

const releaseInfo = "gameInfo#releaseInformation#"

// 标量字段规则
var (
	titleRule       = extract.DataQA("h1", extract.Exact("mfe-game-title#name")).OrElse(models.TitleNotFound)
	heroImageRule   = extract.DataQA("span", extract.Exact("gameBackgroundImage#heroImage")).Then(extract.DataQA("img", extract.Exact("gameBackgroundImage#heroImage#image-no-js")).AttrValue("src")).OrElse(models.HeroImageNotFound)
	publisherRule   = extract.DataQA("div", extract.Exact("mfe-game-title#publisher")).OrElse(models.PublisherNotFound)
	ratingRule      = extract.DataQA("div", extract.Exact("mfe-game-title#average-rating")).OrElse(models.RatingNotFound)
	descriptorsRule = extract.DataQA("span", extract.Exact("mfe-content-rating#textDescriptors")).OrElse(models.DescriptorsNotFound)
	ratingIconRule  = extract.DataQA("span", extract.Exact("mfe-content-rating#ratingImage")).Then(extract.Tag("img").AttrValue("src")).OrElse(models.RestrictionIconNotFound)
	finalPriceRule  = extract.DataQA("span", extract.Exact("mfeCtaMain#offer0#finalPrice")).OrElse(models.PriceNotFound)
	origPriceRule   = extract.DataQA("span", extract.Exact("mfeCtaMain#offer0#originalPrice")).OrElse(models.PriceNotFound)
	releaseDateRule = extract.DataQA("dd", extract.Exact(releaseInfo+"releaseDate-value")).OrElse(models.ReleaseDateNotFound)
	genreRule       = extract.DataQA("dd", extract.Exact(releaseInfo+"genre-value")).OrElse(models.GenreNotFound)
	voiceRule       = extract.DataQA("dd", extract.Exact(releaseInfo+"voice-value")).OrElse(models.VoiceLanguageNotFound)
	subtitlesRule   = extract.DataQA("dd", extract.Exact(releaseInfo+"subtitles-value")).OrElse(models.ScreenLanguagesNotFound)
	platformRule    = extract.DataQA("dd", extract.Exact(releaseInfo+"platform-value")).OrElse(models.PlatformNotFound)
	descriptionRule = extract.DataQA("p", extract.Exact("mfe-game-overview#description")).HTML().OrElse(models.DescriptionNotFound)
	legalTextRule   = extract.DataQA("div", extract.Exact("mfe-legal-text#text")).HTML().OrElse(models.LegalTextNotFound)
)

// 集合字段规则
var (
	featureItemRule = extract.DataQA("li", extract.Prefix("mfe-compatibility-notices#notices#listItem"))
	featureTextRule = extract.DataQA("span", extract.Suffix("#compatText"))
	featureIconRule = extract.DataQA("span", extract.Suffix("#compatIcon")).HTML()

	addOnItemRule  = extract.DataQA("div", extract.Prefix("add-ons-grid#")).Outer()
	addOnNameRule  = extract.DataQA("span", extract.Suffix("#product-name"))
	addOnPriceRule = extract.DataQA("span", extract.Suffix("#price#display-price")).OrElse(models.PriceNotFound)
	addOnImageRule = extract.By("img", "class", extract.Exact("psw-top-left psw-l-fit-cover")).AttrValue("src").OrElse(models.ImageNotFound)

	editionItemRule    = extract.DataQA("article", extract.Prefix("mfeUpsell#productEdition")).Outer()
	editionNameRule    = extract.DataQA("h3", extract.Suffix("#editionName")).OrElse(models.EditionNameNotFound)
	editionPriceRule   = extract.DataQA("span", extract.Suffix("#finalPrice")).OrElse(models.PriceNotFound)
	editionImageRule   = extract.By("img", "class", extract.Exact("psw-center psw-l-fit-contain")).AttrValue("src").OrElse(models.ImageNotFound)
	editionContentRule = extract.DataQA("li", extract.Prefix("mfeUpsell#productEdition"))
)

// ProductParser 商品页解析器
type ProductParser struct {
	platformVoiceRule     extract.Rule
	platformSubtitlesRule extract.Rule
}

// NewProductParser 创建解析器
// platformPrefix 为平台专属语言字段前缀(如 "ps4" 对应 ps4Voice-value)
func NewProductParser(platformPrefix string) *ProductParser {
	if platformPrefix == "" {
		platformPrefix = DefaultPlatformPrefix
	}
	return &ProductParser{
		platformVoiceRule:     extract.DataQA("dd", extract.Exact(releaseInfo+platformPrefix+"Voice-value")),
		platformSubtitlesRule: extract.DataQA("dd", extract.Exact(releaseInfo+platformPrefix+"Subtitles-value")),
	}
}

// Parse 解析一个商品页文档
// 同一文档多次解析得到结构相同的记录
func (pp *ProductParser) Parse(sourceURL string, doc *goquery.Document) (*models.Product, error) {
	if doc == nil || doc.Find("body").Children().Length() == 0 {
		return nil, ErrEmptyDocument
	}
	root := doc.Selection
	product := models.NewProduct(sourceURL)

	product.Title = parseTitle(root)
	product.HeroImageURL = escapeAmpersand(extract.Extract(root, heroImageRule))
	product.Publisher = extract.Extract(root, publisherRule)
	product.Rating = extract.Extract(root, ratingRule)
	product.AgeRestrictionText = extract.Extract(root, descriptorsRule)
	product.AgeIconURL = extract.Extract(root, ratingIconRule)
	product.RestrictionIconURL = escapeAmpersand(product.AgeIconURL)
	product.ReleaseDate = extract.Extract(root, releaseDateRule)
	product.Genre = extract.Extract(root, genreRule)
	product.PlatformLabel = extract.Extract(root, platformRule)
	product.VoiceLanguages = pp.language(root, pp.platformVoiceRule, voiceRule)
	product.SubtitleLanguages = pp.language(root, pp.platformSubtitlesRule, subtitlesRule)
	product.Description = extract.Extract(root, descriptionRule)
	product.LegalText = extract.Extract(root, legalTextRule)
	product.DiscountPrice, product.RegularPrice = resolvePrices(
		extract.Extract(root, finalPriceRule),
		extract.Extract(root, origPriceRule),
	)

	product.Features = parseFeatures(root)
	product.AddOns = parseAddOns(root)
	product.Editions = parseEditions(root)

	return product, nil
}

// parseTitle 标题节点缺失或规范化后为空时均视为缺失
func parseTitle(root *goquery.Selection) models.Field {
	raw := extract.Extract(root, titleRule)
	if !raw.Present() {
		return raw
	}
	title := NormalizeTitle(raw.Value)
	if title == "" {
		return models.Absent(models.TitleNotFound)
	}
	return models.Text(title)
}

// language 平台专属字段优先,(缺失或为空时)回退到通用字段
func (pp *ProductParser) language(root *goquery.Selection, platformRule, genericRule extract.Rule) models.Field {
	specific := extract.Extract(root, platformRule)
	if specific.Present() && specific.Value != "" {
		return specific
	}
	return extract.Extract(root, genericRule)
}

// resolvePrices 返回 (折后价, 原价)
//  1. 现价与原价都存在: 折后价=现价, 原价=原价
//  2. 仅现价存在: 两者均为现价
//  3. 都不存在: 两者均为 "Price not found"
func resolvePrices(final, original models.Field) (discount, regular models.Field) {
	switch {
	case final.Present() && original.Present():
		return final, original
	case final.Present():
		return final, final
	default:
		return models.Absent(models.PriceNotFound), models.Absent(models.PriceNotFound)
	}
}

func parseFeatures(root *goquery.Selection) []models.Feature {
	features := make([]models.Feature, 0)
	for _, item := range extract.All(root, featureItemRule) {
		text := extract.Extract(item, featureTextRule)
		icon := extract.Extract(item, featureIconRule)
		if !text.Present() || !icon.Present() {
			continue
		}
		features = append(features, models.Feature{Icon: icon.Value, Text: text.Value})
	}
	return features
}

// parseAddOns 没有名称的条目直接丢弃
func parseAddOns(root *goquery.Selection) []models.AddOn {
	addOns := make([]models.AddOn, 0)
	for _, item := range extract.All(root, addOnItemRule) {
		name := extract.Extract(item, addOnNameRule)
		if !name.Present() || name.Value == "" {
			continue
		}
		addOns = append(addOns, models.AddOn{
			Name:     name.Value,
			Price:    extract.Extract(item, addOnPriceRule),
			ImageURL: extract.Extract(item, addOnImageRule),
		})
	}
	return addOns
}

// parseEditions 没有内容条目时使用单元素占位列表
func parseEditions(root *goquery.Selection) []models.Edition {
	editions := make([]models.Edition, 0)
	for _, item := range extract.All(root, editionItemRule) {
		content := extract.Texts(item, editionContentRule)
		if len(content) == 0 {
			content = []string{models.ContentNotFound}
		}
		editions = append(editions, models.Edition{
			Name:     extract.Extract(item, editionNameRule),
			Price:    extract.Extract(item, editionPriceRule),
			ImageURL: extract.Extract(item, editionImageRule),
			Content:  content,
		})
	}
	return editions
}

// escapeAmpersand 保持与嵌入场景兼容,URL中的 & 存为 &amp;
func escapeAmpersand(f models.Field) models.Field {
	if !f.Present() {
		return f
	}
	f.Value = strings.ReplaceAll(f.Value, "&", "&amp;")
	return f
}
