package models

import (
	"bytes"
	"encoding/json"
)

// FieldKind 字段取值状态
type FieldKind int

const (
	FieldAbsent   FieldKind = iota // 未找到
	FieldText                      // 纯文本
	FieldFragment                  // 原始HTML片段
)

// 字段缺失时对外输出的占位文本
const (
	TitleNotFound           = "Title not found"
	PriceNotFound           = "Price not found"
	ImageNotFound           = "Image not found"
	ContentNotFound         = "Content not found"
	EditionNameNotFound     = "Edition name not found"
	HeroImageNotFound       = "Game image not found"
	PublisherNotFound       = "Publisher not found"
	RatingNotFound          = "Rating not found"
	DescriptorsNotFound     = "Descriptors not found"
	RestrictionIconNotFound = "Restriction icon not found"
	ReleaseDateNotFound     = "Release date not found"
	GenreNotFound           = "Genre not found"
	VoiceLanguageNotFound   = "Voice language not found"
	ScreenLanguagesNotFound = "Screen languages not found"
	PlatformNotFound        = "Platform not found"
	DescriptionNotFound     = "Description not found"
	LegalTextNotFound       = "Additional description not found"
)

// Field 可选字段
// 区分"未找到"与"找到但为空",缺失时保留原因,仅在序列化时转换为占位文本
type Field struct {
	Kind   FieldKind
	Value  string // 文本或HTML片段
	Reason string // 缺失原因(占位文本)
}

// Text 构造文本字段
func Text(v string) Field {
	return Field{Kind: FieldText, Value: v}
}

// Fragment 构造HTML片段字段
func Fragment(html string) Field {
	return Field{Kind: FieldFragment, Value: html}
}

// Absent 构造缺失字段
func Absent(reason string) Field {
	return Field{Kind: FieldAbsent, Reason: reason}
}

// Present 字段是否存在
func (f Field) Present() bool {
	return f.Kind != FieldAbsent
}

// Or 字段缺失时返回替代字段
func (f Field) Or(other Field) Field {
	if f.Present() {
		return f
	}
	return other
}

// String 对外输出值,缺失时为占位文本
func (f Field) String() string {
	if !f.Present() {
		return f.Reason
	}
	return f.Value
}

// MarshalJSON 序列化为外部兼容的字符串形式
// HTML片段和URL中的 <, >, & 原样输出
func (f Field) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(f.String()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Edition 游戏版本
type Edition struct {
	Name     Field    `json:"name"`
	Price    Field    `json:"price"`
	ImageURL Field    `json:"img_url"`
	Content  []string `json:"content"`
}

// AddOn 附加内容(DLC)
type AddOn struct {
	Name     string `json:"name"`
	Price    Field  `json:"price"`
	ImageURL Field  `json:"img_url"`
}

// Feature 兼容性说明条目(图标片段+文本)
type Feature struct {
	Icon string `json:"icon"`
	Text string `json:"text"`
}

// Product 商品目录记录
type Product struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`

	// Title 规范化后的标题,解析后不可变,下游比价以此为键
	Title Field `json:"title"`

	Publisher          Field `json:"publisher"`
	Rating             Field `json:"rating"`
	AgeRestrictionText Field `json:"age_restriction"`
	AgeIconURL         Field `json:"age_icon_url"`
	RestrictionIconURL Field `json:"restriction_icon"`
	HeroImageURL       Field `json:"game_image"`
	ReleaseDate        Field `json:"release_date"`
	Genre              Field `json:"genre"`
	VoiceLanguages     Field `json:"voice_languages"`
	SubtitleLanguages  Field `json:"screen_languages"`
	PlatformLabel      Field `json:"platform"`
	Description        Field `json:"description"`
	LegalText          Field `json:"additional_description"`
	RegularPrice       Field `json:"regular_price"`
	DiscountPrice      Field `json:"discount_price"`

	Features []Feature `json:"key_features"`
	Editions []Edition `json:"editions"`
	AddOns   []AddOn   `json:"dlc"`

	// Quotes 零售商ID -> 比价结果
	Quotes map[string]QuoteSlot `json:"quotes"`
}

// NewProduct 创建空商品记录
func NewProduct(sourceURL string) *Product {
	return &Product{
		ID:        ProductID(sourceURL),
		SourceURL: sourceURL,
		Title:     Absent(TitleNotFound),
		Features:  make([]Feature, 0),
		Editions:  make([]Edition, 0),
		AddOns:    make([]AddOn, 0),
		Quotes:    make(map[string]QuoteSlot),
	}
}

// Matchable 标题是否可用于跨零售商匹配
func (p *Product) Matchable() bool {
	return p.Title.Present() && p.Title.Value != ""
}
