package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Condition 商品成色
type Condition string

const (
	ConditionNew      Condition = "New"
	ConditionPreOwned Condition = "Pre-owned"
	ConditionUnknown  Condition = "Unknown"
)

// PriceQuote 第三方零售商的一条报价
type PriceQuote struct {
	Retailer     string          `json:"retailer"`
	MatchedTitle string          `json:"matched_title"`
	Price        decimal.Decimal `json:"price"`
	Condition    Condition       `json:"condition"`
	Platform     string          `json:"platform"`
	URL          string          `json:"url,omitempty"`
}

// AbsenceKind 报价缺失原因类型
type AbsenceKind string

const (
	AbsenceNotFound  AbsenceKind = "not-found"         // 页面存在但缺少价格节点
	AbsenceHTTPError AbsenceKind = "http-error"        // 非2xx响应
	AbsenceTransport AbsenceKind = "transport-error"   // 连接失败等
	AbsenceTimeout   AbsenceKind = "timeout"           // 请求或渲染超时
	AbsenceMalformed AbsenceKind = "malformed-payload" // 结构化数据无法解析
	AbsenceNoMatch   AbsenceKind = "no-match"          // 无符合平台的结果
	AbsenceUnparsed  AbsenceKind = "unparsed"          // 仅抓取,未配置解析器
	AbsenceSkipped   AbsenceKind = "skipped"           // 标题缺失,未查询
)

// Absence 报价缺失标记
type Absence struct {
	Kind       AbsenceKind `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

// Error 实现error接口
func (a *Absence) Error() string {
	if a.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", a.Kind, a.StatusCode, a.Detail)
	}
	if a.Detail != "" {
		return fmt.Sprintf("%s: %s", a.Kind, a.Detail)
	}
	return string(a.Kind)
}

// IsTransport 是否属于传输层错误
func (a *Absence) IsTransport() bool {
	switch a.Kind {
	case AbsenceHTTPError, AbsenceTransport, AbsenceTimeout:
		return true
	}
	return false
}

// QuoteSlot 单个零售商的查询结果: 报价列表或缺失原因,二者互斥
type QuoteSlot struct {
	Retailer string       `json:"retailer"`
	Quotes   []PriceQuote `json:"quotes,omitempty"`
	Absence  *Absence     `json:"absence,omitempty"`

	// 未解析时保留的原始响应体,供下游自行解析
	Raw string `json:"raw,omitempty"`
}

// Found 构造成功结果
func Found(retailer string, quotes ...PriceQuote) QuoteSlot {
	return QuoteSlot{Retailer: retailer, Quotes: quotes}
}

// Missing 构造缺失结果
func Missing(retailer string, kind AbsenceKind, detail string) QuoteSlot {
	return QuoteSlot{Retailer: retailer, Absence: &Absence{Kind: kind, Detail: detail}}
}

// Unparsed 构造仅抓取未解析的结果,保留原始响应体
func Unparsed(retailer string, raw []byte) QuoteSlot {
	slot := Missing(retailer, AbsenceUnparsed, fmt.Sprintf("fetched %d bytes, no extractor configured", len(raw)))
	slot.Raw = string(raw)
	return slot
}

// HTTPFailure 构造HTTP错误结果
func HTTPFailure(retailer string, statusCode int) QuoteSlot {
	return QuoteSlot{
		Retailer: retailer,
		Absence: &Absence{
			Kind:       AbsenceHTTPError,
			StatusCode: statusCode,
			Detail:     fmt.Sprintf("received status code %d", statusCode),
		},
	}
}

// OK 是否取得至少一条报价
func (s QuoteSlot) OK() bool {
	return s.Absence == nil && len(s.Quotes) > 0
}
