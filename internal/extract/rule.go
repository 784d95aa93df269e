// Package extract 声明式字段提取
//
// 一条 Rule 描述如何在文档快照中定位一个节点: 元素标签、属性匹配(精确/前缀/后缀)、
// 可选的嵌套子路径,以及读取方式(文本、属性、HTML片段)。提取是纯函数,不做任何I/O,
// 找不到节点时返回缺失字段而不是报错。
package extract

import (
	"strings"
)

// MatchKind 属性匹配方式
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
	MatchSuffix MatchKind = "suffix"
)

// Matcher 属性值谓词
type Matcher struct {
	Kind  MatchKind `json:"kind"`
	Value string    `json:"value"`
}

// Exact 精确匹配
func Exact(v string) Matcher { return Matcher{Kind: MatchExact, Value: v} }

// Prefix 前缀匹配,用于末尾带序号的重复结构(如 listItem0, listItem1)
func Prefix(v string) Matcher { return Matcher{Kind: MatchPrefix, Value: v} }

// Suffix 后缀匹配
func Suffix(v string) Matcher { return Matcher{Kind: MatchSuffix, Value: v} }

// Match 判断属性值是否满足谓词
func (m Matcher) Match(v string) bool {
	switch m.Kind {
	case MatchPrefix:
		return strings.HasPrefix(v, m.Value)
	case MatchSuffix:
		return strings.HasSuffix(v, m.Value)
	default:
		return v == m.Value
	}
}

// ReadMode 节点读取方式
type ReadMode string

const (
	ReadText     ReadMode = "text"     // 去除首尾空白的文本
	ReadAttr     ReadMode = "attr"     // 读取属性值
	ReadFragment ReadMode = "fragment" // 节点本身的HTML
)

// Rule 字段定位规则
type Rule struct {
	Tag   string  `json:"tag"`
	Attr  string  `json:"attr,omitempty"` // 为空时不限制属性
	Match Matcher `json:"match"`

	// Sub 在匹配节点内部继续定位
	Sub *Rule `json:"sub,omitempty"`

	Read ReadMode `json:"read,omitempty"`
	Key  string   `json:"key,omitempty"` // ReadAttr 时读取的属性名

	// Missing 缺失时的占位文本
	Missing string `json:"missing,omitempty"`

	// Outermost 批量匹配时丢弃嵌套在其它匹配节点内部的节点
	Outermost bool `json:"outermost,omitempty"`
}

// By 按标签和属性谓词构造规则
func By(tag, attr string, m Matcher) Rule {
	return Rule{Tag: tag, Attr: attr, Match: m, Read: ReadText}
}

// DataQA 按 data-qa 属性构造规则(商店页面的主要定位属性)
func DataQA(tag string, m Matcher) Rule {
	return By(tag, "data-qa", m)
}

// Tag 仅按标签构造规则
func Tag(tag string) Rule {
	return Rule{Tag: tag, Read: ReadText}
}

// Then 追加嵌套子路径,读取方式由子规则决定
func (r Rule) Then(sub Rule) Rule {
	if r.Sub != nil {
		inner := r.Sub.Then(sub)
		r.Sub = &inner
		return r
	}
	r.Sub = &sub
	return r
}

// AttrValue 读取属性值
func (r Rule) AttrValue(key string) Rule {
	r.Read = ReadAttr
	r.Key = key
	return r
}

// HTML 读取HTML片段
func (r Rule) HTML() Rule {
	r.Read = ReadFragment
	return r
}

// OrElse 设置缺失占位文本
func (r Rule) OrElse(missing string) Rule {
	r.Missing = missing
	return r
}

// Outer 批量匹配时仅保留最外层节点
func (r Rule) Outer() Rule {
	r.Outermost = true
	return r
}

// leaf 返回子路径末端的规则(决定读取方式)
func (r Rule) leaf() Rule {
	for r.Sub != nil {
		r = *r.Sub
	}
	return r
}
