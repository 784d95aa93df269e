package extract

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
)

func newDoc(t *testing.T, body string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatalf("解析HTML失败: %v", err)
	}
	return doc.Selection
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		name     string
		matcher  Matcher
		value    string
		expected bool
	}{
		{"精确匹配", Exact("a#b"), "a#b", true},
		{"精确不匹配", Exact("a#b"), "a#bc", false},
		{"前缀匹配", Prefix("add-ons-grid#"), "add-ons-grid#3", true},
		{"前缀不匹配", Prefix("add-ons-grid#"), "grid#3", false},
		{"后缀匹配", Suffix("#product-name"), "add-ons-grid#3#product-name", true},
		{"后缀不匹配", Suffix("#product-name"), "add-ons-grid#3#price", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.matcher.Match(tt.value); got != tt.expected {
				t.Errorf("Match(%q) = %v, 期望 %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	root := newDoc(t, `
		<h1 data-qa="title">  Hello World  </h1>
		<h2 data-qa="empty"></h2>
		<span data-qa="hero"><img data-qa="hero#img" src="https://x/y.png"></span>
		<span data-qa="noimg"></span>
		<p data-qa="desc">Some <i>rich</i> text</p>`)

	tests := []struct {
		name      string
		rule      Rule
		wantKind  models.FieldKind
		wantValue string
	}{
		{"文本去除首尾空白", DataQA("h1", Exact("title")), models.FieldText, "Hello World"},
		{"存在但为空", DataQA("h2", Exact("empty")), models.FieldText, ""},
		{"节点缺失", DataQA("h1", Exact("missing")).OrElse("Missing"), models.FieldAbsent, ""},
		{"嵌套属性", DataQA("span", Exact("hero")).Then(DataQA("img", Exact("hero#img")).AttrValue("src")), models.FieldText, "https://x/y.png"},
		{"嵌套子路径缺失", DataQA("span", Exact("noimg")).Then(Tag("img").AttrValue("src")), models.FieldAbsent, ""},
		{"属性缺失", DataQA("h1", Exact("title")).AttrValue("href"), models.FieldAbsent, ""},
		{"HTML片段", DataQA("p", Exact("desc")).HTML(), models.FieldFragment, `<p data-qa="desc">Some <i>rich</i> text</p>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(root, tt.rule)
			if got.Kind != tt.wantKind {
				t.Fatalf("期望类型 %v, 实际 %v", tt.wantKind, got.Kind)
			}
			if got.Value != tt.wantValue {
				t.Errorf("期望值 %q, 实际 %q", tt.wantValue, got.Value)
			}
		})
	}

	t.Run("缺失时保留占位原因", func(t *testing.T) {
		got := Extract(root, DataQA("h1", Exact("missing")).OrElse("Title not found"))
		if got.String() != "Title not found" {
			t.Errorf("期望占位文本, 实际 %q", got.String())
		}
	})
}

// 同一逻辑字段的序号变化不应影响提取结果
func TestExtract_SiblingIndexChurn(t *testing.T) {
	rule := DataQA("div", Prefix("add-ons-grid#")).Then(DataQA("span", Suffix("#product-name")))

	for _, index := range []string{"0", "7", "12", "abc"} {
		t.Run("序号"+index, func(t *testing.T) {
			root := newDoc(t, `<div data-qa="add-ons-grid#`+index+`"><span data-qa="add-ons-grid#`+index+`#product-name">Season Pass</span></div>`)
			got := Extract(root, rule)
			if got.String() != "Season Pass" {
				t.Errorf("期望 %q, 实际 %q", "Season Pass", got.String())
			}
		})
	}
}

func TestAll(t *testing.T) {
	root := newDoc(t, `
		<div data-qa="grid#0"><div data-qa="grid#0#inner">a</div></div>
		<div data-qa="grid#1">b</div>
		<div data-qa="other">c</div>`)

	t.Run("全部匹配保持文档顺序", func(t *testing.T) {
		got := Texts(root, DataQA("div", Prefix("grid#")))
		want := []string{"a", "a", "b"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("期望 %v, 实际 %v", want, got)
		}
	})

	t.Run("仅保留最外层", func(t *testing.T) {
		got := Texts(root, DataQA("div", Prefix("grid#")).Outer())
		want := []string{"a", "b"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("期望 %v, 实际 %v", want, got)
		}
	})

	t.Run("无匹配", func(t *testing.T) {
		if got := All(root, DataQA("li", Prefix("grid#"))); len(got) != 0 {
			t.Errorf("期望无匹配, 实际 %d", len(got))
		}
	})
}

func TestRule_Serializable(t *testing.T) {
	rule := DataQA("span", Exact("hero")).Then(Tag("img").AttrValue("src")).OrElse("Image not found")

	data, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	var decoded Rule
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("反序列化失败: %v", err)
	}
	if !reflect.DeepEqual(rule, decoded) {
		t.Errorf("规则往返不一致: %+v vs %+v", rule, decoded)
	}
}
