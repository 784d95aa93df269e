package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"golang.org/x/net/html"
)

// Extract 在文档快照中按规则提取一个字段
// 规则链上任何一级缺失(节点不存在、属性不存在)都返回 models.Absent(rule.Missing)
func Extract(root *goquery.Selection, rule Rule) models.Field {
	node := Select(root, rule)
	if node.Length() == 0 {
		return models.Absent(rule.Missing)
	}

	leaf := rule.leaf()
	switch leaf.Read {
	case ReadAttr:
		v, ok := node.Attr(leaf.Key)
		if !ok {
			return models.Absent(rule.Missing)
		}
		return models.Text(v)
	case ReadFragment:
		fragment, err := Render(node)
		if err != nil {
			return models.Absent(rule.Missing)
		}
		return models.Fragment(fragment)
	default:
		return models.Text(strings.TrimSpace(node.Text()))
	}
}

// Select 返回规则链末端的第一个匹配节点,未匹配时返回空选择集
func Select(root *goquery.Selection, rule Rule) *goquery.Selection {
	current := root
	for r := &rule; r != nil; r = r.Sub {
		current = find(current, *r).First()
		if current.Length() == 0 {
			return current
		}
	}
	return current
}

// All 返回规则(不含子路径)在文档中的全部匹配节点,保持文档顺序
func All(root *goquery.Selection, rule Rule) []*goquery.Selection {
	matched := find(root, rule)
	if matched.Length() == 0 {
		return nil
	}

	var inSet map[*html.Node]bool
	if rule.Outermost {
		inSet = make(map[*html.Node]bool, matched.Length())
		for _, n := range matched.Nodes {
			inSet[n] = true
		}
	}

	result := make([]*goquery.Selection, 0, matched.Length())
	matched.Each(func(_ int, s *goquery.Selection) {
		if inSet != nil && hasMatchedAncestor(s.Nodes[0], inSet) {
			return
		}
		result = append(result, s)
	})
	return result
}

// Texts 返回全部匹配节点的文本(去除首尾空白)
func Texts(root *goquery.Selection, rule Rule) []string {
	nodes := All(root, rule)
	texts := make([]string, 0, len(nodes))
	for _, s := range nodes {
		texts = append(texts, strings.TrimSpace(s.Text()))
	}
	return texts
}

// Render 将选择集第一个节点序列化为HTML
func Render(s *goquery.Selection) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, s.Get(0)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// find 查找后代节点中满足标签与属性谓词的节点
func find(root *goquery.Selection, rule Rule) *goquery.Selection {
	tag := rule.Tag
	if tag == "" {
		tag = "*"
	}
	return root.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if rule.Attr == "" {
			return true
		}
		v, ok := s.Attr(rule.Attr)
		return ok && rule.Match.Match(v)
	})
}

func hasMatchedAncestor(n *html.Node, inSet map[*html.Node]bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if inSet[p] {
			return true
		}
	}
	return false
}
