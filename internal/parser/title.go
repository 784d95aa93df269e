package parser

import "strings"

// titleDecorations 标题装饰标记,按顺序逐个删除
// 顺序有意义: 单独的 "PS4"/"PS5" 先于组合标记被删除
var titleDecorations = []string{
	"PS4",
	"PS5",
	"®",
	"&",
	"PS4 & PS5",
	"- Game of the Year Edition",
	"-",
	"Game of the Year Edition",
}

// NormalizeTitle 删除平台徽标、商标符号和版本后缀,并压缩空白
func NormalizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for _, token := range titleDecorations {
		title = strings.ReplaceAll(title, token, "")
	}
	return strings.Join(strings.Fields(title), " ")
}
