package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ReadProductLinks 从文件中读取商品链接
// 相对链接按 baseURL 解析,不属于 baseURL 主机的链接被跳过
// baseURL 为空时只接受绝对链接且不检查主机
// 链接去掉片段后去重,只保留第一次出现
func ReadProductLinks(path, baseURL string) ([]string, error) {
	var base *url.URL
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("商品基准URL无效: %q", baseURL)
		}
		base = parsed
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	var links []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		link, err := resolveProductLink(line, base)
		if err != nil {
			Warnf("跳过链接 (行 %d): %s - %v", lineNum, line, err)
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("URL文件中没有有效的商品链接")
	}

	Infof("从文件加载了 %d 个商品链接", len(links))
	return links, nil
}

// resolveProductLink 解析一行链接,返回去掉片段的绝对URL
func resolveProductLink(line string, base *url.URL) (string, error) {
	parsed, err := url.Parse(line)
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}

	if !parsed.IsAbs() {
		if base == nil || parsed.Host != "" || !strings.HasPrefix(parsed.Path, "/") {
			return "", fmt.Errorf("URL缺少协议(http/https)")
		}
		parsed = base.ResolveReference(parsed)
	}

	if err := ValidateURL(parsed.String()); err != nil {
		return "", err
	}
	if base != nil && !strings.EqualFold(parsed.Hostname(), base.Hostname()) {
		return "", fmt.Errorf("不是商品主机 %s 的链接", base.Hostname())
	}

	parsed.Fragment = ""
	return parsed.String(), nil
}

// ValidateURL 验证URL是http/https绝对地址
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}

	switch {
	case parsed.Scheme == "":
		return fmt.Errorf("URL缺少协议(http/https)")
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return fmt.Errorf("URL协议必须是http或https")
	case parsed.Host == "":
		return fmt.Errorf("URL缺少主机名")
	}
	return nil
}
