package main

import (
	"fmt"
	"os"
)

// ValidateFlags 验证命令行标志
// 零值表示未指定,由配置文件决定
func ValidateFlags(
	pageCount int,
	workers int,
	adapterTimeoutMs int,
	requestTimeoutMs int,
	sessions int,
	urlFile string,
) error {
	// 验证目录页数
	if pageCount < 0 || pageCount > 100 {
		return fmt.Errorf("目录页数必须在1-100之间,当前值: %d", pageCount)
	}

	// 验证并发数
	if workers < 0 || workers > 32 {
		return fmt.Errorf("并发数必须在1-32之间,当前值: %d", workers)
	}

	// 验证超时
	if adapterTimeoutMs < 0 || adapterTimeoutMs > 300000 {
		return fmt.Errorf("零售商查询超时必须在100-300000毫秒之间,当前值: %d", adapterTimeoutMs)
	}
	if requestTimeoutMs < 0 || requestTimeoutMs > 300000 {
		return fmt.Errorf("请求超时必须在100-300000毫秒之间,当前值: %d", requestTimeoutMs)
	}

	// 验证会话数
	if sessions < 0 || sessions > 32 {
		return fmt.Errorf("浏览器会话数必须在1-32之间,当前值: %d", sessions)
	}

	return ValidateURLFile(urlFile)
}

// ValidateURLFile 验证URL文件存在且不是目录
func ValidateURLFile(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("无法访问URL文件: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("URL文件路径是目录: %s", path)
	}
	return nil
}
