package models

import (
	"fmt"
	"time"
)

// ScrapeConfig 抓取配置
type ScrapeConfig struct {
	CatalogURL           string   `mapstructure:"catalog_url" json:"catalog_url"`                       // 目录分页URL前缀,页码直接拼接在末尾
	ProductBaseURL       string   `mapstructure:"product_base_url" json:"product_base_url"`             // 商品相对链接的基准URL
	CatalogPageCount     int      `mapstructure:"catalog_page_count" json:"catalog_page_count"`         // 目录页数 (默认:1)
	PerWorkerConcurrency int      `mapstructure:"per_worker_concurrency" json:"per_worker_concurrency"` // 商品页并发数 (默认:2)
	PerAdapterTimeoutMs  int      `mapstructure:"per_adapter_timeout_ms" json:"per_adapter_timeout_ms"` // 单个零售商查询超时(毫秒)
	RequestTimeoutMs     int      `mapstructure:"request_timeout_ms" json:"request_timeout_ms"`         // 静态请求超时(毫秒)
	PlatformHint         string   `mapstructure:"platform_hint" json:"platform_hint"`                   // 比价平台 (默认:PlayStation 4)
	PlatformFieldPrefix  string   `mapstructure:"platform_field_prefix" json:"platform_field_prefix"`   // 平台专属语言字段前缀 (默认:ps4)
	EnabledRetailers     []string `mapstructure:"enabled_retailers" json:"enabled_retailers"`           // 启用的零售商
	BrowserSessions      int      `mapstructure:"browser_sessions" json:"browser_sessions"`             // 浏览器会话上限,0表示与并发数相同
	Headless             bool     `mapstructure:"headless" json:"headless"`                             // 无头模式 (默认:true)
}

// Validate 验证配置
func (c *ScrapeConfig) Validate() error {
	if c.CatalogPageCount < 1 || c.CatalogPageCount > 100 {
		return fmt.Errorf("目录页数必须在1-100之间")
	}
	if c.PerWorkerConcurrency < 1 || c.PerWorkerConcurrency > 32 {
		return fmt.Errorf("并发数必须在1-32之间")
	}
	if c.PerAdapterTimeoutMs < 100 || c.PerAdapterTimeoutMs > 300000 {
		return fmt.Errorf("零售商查询超时必须在100-300000毫秒之间")
	}
	if c.RequestTimeoutMs < 100 || c.RequestTimeoutMs > 300000 {
		return fmt.Errorf("请求超时必须在100-300000毫秒之间")
	}
	if c.BrowserSessions < 0 {
		return fmt.Errorf("浏览器会话数不能为负数")
	}
	if c.PlatformHint == "" {
		return fmt.Errorf("比价平台不能为空")
	}
	return nil
}

// AdapterTimeout 单个零售商查询超时
func (c *ScrapeConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.PerAdapterTimeoutMs) * time.Millisecond
}

// RequestTimeout 静态请求超时
func (c *ScrapeConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Sessions 实际浏览器会话上限
func (c *ScrapeConfig) Sessions() int {
	if c.BrowserSessions > 0 {
		return c.BrowserSessions
	}
	return c.PerWorkerConcurrency
}
