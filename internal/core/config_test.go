package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/retailers"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	// 空文件只使用默认值
	config, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	s := config.Scrape
	if s.CatalogURL != DefaultCatalogURL || s.ProductBaseURL != DefaultProductBaseURL {
		t.Errorf("目录URL默认值错误: %s %s", s.CatalogURL, s.ProductBaseURL)
	}
	if s.CatalogPageCount != 1 || s.PerWorkerConcurrency != 2 {
		t.Errorf("页数/并发默认值错误: %d %d", s.CatalogPageCount, s.PerWorkerConcurrency)
	}
	if s.PerAdapterTimeoutMs != 15000 || s.RequestTimeoutMs != 30000 {
		t.Errorf("超时默认值错误: %d %d", s.PerAdapterTimeoutMs, s.RequestTimeoutMs)
	}
	if s.PlatformHint != DefaultPlatformHint || s.PlatformFieldPrefix != "ps4" {
		t.Errorf("平台默认值错误: %s %s", s.PlatformHint, s.PlatformFieldPrefix)
	}
	if !reflect.DeepEqual(s.EnabledRetailers, retailers.KnownRetailers()) {
		t.Errorf("默认应启用全部零售商, 实际 %v", s.EnabledRetailers)
	}
	if !s.Headless {
		t.Error("默认应为无头模式")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("默认配置应有效: %v", err)
	}

	if config.Output.Dir != "output" || config.Output.ProductsFile != "products.jsonl" || !config.Output.Progress {
		t.Errorf("输出默认值错误: %+v", config.Output)
	}
	if config.Logging.Level != "info" || config.Logging.Rotation.MaxSize != 10 {
		t.Errorf("日志默认值错误: %+v", config.Logging)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
scrape:
  catalog_page_count: 3
  per_worker_concurrency: 4
  platform_hint: PlayStation 5
  platform_field_prefix: ps5
  enabled_retailers: [jbhifi]
  headless: false
logging:
  level: debug
output:
  products_file: "-"
headers:
  X-Trace: abc
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	s := config.Scrape
	if s.CatalogPageCount != 3 || s.PerWorkerConcurrency != 4 {
		t.Errorf("页数/并发错误: %d %d", s.CatalogPageCount, s.PerWorkerConcurrency)
	}
	if s.PlatformHint != "PlayStation 5" || s.PlatformFieldPrefix != "ps5" {
		t.Errorf("平台错误: %s %s", s.PlatformHint, s.PlatformFieldPrefix)
	}
	if !reflect.DeepEqual(s.EnabledRetailers, []string{"jbhifi"}) {
		t.Errorf("零售商错误: %v", s.EnabledRetailers)
	}
	if s.Headless {
		t.Error("headless 应为 false")
	}
	// 未指定的字段保持默认值
	if s.PerAdapterTimeoutMs != 15000 {
		t.Errorf("未指定字段应使用默认值, 实际 %d", s.PerAdapterTimeoutMs)
	}
	if config.Logging.Level != "debug" || config.Output.ProductsFile != "-" {
		t.Errorf("日志/输出错误: %s %s", config.Logging.Level, config.Output.ProductsFile)
	}
	if config.Headers["x-trace"] != "abc" {
		t.Errorf("头部错误: %v", config.Headers)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := writeConfig(t, "scrape: [unclosed\n")

	_, err := LoadConfig(path)
	var configErr *models.ConfigError
	if !errors.As(err, &configErr) {
		t.Errorf("期望 ConfigError, 实际 %v", err)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("PSPRICE_SCRAPE_PLATFORM_HINT", "PlayStation 5")

	config, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.Scrape.PlatformHint != "PlayStation 5" {
		t.Errorf("环境变量应覆盖默认值, 实际 %s", config.Scrape.PlatformHint)
	}
}

func TestMergeCLIFlags(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	headless := false
	config.MergeCLIFlags(CLIOverrides{
		CatalogPageCount: 5,
		PlatformHint:     "PlayStation 5",
		EnabledRetailers: []string{"bigw"},
		LogLevel:         "warn",
		Headless:         &headless,
	})

	if config.Scrape.CatalogPageCount != 5 || config.Scrape.PlatformHint != "PlayStation 5" {
		t.Errorf("命令行参数未生效: %+v", config.Scrape)
	}
	if !reflect.DeepEqual(config.Scrape.EnabledRetailers, []string{"bigw"}) {
		t.Errorf("零售商错误: %v", config.Scrape.EnabledRetailers)
	}
	if config.Logging.Level != "warn" || config.Scrape.Headless {
		t.Errorf("日志级别/无头模式错误: %s %v", config.Logging.Level, config.Scrape.Headless)
	}

	// 零值不覆盖
	if config.Scrape.PerWorkerConcurrency != 2 || !config.Output.Progress {
		t.Errorf("未指定的参数不应覆盖配置: %+v", config)
	}
}

func TestConfig_LogConfig(t *testing.T) {
	config := &Config{Logging: LoggingConfig{
		Level:    "debug",
		LogDir:   "var/log",
		Rotation: RotationConfig{MaxSize: 5, MaxBackups: 2, MaxAge: 7, Compress: true},
	}}

	lc := config.LogConfig()
	if lc.Level != "debug" || lc.LogDir != "var/log" || lc.MaxSize != 5 || lc.MaxBackups != 2 || lc.MaxAge != 7 || !lc.Compress {
		t.Errorf("日志配置转换错误: %+v", lc)
	}
}
