package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/retailers"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/spf13/viper"
)

// 默认抓取来源
const (
	DefaultCatalogURL     = "https://store.playstation.com/en-au/category/30e3fe35-8f2d-4496-95bc-844f56952e3c/"
	DefaultProductBaseURL = "https://store.playstation.com/"
	DefaultPlatformHint   = "PlayStation 4"
)

// Config 应用程序配置
type Config struct {
	Scrape  models.ScrapeConfig `mapstructure:"scrape"`
	Logging LoggingConfig       `mapstructure:"logging"`
	Output  OutputConfig        `mapstructure:"output"`

	// Headers 额外请求头部
	Headers map[string]string `mapstructure:"headers"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	ProductsFile string `mapstructure:"products_file"` // 商品记录文件名,"-"表示标准输出
	Progress     bool   `mapstructure:"progress"`
}

// LoadConfig 加载配置文件
// configPath 为空时在默认位置搜索 config.yaml,找不到则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".psprice"))
		}
	}

	setDefaults(v)

	// PSPRICE_SCRAPE_PLATFORM_HINT 等环境变量覆盖配置文件
	v.SetEnvPrefix("psprice")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 抓取配置默认值
	v.SetDefault("scrape.catalog_url", DefaultCatalogURL)
	v.SetDefault("scrape.product_base_url", DefaultProductBaseURL)
	v.SetDefault("scrape.catalog_page_count", 1)
	v.SetDefault("scrape.per_worker_concurrency", 2)
	v.SetDefault("scrape.per_adapter_timeout_ms", 15000)
	v.SetDefault("scrape.request_timeout_ms", 30000)
	v.SetDefault("scrape.platform_hint", DefaultPlatformHint)
	v.SetDefault("scrape.platform_field_prefix", "ps4")
	v.SetDefault("scrape.enabled_retailers", retailers.KnownRetailers())
	v.SetDefault("scrape.browser_sessions", 0)
	v.SetDefault("scrape.headless", true)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.products_file", "products.jsonl")
	v.SetDefault("output.progress", true)
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CLIOverrides 命令行参数,零值表示未指定
type CLIOverrides struct {
	CatalogPageCount     int
	PerWorkerConcurrency int
	PerAdapterTimeoutMs  int
	RequestTimeoutMs     int
	BrowserSessions      int
	PlatformHint         string
	PlatformFieldPrefix  string
	EnabledRetailers     []string
	OutputDir            string
	LogLevel             string

	// 指针区分"未指定"和"false"
	Headless *bool
	Progress *bool
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.CatalogPageCount > 0 {
		c.Scrape.CatalogPageCount = o.CatalogPageCount
	}
	if o.PerWorkerConcurrency > 0 {
		c.Scrape.PerWorkerConcurrency = o.PerWorkerConcurrency
	}
	if o.PerAdapterTimeoutMs > 0 {
		c.Scrape.PerAdapterTimeoutMs = o.PerAdapterTimeoutMs
	}
	if o.RequestTimeoutMs > 0 {
		c.Scrape.RequestTimeoutMs = o.RequestTimeoutMs
	}
	if o.BrowserSessions > 0 {
		c.Scrape.BrowserSessions = o.BrowserSessions
	}
	if o.PlatformHint != "" {
		c.Scrape.PlatformHint = o.PlatformHint
	}
	if o.PlatformFieldPrefix != "" {
		c.Scrape.PlatformFieldPrefix = o.PlatformFieldPrefix
	}
	if o.EnabledRetailers != nil {
		c.Scrape.EnabledRetailers = o.EnabledRetailers
	}
	if o.OutputDir != "" {
		c.Output.Dir = o.OutputDir
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.Headless != nil {
		c.Scrape.Headless = *o.Headless
	}
	if o.Progress != nil {
		c.Output.Progress = *o.Progress
	}
}
