package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/PSPriceScout/internal/core"
	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/retailers"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	logLevel   string

	// HTTP头部参数
	headers        []string
	headerFile     string
	validateConfig bool

	// 抓取参数
	urlFile             string
	pageCount           int
	workers             int
	adapterTimeoutMs    int
	requestTimeoutMs    int
	sessions            int
	platformHint        string
	platformFieldPrefix string
	enabledRetailers    []string
	headless            bool
	progress            bool
	outputDir           string
)

// appConfig 由 PersistentPreRunE 加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "psprice",
	Short: "PlayStation商店目录抓取与比价工具",
	Long: `PSPriceScout - PlayStation商店目录抓取与多零售商比价工具

抓取PlayStation商店目录中的商品页,解析为规范化商品记录,
并到第三方零售商查询同名商品的报价:
  • EB Games (浏览器渲染)
  • BIG W (静态页面)
  • JB Hi-Fi (静态页面)

示例:
  # 抓取目录前3页
  psprice --pages 3

  # 只处理文件中的商品链接,只查询JB Hi-Fi
  psprice --url-file links.txt --retailers jbhifi

  # 自定义头部并验证配置
  psprice -H "Accept-Language: en-AU" --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		overrides := core.CLIOverrides{
			CatalogPageCount:     pageCount,
			PerWorkerConcurrency: workers,
			PerAdapterTimeoutMs:  adapterTimeoutMs,
			RequestTimeoutMs:     requestTimeoutMs,
			BrowserSessions:      sessions,
			PlatformHint:         platformHint,
			PlatformFieldPrefix:  platformFieldPrefix,
			OutputDir:            outputDir,
			LogLevel:             logLevel,
		}
		// 只有显式指定的参数覆盖配置文件
		if cmd.Flags().Changed("retailers") {
			overrides.EnabledRetailers = enabledRetailers
		}
		if cmd.Flags().Changed("headless") {
			overrides.Headless = &headless
		}
		if cmd.Flags().Changed("progress") {
			overrides.Progress = &progress
		}
		config.MergeCLIFlags(overrides)

		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(pageCount, workers, adapterTimeoutMs, requestTimeoutMs, sessions, urlFile); err != nil {
			return err
		}

		headerManager, err := core.NewHeaderManager(appConfig.Headers, headerFile, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return showValidation(headerManager)
		}

		// Ctrl+C 取消运行,已完成的记录保留
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, headerManager)
	},
}

// run 组装协作者并执行一次完整抓取
func run(ctx context.Context, headerManager *core.HeaderManager) error {
	scrape := appConfig.Scrape
	if err := scrape.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	// 每个链接同时有商品页和静态零售商的请求
	fetcher := crawlers.NewStaticFetcher(scrape.RequestTimeout(), scrape.PerWorkerConcurrency*(1+len(scrape.EnabledRetailers)), headerManager)
	renderer := crawlers.NewRodRenderer(crawlers.RodRendererConfig{
		Headless:       scrape.Headless,
		Sessions:       scrape.Sessions(),
		HeaderProvider: headerManager,
	})
	defer renderer.Close()

	adapters, err := retailers.Build(scrape.EnabledRetailers, retailers.Dependencies{
		Fetcher:  fetcher,
		Renderer: renderer,
	})
	if err != nil {
		return fmt.Errorf("创建零售商适配器失败: %w", err)
	}

	var source core.LinkSource
	if urlFile != "" {
		links, err := utils.ReadProductLinks(urlFile, scrape.ProductBaseURL)
		if err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}
		source = core.StaticLinks(links)
	} else {
		catalog, err := crawlers.NewCatalogLinkSource(fetcher, scrape.CatalogURL, scrape.ProductBaseURL, scrape.CatalogPageCount)
		if err != nil {
			return fmt.Errorf("目录配置无效: %w", err)
		}
		source = catalog
	}

	productsPath := appConfig.Output.ProductsFile
	if productsPath != "-" {
		productsPath = filepath.Join(appConfig.Output.Dir, productsPath)
	}
	sink, err := core.OpenJSONLinesSink(productsPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	orchestrator, err := core.NewOrchestrator(scrape, fetcher, adapters, sink)
	if err != nil {
		return fmt.Errorf("创建协调器失败: %w", err)
	}
	orchestrator.ShowProgress(appConfig.Output.Progress)

	summary, err := orchestrator.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("抓取失败: %w", err)
	}

	reportPath, err := utils.NewReporter(appConfig.Output.Dir).GenerateReport(summary)
	if err != nil {
		utils.Errorf("生成运行报告失败: %v", err)
	}

	fmt.Fprintln(os.Stderr, "\n==================================================")
	fmt.Fprintln(os.Stderr, "📊 抓取统计")
	fmt.Fprintln(os.Stderr, "==================================================")
	fmt.Fprintf(os.Stderr, "✅ 商品链接数: %d\n", summary.TotalLinks)
	fmt.Fprintf(os.Stderr, "✅ 成功: %d\n", summary.SuccessCount)
	fmt.Fprintf(os.Stderr, "❌ 失败: %d\n", summary.FailCount)
	fmt.Fprintf(os.Stderr, "⏹️  取消: %d\n", summary.Cancelled)
	fmt.Fprintf(os.Stderr, "📦 输出记录: %d\n", sink.Count())
	fmt.Fprintf(os.Stderr, "⏱️  总耗时: %.2f秒\n", summary.Duration)
	if reportPath != "" {
		fmt.Fprintf(os.Stderr, "📄 运行报告: %s\n", reportPath)
	}
	fmt.Fprintln(os.Stderr, "==================================================")

	if ctx.Err() != nil {
		utils.Warn("运行已被中断")
		return nil
	}
	utils.Info("✨ 抓取任务完成!")
	return nil
}

// showValidation 输出合并后的配置(脱敏)
func showValidation(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := appConfig.Scrape.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if _, err := retailers.Build(appConfig.Scrape.EnabledRetailers, retailers.Dependencies{
		Fetcher:  crawlers.NewStaticFetcher(appConfig.Scrape.RequestTimeout(), 0, headerManager),
		Renderer: crawlers.NewRodRenderer(crawlers.RodRendererConfig{}),
	}); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("启用的零售商: %v", appConfig.Scrape.EnabledRetailers)
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PSPriceScout %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headerFile, "header-file", "", "独立的HTTP头部配置文件")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 抓取参数 (零值表示使用配置文件)
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "商品链接文件,指定时不抓取目录")
	rootCmd.Flags().IntVarP(&pageCount, "pages", "p", 0, "目录页数 (1-100)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "商品页并发数 (1-32)")
	rootCmd.Flags().IntVar(&adapterTimeoutMs, "adapter-timeout", 0, "单个零售商查询超时(毫秒)")
	rootCmd.Flags().IntVar(&requestTimeoutMs, "request-timeout", 0, "静态请求超时(毫秒)")
	rootCmd.Flags().IntVar(&sessions, "sessions", 0, "浏览器会话上限")
	rootCmd.Flags().StringVar(&platformHint, "platform", "", "比价平台 (如 'PlayStation 4')")
	rootCmd.Flags().StringVar(&platformFieldPrefix, "platform-prefix", "", "平台专属语言字段前缀 (如 ps4)")
	rootCmd.Flags().StringSliceVarP(&enabledRetailers, "retailers", "r", nil, "启用的零售商 (ebgames,bigw,jbhifi)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&progress, "progress", true, "显示进度条")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
