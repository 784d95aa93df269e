package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/parser"
	"github.com/RecoveryAshes/PSPriceScout/internal/retailers"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// ErrNoRetailers 没有启用任何零售商
var ErrNoRetailers = errors.New("没有启用任何零售商")

// LinkSource 商品链接来源
type LinkSource interface {
	Links(ctx context.Context) ([]string, error)
}

// StaticLinks 固定的链接列表 (如 --url-file)
type StaticLinks []string

// Links 实现 LinkSource
func (s StaticLinks) Links(context.Context) ([]string, error) {
	return s, nil
}

// Orchestrator 抓取流程协调器
// 对每个链接: 获取 -> 解析 -> 比价 -> 输出,链接之间相互独立
type Orchestrator struct {
	config     models.ScrapeConfig
	fetcher    crawlers.Fetcher
	parser     *parser.ProductParser
	reconciler *Reconciler
	sink       Sink

	// 为nil时不显示进度
	progress *progressbar.ProgressBar
	showBar  bool
}

// NewOrchestrator 创建协调器
func NewOrchestrator(config models.ScrapeConfig, fetcher crawlers.Fetcher, adapters []retailers.Adapter, sink Sink) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, ErrNoRetailers
	}
	if err := config.Validate(); err != nil {
		return nil, &models.ConfigError{FilePath: "scrape", Cause: err}
	}

	return &Orchestrator{
		config:     config,
		fetcher:    fetcher,
		parser:     parser.NewProductParser(config.PlatformFieldPrefix),
		reconciler: NewReconciler(adapters, config.PlatformHint, config.AdapterTimeout()),
		sink:       sink,
	}, nil
}

// ShowProgress 是否显示进度条
func (o *Orchestrator) ShowProgress(show bool) {
	o.showBar = show
}

// Run 处理所有链接并返回运行汇总
// 只有链接来源失败(如目录不可达)会返回错误,单个链接失败只记录在汇总中
func (o *Orchestrator) Run(ctx context.Context, source LinkSource) (*models.RunSummary, error) {
	startTime := time.Now()

	links, err := source.Links(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取商品链接失败: %w", err)
	}

	utils.Infof("🚀 开始处理 %d 个商品链接 (并发: %d)", len(links), o.config.PerWorkerConcurrency)
	if o.showBar && len(links) > 0 {
		o.progress = utils.NewProgressBar(len(links), "抓取商品")
	}

	results := o.process(ctx, links)

	summary := &models.RunSummary{
		StartTime:  startTime,
		TotalLinks: len(links),
		Results:    results,
		Config:     o.config,
	}
	for _, result := range results {
		switch result.Status {
		case models.LinkSucceeded:
			summary.SuccessCount++
		case models.LinkFailed:
			summary.FailCount++
		case models.LinkCancelled:
			summary.Cancelled++
		}
	}
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(startTime).Seconds()

	if o.progress != nil {
		o.progress.Finish()
	}
	utils.Infof("✅ 处理完成: 成功 %d, 失败 %d, 取消 %d, 耗时 %.2f秒",
		summary.SuccessCount, summary.FailCount, summary.Cancelled, summary.Duration)

	return summary, nil
}

// process 最多同时处理 PerWorkerConcurrency 个链接
// 结果按链接原始顺序返回
func (o *Orchestrator) process(ctx context.Context, links []string) []models.LinkResult {
	results := make([]models.LinkResult, len(links))

	// 单个链接失败不影响其他链接,不使用 errgroup.WithContext
	var g errgroup.Group
	g.SetLimit(o.config.PerWorkerConcurrency)

	next := 0
	for ; next < len(links); next++ {
		// 达到上限时 Go 会阻塞,每次分发前检查取消
		if ctx.Err() != nil {
			break
		}
		i := next
		g.Go(func() error {
			results[i] = o.processLink(ctx, links[i])
			if o.progress != nil {
				o.progress.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	// 未分发的链接记为取消
	for i := next; i < len(links); i++ {
		results[i] = models.LinkResult{URL: links[i], Status: models.LinkCancelled, Error: ctx.Err().Error()}
	}
	return results
}

// processLink 处理单个链接
// 商品记录只在本函数内构建,完成后才交给输出
func (o *Orchestrator) processLink(ctx context.Context, link string) (result models.LinkResult) {
	start := time.Now()
	result = models.LinkResult{URL: link}
	defer func() {
		result.Duration = time.Since(start).Seconds()
	}()

	if err := ctx.Err(); err != nil {
		result.Status = models.LinkCancelled
		result.Error = err.Error()
		return result
	}

	doc, err := crawlers.FetchDocument(ctx, o.fetcher, link)
	if err != nil {
		return o.fail(ctx, result, "获取商品页失败", err)
	}

	product, err := o.parser.Parse(link, doc)
	if err != nil {
		return o.fail(ctx, result, "解析商品页失败", err)
	}
	result.ProductID = product.ID
	result.Title = product.Title.String()

	o.reconciler.Reconcile(ctx, product)

	// 取消时放弃未完成的记录
	if err := ctx.Err(); err != nil {
		result.Status = models.LinkCancelled
		result.Error = err.Error()
		return result
	}

	if err := o.sink.Emit(product); err != nil {
		return o.fail(ctx, result, "输出商品记录失败", err)
	}

	result.Status = models.LinkSucceeded
	result.Unavailable = unavailable(product)

	log.Info().
		Str("url", link).
		Str("title", result.Title).
		Int("unavailable", len(result.Unavailable)).
		Msg("商品处理完成")
	return result
}

// fail 记录失败,取消导致的失败记为取消
func (o *Orchestrator) fail(ctx context.Context, result models.LinkResult, msg string, err error) models.LinkResult {
	result.Error = err.Error()
	if ctx.Err() != nil {
		result.Status = models.LinkCancelled
		return result
	}

	result.Status = models.LinkFailed
	log.Warn().Str("url", result.URL).Err(err).Msg(msg)
	return result
}

// unavailable 汇总未取得报价的零售商
func unavailable(product *models.Product) map[string]string {
	var missing map[string]string
	for id, slot := range product.Quotes {
		if slot.OK() {
			continue
		}
		if missing == nil {
			missing = make(map[string]string)
		}
		reason := "no quotes"
		if slot.Absence != nil {
			reason = slot.Absence.Error()
		}
		missing[id] = reason
	}
	return missing
}
