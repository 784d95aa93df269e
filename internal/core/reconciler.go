package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/retailers"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Reconciler 比价协调器
// 对一个商品并发查询所有启用的零售商,每个查询单独限时
type Reconciler struct {
	adapters []retailers.Adapter
	platform string
	timeout  time.Duration
}

// NewReconciler 创建比价协调器
func NewReconciler(adapters []retailers.Adapter, platform string, timeout time.Duration) *Reconciler {
	return &Reconciler{
		adapters: adapters,
		platform: platform,
		timeout:  timeout,
	}
}

// Reconcile 查询报价并写入 product.Quotes
// 标题缺失时不发起任何查询,每个零售商记为 skipped
// 单个零售商失败只影响自己的结果
func (r *Reconciler) Reconcile(ctx context.Context, product *models.Product) *models.Product {
	if product.Quotes == nil {
		product.Quotes = make(map[string]models.QuoteSlot)
	}

	if !product.Matchable() {
		for _, adapter := range r.adapters {
			product.Quotes[adapter.ID()] = models.Missing(adapter.ID(), models.AbsenceSkipped, product.Title.String())
		}
		log.Debug().Str("url", product.SourceURL).Msg("标题缺失,跳过比价")
		return product
	}

	title := product.Title.Value
	var mu sync.Mutex
	var g errgroup.Group

	for _, adapter := range r.adapters {
		adapter := adapter
		g.Go(func() error {
			slot := r.lookup(ctx, adapter, title)

			mu.Lock()
			defer mu.Unlock()
			if existing, ok := product.Quotes[slot.Retailer]; ok && (existing.OK() || !slot.OK()) {
				// 每个零售商第一次成功的结果生效
				return nil
			}
			product.Quotes[slot.Retailer] = slot
			return nil
		})
	}
	g.Wait()

	return product
}

// lookup 带超时执行单个零售商查询
// 适配器未按时返回时直接记为超时,不等待其结束
func (r *Reconciler) lookup(ctx context.Context, adapter retailers.Adapter, title string) models.QuoteSlot {
	id := adapter.ID()
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan models.QuoteSlot, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- models.Missing(id, models.AbsenceTransport, fmt.Sprintf("panic: %v", rec))
			}
		}()
		done <- adapter.Lookup(lookupCtx, title, r.platform)
	}()

	var slot models.QuoteSlot
	select {
	case slot = <-done:
	case <-lookupCtx.Done():
		slot = models.Missing(id, models.AbsenceTimeout, lookupCtx.Err().Error())
	}
	slot.Retailer = id

	event := log.Debug().
		Str("retailer", id).
		Str("title", title).
		Dur("elapsed", time.Since(start))
	if slot.Absence != nil {
		event.Str("reason", slot.Absence.Error()).Msg("未取得报价")
	} else {
		event.Int("quotes", len(slot.Quotes)).Msg("取得报价")
	}
	return slot
}
