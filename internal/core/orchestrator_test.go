package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/retailers"
)

// fakeFetcher 按URL返回预设页面
type fakeFetcher struct {
	pages map[string]string
	codes map[string]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, _ http.Header) (*crawlers.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code, ok := f.codes[rawURL]; ok {
		return &crawlers.Response{URL: rawURL, StatusCode: code}, nil
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &crawlers.Response{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

// countingFetcher 记录同时进行的请求数峰值
type countingFetcher struct {
	fakeFetcher
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, rawURL string, headers http.Header) (*crawlers.Response, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return f.fakeFetcher.Fetch(ctx, rawURL, headers)
}

// failingSource 链接来源不可用
type failingSource struct{}

func (failingSource) Links(context.Context) ([]string, error) {
	return nil, crawlers.ErrCatalogUnreachable
}

func testConfig() models.ScrapeConfig {
	return models.ScrapeConfig{
		CatalogPageCount:     1,
		PerWorkerConcurrency: 2,
		PerAdapterTimeoutMs:  500,
		RequestTimeoutMs:     1000,
		PlatformHint:         "PlayStation 4",
		PlatformFieldPrefix:  "ps4",
	}
}

func loadProductPage(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../parser/testdata/product.html")
	if err != nil {
		t.Fatalf("读取测试页面失败: %v", err)
	}
	return string(data)
}

func TestNewOrchestrator(t *testing.T) {
	t.Run("没有零售商", func(t *testing.T) {
		_, err := NewOrchestrator(testConfig(), &fakeFetcher{}, nil, NewJSONLinesSink(&bytes.Buffer{}))
		if !errors.Is(err, ErrNoRetailers) {
			t.Errorf("期望 ErrNoRetailers, 实际 %v", err)
		}
	})

	t.Run("配置无效", func(t *testing.T) {
		config := testConfig()
		config.PerWorkerConcurrency = 0
		_, err := NewOrchestrator(config, &fakeFetcher{}, []retailers.Adapter{quoting("a", "1.00")}, NewJSONLinesSink(&bytes.Buffer{}))
		var configErr *models.ConfigError
		if !errors.As(err, &configErr) {
			t.Errorf("期望 ConfigError, 实际 %v", err)
		}
	})
}

func TestOrchestrator_Run(t *testing.T) {
	page := loadProductPage(t)
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://store.example.com/p/1": page,
			"https://store.example.com/p/2": page,
			"https://store.example.com/p/4": "<html><body></body></html>",
		},
		codes: map[string]int{
			"https://store.example.com/p/3": http.StatusNotFound,
		},
	}
	missing := &fakeAdapter{
		id: "missing",
		lookup: func(context.Context, string, string) models.QuoteSlot {
			return models.Missing("missing", models.AbsenceNoMatch, "")
		},
	}

	var out bytes.Buffer
	sink := NewJSONLinesSink(&out)
	o, err := NewOrchestrator(testConfig(), fetcher, []retailers.Adapter{quoting("shop", "49.95"), missing}, sink)
	if err != nil {
		t.Fatalf("创建协调器失败: %v", err)
	}

	links := StaticLinks{
		"https://store.example.com/p/1",
		"https://store.example.com/p/2",
		"https://store.example.com/p/3",
		"https://store.example.com/p/4",
		"https://store.example.com/p/5",
	}
	summary, err := o.Run(context.Background(), links)
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	if summary.TotalLinks != 5 || summary.SuccessCount != 2 || summary.FailCount != 3 {
		t.Errorf("统计错误: total=%d success=%d fail=%d", summary.TotalLinks, summary.SuccessCount, summary.FailCount)
	}
	if sink.Count() != 2 {
		t.Errorf("期望输出2条记录, 实际 %d", sink.Count())
	}

	// 结果保持链接顺序
	for i, result := range summary.Results {
		if result.URL != links[i] {
			t.Errorf("结果[%d] URL = %s, 期望 %s", i, result.URL, links[i])
		}
	}

	first := summary.Results[0]
	if first.Status != models.LinkSucceeded || first.Title != "Game Title" {
		t.Errorf("第一个链接期望成功, 实际 %+v", first)
	}
	if _, ok := first.Unavailable["missing"]; !ok || len(first.Unavailable) != 1 {
		t.Errorf("期望只有 missing 缺少报价, 实际 %v", first.Unavailable)
	}
	if !strings.Contains(summary.Results[2].Error, "404") {
		t.Errorf("期望404错误, 实际 %q", summary.Results[2].Error)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("期望2行JSON, 实际 %d", len(lines))
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("记录不是有效JSON: %v", err)
	}
	if record["title"] != "Game Title" {
		t.Errorf("记录标题 = %v", record["title"])
	}
	quotes, _ := record["quotes"].(map[string]any)
	if len(quotes) != 2 {
		t.Errorf("期望2个零售商结果, 实际 %v", record["quotes"])
	}
}

func TestOrchestrator_SourceFailure(t *testing.T) {
	o, err := NewOrchestrator(testConfig(), &fakeFetcher{}, []retailers.Adapter{quoting("a", "1.00")}, NewJSONLinesSink(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("创建协调器失败: %v", err)
	}

	_, err = o.Run(context.Background(), failingSource{})
	if !errors.Is(err, crawlers.ErrCatalogUnreachable) {
		t.Errorf("期望 ErrCatalogUnreachable, 实际 %v", err)
	}
}

func TestOrchestrator_EmptyLinks(t *testing.T) {
	o, err := NewOrchestrator(testConfig(), &fakeFetcher{}, []retailers.Adapter{quoting("a", "1.00")}, NewJSONLinesSink(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("创建协调器失败: %v", err)
	}

	summary, err := o.Run(context.Background(), StaticLinks{})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if summary.TotalLinks != 0 || len(summary.Results) != 0 {
		t.Errorf("期望空汇总, 实际 %+v", summary)
	}
}

func TestOrchestrator_Cancelled(t *testing.T) {
	page := loadProductPage(t)
	links := make(StaticLinks, 0, 10)
	pages := make(map[string]string)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		link := "https://store.example.com/p/" + id
		links = append(links, link)
		pages[link] = page
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 第一次查询时取消整个运行
	var once sync.Once
	canceller := &fakeAdapter{
		id: "shop",
		lookup: func(lookupCtx context.Context, title, platform string) models.QuoteSlot {
			once.Do(cancel)
			<-lookupCtx.Done()
			return models.Missing("shop", models.AbsenceTimeout, "")
		},
	}

	config := testConfig()
	config.PerWorkerConcurrency = 1
	var out bytes.Buffer
	sink := NewJSONLinesSink(&out)
	o, err := NewOrchestrator(config, &fakeFetcher{pages: pages}, []retailers.Adapter{canceller}, sink)
	if err != nil {
		t.Fatalf("创建协调器失败: %v", err)
	}

	done := make(chan *models.RunSummary, 1)
	go func() {
		summary, _ := o.Run(ctx, links)
		done <- summary
	}()

	var summary *models.RunSummary
	select {
	case summary = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("取消后运行未及时结束")
	}

	if summary.Cancelled != len(links) {
		t.Errorf("期望全部 %d 个链接取消, 实际 %d (成功 %d, 失败 %d)",
			len(links), summary.Cancelled, summary.SuccessCount, summary.FailCount)
	}
	if sink.Count() != 0 {
		t.Errorf("取消后不应输出未完成的记录, 实际 %d", sink.Count())
	}
}

func TestOrchestrator_ConcurrencyLimit(t *testing.T) {
	page := loadProductPage(t)
	fetcher := &countingFetcher{fakeFetcher: fakeFetcher{pages: make(map[string]string)}}
	links := make(StaticLinks, 0, 8)
	for i := 0; i < 8; i++ {
		link := "https://store.example.com/p/" + strconv.Itoa(i)
		links = append(links, link)
		fetcher.pages[link] = page
	}

	config := testConfig()
	config.PerWorkerConcurrency = 3
	o, err := NewOrchestrator(config, fetcher, []retailers.Adapter{quoting("shop", "49.95")}, NewJSONLinesSink(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("创建协调器失败: %v", err)
	}

	summary, err := o.Run(context.Background(), links)
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if summary.SuccessCount != len(links) {
		t.Errorf("期望全部成功, 实际 成功 %d 失败 %d", summary.SuccessCount, summary.FailCount)
	}
	for i, result := range summary.Results {
		if result.URL != links[i] {
			t.Errorf("结果[%d] URL = %s, 期望 %s", i, result.URL, links[i])
		}
	}
	if peak := fetcher.peak.Load(); peak > 3 || peak < 2 {
		t.Errorf("同时进行的请求峰值 = %d, 期望 2~3", peak)
	}
}
