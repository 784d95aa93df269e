package models

import (
	"encoding/json"
	"time"
)

// LinkStatus 单个商品链接的处理结果
type LinkStatus string

const (
	LinkSucceeded LinkStatus = "succeeded"
	LinkFailed    LinkStatus = "failed"
	LinkCancelled LinkStatus = "cancelled"
)

// LinkResult 单个商品链接的处理记录
type LinkResult struct {
	URL       string     `json:"url"`
	ProductID string     `json:"product_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Status    LinkStatus `json:"status"`
	Error     string     `json:"error,omitempty"`

	// Unavailable 未取得报价的零售商 -> 原因
	Unavailable map[string]string `json:"unavailable,omitempty"`
	Duration    float64           `json:"duration"` // 秒
}

// RunSummary 一次运行的汇总
type RunSummary struct {
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`
	Duration     float64      `json:"duration"` // 秒
	TotalLinks   int          `json:"total_links"`
	SuccessCount int          `json:"success_count"`
	FailCount    int          `json:"fail_count"`
	Cancelled    int          `json:"cancelled"`
	Results      []LinkResult `json:"results"`
	Config       ScrapeConfig `json:"config"`
}

// ToJSON 序列化为JSON
func (r *RunSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
