package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/schollz/progressbar/v3"
)

// RunReportFile 运行报告文件名
const RunReportFile = "run_report.json"

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// GenerateReport 写入运行报告,返回报告路径
func (r *Reporter) GenerateReport(summary *models.RunSummary) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := summary.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	path := filepath.Join(r.outputDir, RunReportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Infof("✅ 报告已生成: %s", path)
	Infof("成功: %d, 失败: %d, 取消: %d, 耗时: %.2f秒",
		summary.SuccessCount, summary.FailCount, summary.Cancelled, summary.Duration)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
