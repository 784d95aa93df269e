package core

import (
	"net/http"

	"github.com/RecoveryAshes/PSPriceScout/internal/config"
	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// HeaderManager 管理HTTP请求头部
// 优先级: 默认 < 配置文件 < 头部文件 < 命令行
// 实现 HeaderProvider 接口
type HeaderManager struct {
	merged http.Header
}

// NewHeaderManager 合并并验证所有来源的头部
// 参数:
//   - configHeaders: 主配置文件 headers 段
//   - headerFile: 独立头部文件路径 (可为空)
//   - cliHeaders: 命令行传递的 "Name: Value" 列表
func NewHeaderManager(configHeaders map[string]string, headerFile string, cliHeaders []string) (*HeaderManager, error) {
	layers := []http.Header{getDefaultHeaders(), fromMap(configHeaders)}

	if headerFile != "" {
		fileConfig, err := config.NewHeaderConfigLoader(headerFile).LoadConfig()
		if err != nil {
			utils.Errorf("加载HTTP头部配置失败: %v", err)
			return nil, err
		}
		layers = append(layers, fromMap(fileConfig.Headers))
	}

	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	layers = append(layers, cli)

	validator := utils.NewHeaderValidator()
	merged := make(http.Header)
	for _, layer := range layers {
		if err := validator.Validate(layer); err != nil {
			utils.Errorf("头部验证失败: %v", err)
			return nil, err
		}
		for name, values := range layer {
			merged[name] = values
		}
	}

	hm := &HeaderManager{merged: merged}
	utils.Debugf("HTTP头部: %v", hm.GetSafeHeaders())
	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,*/*;q=0.8"},
		"Accept-Language": []string{"en-AU,en;q=0.9"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// fromMap 转换为规范化名称的http.Header
func fromMap(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for name, value := range m {
		h.Set(name, value)
	}
	return h
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return utils.RedactHeaders(hm.merged)
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	return hm.merged.Clone(), nil
}
