package config

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/spf13/viper"
)

// MaxConfigFileSize 头部文件最大大小 (1MB)
const MaxConfigFileSize = 1 * 1024 * 1024

// HeaderConfigLoader 头部文件加载器
// 文件格式与主配置的 headers 段相同:
//
//	headers:
//	  Accept-Language: en-AU
type HeaderConfigLoader struct {
	configPath string
}

// NewHeaderConfigLoader 创建头部文件加载器
func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	return &HeaderConfigLoader{configPath: configPath}
}

// ValidateFileSize 验证文件存在且大小在限制内
func (hcl *HeaderConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(hcl.configPath)
	if err != nil {
		return &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: hcl.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

// LoadConfig 加载头部文件
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := hcl.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 文件被其他进程锁定时降级为空配置
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认配置", hcl.configPath)
			return &models.HeaderConfig{Headers: make(map[string]string)}, nil
		}
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	var config models.HeaderConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	return &config, nil
}
