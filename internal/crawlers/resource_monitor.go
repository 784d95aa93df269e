package crawlers

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/RecoveryAshes/PSPriceScout/internal/utils"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 根据可用内存计算浏览器会话上限
type ResourceMonitor struct {
	// 配置参数
	config ResourceMonitorConfig

	// 可用内存探测函数(测试时可替换)
	availableMemory func() (uint64, error)

	// 缓存的计算结果
	cachedMax     int
	lastCacheTime time.Time
	cacheMu       sync.Mutex
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SessionMemoryUsage  int64 // 单个浏览器会话平均内存消耗(字节)
	MaxSessionsLimit    int   // 绝对最大会话数
}

// DefaultResourceMonitorConfig 默认资源配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024, // 1GB
		SessionMemoryUsage:  150 * 1024 * 1024,  // 150MB
		MaxSessionsLimit:    16,
	}
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.SessionMemoryUsage <= 0 {
		config.SessionMemoryUsage = 150 * 1024 * 1024
	}
	if config.MaxSessionsLimit <= 0 {
		config.MaxSessionsLimit = 16
	}

	return &ResourceMonitor{
		config:          config,
		availableMemory: systemAvailableMemory,
	}
}

// systemAvailableMemory 使用gopsutil获取真实系统可用内存
func systemAvailableMemory() (uint64, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("获取系统内存失败: %w", err)
	}
	return vmStat.Available, nil
}

// MaxSessions 计算允许的最大浏览器会话数
// 结果不超过 requested,且至少为1;每秒最多重新计算一次
func (rm *ResourceMonitor) MaxSessions(requested int) int {
	if requested < 1 {
		requested = 1
	}

	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()

	if rm.cachedMax == 0 || time.Since(rm.lastCacheTime) >= time.Second {
		rm.cachedMax = rm.calculate()
		rm.lastCacheTime = time.Now()
	}

	if rm.cachedMax < requested {
		utils.Debugf("会话数受资源限制: 请求 %d, 允许 %d", requested, rm.cachedMax)
		return rm.cachedMax
	}
	return requested
}

// calculate 基于内存和CPU计算上限
func (rm *ResourceMonitor) calculate() int {
	maxByMemory := rm.config.MaxSessionsLimit

	available, err := rm.availableMemory()
	if err != nil {
		utils.Warnf("%v, 不按内存限制会话数", err)
	} else {
		surplus := int64(available) - rm.config.SafetyReserveMemory
		maxByMemory = int(surplus / rm.config.SessionMemoryUsage)
		utils.Debugf("可用内存: %.2f GB", float64(available)/(1024*1024*1024))
	}

	result := maxByMemory
	if cpus := runtime.NumCPU(); cpus < result {
		result = cpus
	}
	if rm.config.MaxSessionsLimit < result {
		result = rm.config.MaxSessionsLimit
	}

	// 确保至少1个会话
	if result < 1 {
		result = 1
	}
	return result
}
