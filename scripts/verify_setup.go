package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/RecoveryAshes/PSPriceScout/internal/crawlers"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  PSPriceScout 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)
	if !strings.HasPrefix(goVersion, "go1.23") && !strings.HasPrefix(goVersion, "go1.24") {
		fmt.Println("⚠️  警告: 建议使用Go 1.23+版本")
	}

	// 检查操作系统
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// EB Games 查询需要浏览器
	if path, has := launcher.LookPath(); has {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chrome/Chromium - 首次渲染时将自动下载")
		fmt.Println("   或使用 --retailers bigw,jbhifi 跳过EB Games")
	}

	// 检查内存与建议的会话数
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("✅ 可用内存: %.2f GB\n", float64(vm.Available)/(1024*1024*1024))
		monitor := crawlers.NewResourceMonitor(crawlers.DefaultResourceMonitorConfig())
		fmt.Printf("✅ 建议浏览器会话数: %d\n", monitor.MaxSessions(crawlers.DefaultResourceMonitorConfig().MaxSessionsLimit))
	} else {
		fmt.Printf("❌ 无法读取内存信息: %v\n", err)
		allOK = false
	}

	// 检查项目依赖
	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		fmt.Println("正在下载依赖...")
		if err := exec.Command("go", "mod", "download").Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/psprice",
		"internal/core",
		"internal/crawlers",
		"internal/extract",
		"internal/parser",
		"internal/retailers",
		"internal/utils",
		"internal/models",
		"configs",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/psprice' 构建项目")
		fmt.Println("  2. 运行 './psprice --validate-config' 检查配置")
		fmt.Println("  3. 运行 './psprice --pages 1' 抓取目录第一页")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
