// Package crawlers 提供文档获取协作者
//
// # 核心组件
//
// ## StaticFetcher
//
// 基于Colly的静态HTTP获取器。每次请求克隆基础collector,回调只作用于本次请求,
// 非2xx响应同样返回 Response,由调用方决定如何处理状态码。
//
//	fetcher := NewStaticFetcher(30*time.Second, 8, headerProvider)
//	resp, err := fetcher.Fetch(ctx, "https://example.com", nil)
//
// ## RodRenderer
//
// 基于go-rod的渲染获取器,用于结果数据由脚本渲染的页面。等待指定选择器出现
// (受ctx超时约束,不使用固定sleep),然后读取结构化数据节点的内容。
//
//	renderer := NewRodRenderer(RodRendererConfig{Headless: true, Sessions: 2})
//	defer renderer.Close()
//	payload, err := renderer.Render(ctx, RenderRequest{URL: u, WaitSelector: ".result", PayloadSelector: "script"})
//
// ## PagePool (会话池)
//
// 限制同时存在的浏览器标签页数量。每次查询获取一个新标签页,
// 无论成功失败都在 Release 中关闭,不跨调用复用。
//
// ## ResourceMonitor (资源监控器)
//
// 根据系统可用内存计算会话上限,避免在内存紧张的机器上打开过多标签页。
//
// ## CatalogLinkSource
//
// 抓取目录分页,收集商品链接并解析为绝对URL。
package crawlers
