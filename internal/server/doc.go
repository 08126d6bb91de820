// 版权所有 2026 mcp-generator Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。生成器的 API 服务与 Metrics 服务
都通过 Manager 运行。
*/
package server
