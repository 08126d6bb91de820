// 版权所有 2026 mcp-generator Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handlers 实现生成器服务的 HTTP API：

  - POST /api/v1/generate  将 OpenAPI 文档编译为 MCP 服务器项目
  - POST /api/v1/test      对运行中的生成服务器执行一轮测试
  - GET  /health /healthz /ready /version  健康与版本端点

所有响应都使用统一的 Response 包装结构。
*/
package handlers
