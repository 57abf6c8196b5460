// Package api 暴露证明服务的 REST 接口：执行证明流水线、提交证明任务、查询任务状态与统计。
package api
