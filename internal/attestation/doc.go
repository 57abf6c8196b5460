// Package attestation 将抵押头寸、UTXO 集合、跨链交易与账户余额等原始输入
// 转换为确定性、可校验、规范编码的证明记录，供外部可验证计算引擎提交与证明。
//
// 包内所有操作均为纯函数，不持有共享状态，也不会阻塞；拉取价格、调用证明
// 引擎等阻塞工作由调用方在核心之外完成。
package attestation
