// Package feeds 提供抵押类证明使用的 BTC/USD 价格来源，价格以整数美元单位表示。
package feeds
