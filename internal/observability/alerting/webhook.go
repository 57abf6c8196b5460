package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ZKAttest-Chain/pkg/logger"
)

// WebhookNotifier 通过 HTTP 回调发送告警，Format 决定消息体格式。
type WebhookNotifier struct {
	URL    string
	Format Channel
	Client *http.Client
}

// NewWebhookNotifier 创建回调通知器，format 支持 webhook、slack 与 dingtalk。
func NewWebhookNotifier(url string, format Channel) *WebhookNotifier {
	switch format {
	case ChannelSlack, ChannelDingTalk:
	default:
		format = ChannelWebhook
	}
	return &WebhookNotifier{URL: strings.TrimSpace(url), Format: format, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Channel 返回通知器的渠道。
func (n *WebhookNotifier) Channel() Channel {
	if n == nil || n.Format == "" {
		return ChannelWebhook
	}
	return n.Format
}

// Notify 发送回调。
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.L().Warn("WebhookNotifier 未正确配置，跳过发送", slog.String("job_id", event.JobID))
		return nil
	}

	payload, err := json.Marshal(n.payload(event))
	if err != nil {
		return fmt.Errorf("序列化告警失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建告警请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送告警失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("告警回调返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (n *WebhookNotifier) payload(event Event) any {
	switch n.Channel() {
	case ChannelSlack:
		return map[string]any{"text": "*" + event.Summary() + "*"}
	case ChannelDingTalk:
		return map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": event.Summary()},
		}
	default:
		return event
	}
}
