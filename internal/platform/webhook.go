package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// 平台 webhook 请求头
const (
	HeaderWebhookTimestamp = "x-webflow-timestamp"
	HeaderWebhookSignature = "x-webflow-signature"
	webhookMaxAge          = 5 * time.Minute
)

var (
	ErrWebhookSignature = errors.New("invalid webhook signature")
	ErrWebhookExpired   = errors.New("webhook timestamp outside tolerance")
)

// WebhookEvent 平台推送的页面/站点事件
type WebhookEvent struct {
	TriggerType string `json:"triggerType"`
	Payload     struct {
		SiteID string `json:"siteId"`
		PageID string `json:"pageId"`
	} `json:"payload"`
}

// SyncTriggers 会导致页面列表变化的事件
var SyncTriggers = map[string]bool{
	"page_created":          true,
	"page_deleted":          true,
	"page_metadata_updated": true,
	"site_publish":          true,
}

// VerifyWebhook 校验 HMAC-SHA256(timestamp + ":" + body)，timestamp 为毫秒
func VerifyWebhook(secret, timestamp, signature string, body []byte, now time.Time) error {
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrWebhookSignature
	}
	sent := time.UnixMilli(ms)
	if now.Sub(sent) > webhookMaxAge || sent.Sub(now) > webhookMaxAge {
		return ErrWebhookExpired
	}

	expected := SignWebhook(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrWebhookSignature
	}
	return nil
}

// SignWebhook 生成签名（测试和本地调试使用）
func SignWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
