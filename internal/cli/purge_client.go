package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codeinject-go-server/domain/entity"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

// ErrNotCached 服务端没有该键（404），不算失败
var ErrNotCached = errors.New("no cache entry")

// PurgeClient 调用运行中服务的 POST /cache/purge
// 同时实现 usecase.CacheInvalidator，离线同步删除页面后顺带清理服务端缓存
type PurgeClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPurgeClient(baseURL, secret string, logger *zap.Logger) *PurgeClient {
	return &PurgeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type purgeBody struct {
	TargetID string `json:"targetId"`
	Location string `json:"location"`
	Type     string `json:"type"`
}

type purgeReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Purge 网络错误与 5xx 重试，4xx 直接返回
func (p *PurgeClient) Purge(ctx context.Context, target entity.Target) (string, error) {
	payload, err := json.Marshal(purgeBody{
		TargetID: target.ID,
		Location: string(target.Location),
		Type:     string(target.Kind),
	})
	if err != nil {
		return "", err
	}

	var reply purgeReply
	err = retry.Do(
		func() error {
			status, r, postErr := p.post(ctx, payload)
			if postErr != nil {
				return postErr
			}
			reply = r
			switch {
			case status == http.StatusOK:
				return nil
			case status == http.StatusNotFound:
				return retry.Unrecoverable(ErrNotCached)
			case status >= http.StatusInternalServerError:
				return fmt.Errorf("server returned %d", status)
			default:
				return retry.Unrecoverable(fmt.Errorf("server returned %d: %s", status, reply.Message))
			}
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", err
	}
	return reply.Message, nil
}

func (p *PurgeClient) post(ctx context.Context, payload []byte) (int, purgeReply, error) {
	var reply purgeReply
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/cache/purge", bytes.NewReader(payload))
	if err != nil {
		return 0, reply, retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Purge-Secret", p.secret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, reply, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, &reply)
	return resp.StatusCode, reply, nil
}

// InvalidateTarget 两个位置都清理，失败只记日志
func (p *PurgeClient) InvalidateTarget(ctx context.Context, kind entity.TargetKind, id string) {
	for _, loc := range entity.Locations {
		target := entity.Target{Kind: kind, ID: id, Location: loc}
		if _, err := p.Purge(ctx, target); err != nil && !errors.Is(err, ErrNotCached) {
			p.logger.Warn("[Purge] remote purge failed", zap.String("key", target.Key()), zap.Error(err))
		}
	}
}
