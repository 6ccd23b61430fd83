// Package platform 是宿主平台（页面列表 + 自定义代码）的 HTTP 客户端
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://api.webflow.com/v2"
	DefaultTimeout  = 15 * time.Second
	pageListLimit   = 100
	maxResponseSize = 4 << 20
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client 所有调用都经过熔断器；平台的业务错误（4xx）不计入失败
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Platform",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb:         cb,
		logger:     logger.Named("platform"),
	}
}

// ListPages 拉取站点的完整页面列表（分页直到 total）
func (c *Client) ListPages(ctx context.Context, siteID string) ([]RemotePage, error) {
	var pages []RemotePage
	offset := 0
	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(pageListLimit))
		q.Set("offset", fmt.Sprint(offset))

		var resp listPagesResponse
		path := "/sites/" + url.PathEscape(siteID) + "/pages?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("list pages (offset %d): %w", offset, err)
		}

		pages = append(pages, resp.Pages...)
		offset += len(resp.Pages)
		if len(resp.Pages) == 0 || offset >= resp.Pagination.Total {
			break
		}
	}

	c.logger.Debug("listed remote pages", zap.String("site_id", siteID), zap.Int("count", len(pages)))
	return pages, nil
}

// RegisterInlineScript 注册内联脚本；版本冲突时返回的错误满足 errors.Is(err, ErrDuplicateScriptVersion)
func (c *Client) RegisterInlineScript(ctx context.Context, siteID string, req RegisterScriptRequest) (*RegisteredScript, error) {
	var script RegisteredScript
	path := "/sites/" + url.PathEscape(siteID) + "/registered_scripts/inline"
	if err := c.do(ctx, http.MethodPost, path, req, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

func (c *Client) GetPageCustomCode(ctx context.Context, pageID string) ([]ScriptBinding, error) {
	var payload customCodePayload
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID)+"/custom_code", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Scripts, nil
}

func (c *Client) UpsertPageCustomCode(ctx context.Context, pageID string, scripts []ScriptBinding) error {
	return c.do(ctx, http.MethodPut, "/pages/"+url.PathEscape(pageID)+"/custom_code",
		customCodePayload{Scripts: scripts}, nil)
}

func (c *Client) UpsertSiteCustomCode(ctx context.Context, siteID string, scripts []ScriptBinding) error {
	return c.do(ctx, http.MethodPut, "/sites/"+url.PathEscape(siteID)+"/custom_code",
		customCodePayload{Scripts: scripts}, nil)
}

// DeleteSiteCustomCode 清空站点上所有自定义代码绑定
func (c *Client) DeleteSiteCustomCode(ctx context.Context, siteID string) error {
	return c.do(ctx, http.MethodDelete, "/sites/"+url.PathEscape(siteID)+"/custom_code", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &errBody) == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("platform request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code))
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
