package entity

import (
	"fmt"
	"strconv"
	"strings"

	domainErrors "codeinject-go-server/domain/errors"
)

// Location 注入位置
type Location string

const (
	LocationHead Location = "head"
	LocationBody Location = "body"
)

// Locations 按固定顺序列出所有注入位置
var Locations = []Location{LocationHead, LocationBody}

func ParseLocation(s string) (Location, error) {
	switch Location(strings.ToLower(strings.TrimSpace(s))) {
	case LocationHead:
		return LocationHead, nil
	case LocationBody:
		return LocationBody, nil
	}
	return "", fmt.Errorf("%w: %q", domainErrors.ErrInvalidLocation, s)
}

// TargetKind 注入目标类型：页面或整个站点
type TargetKind string

const (
	TargetPage TargetKind = "page"
	TargetSite TargetKind = "site"
)

// ParseTargetKind 空字符串按页面处理（旧版 loader 不带 type）
func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", TargetPage:
		return TargetPage, nil
	case TargetSite:
		return TargetSite, nil
	}
	return "", fmt.Errorf("%w: %q", domainErrors.ErrInvalidTargetKind, s)
}

// Target 一个 (类型, ID, 位置) 三元组，同时也是 bundle 缓存的键
type Target struct {
	Kind     TargetKind `json:"type"`
	ID       string     `json:"id"`
	Location Location   `json:"location"`
}

// Canonical 页面 ID 统一成十进制无前导零的形式，"01" 与 "1" 共用一个缓存键
// 非数字或 0 的页面 ID 不可能对应本地页面，返回 ErrTargetNotFound
func (t Target) Canonical() (Target, error) {
	t.ID = strings.TrimSpace(t.ID)
	if t.Kind != TargetPage {
		return t, nil
	}
	id, err := strconv.ParseUint(t.ID, 10, 64)
	if err != nil || id == 0 {
		return t, fmt.Errorf("%w: page %q", domainErrors.ErrTargetNotFound, t.ID)
	}
	t.ID = strconv.FormatUint(id, 10)
	return t, nil
}

// Key 缓存键包含类型，避免页面 ID 与站点 ID 撞车
func (t Target) Key() string {
	return "bundle:" + string(t.Kind) + ":" + t.ID + ":" + string(t.Location)
}

// RoomKey 不区分位置，用于失效事件推送
func (t Target) RoomKey() string {
	return string(t.Kind) + ":" + t.ID
}

// Bundle Delivery Endpoint 返回给 loader 的代码包
type Bundle struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

func (b Bundle) IsEmpty() bool {
	return b.HTML == "" && b.CSS == "" && b.JS == ""
}
