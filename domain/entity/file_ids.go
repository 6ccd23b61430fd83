package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	domainErrors "codeinject-go-server/domain/errors"
)

// FileIDList 有序的文件 ID 列表，顺序即注入顺序
// 历史数据里同一个字段存在多种形态，统一由 NormalizeFileIDs 在存储/JSON 边界处理，
// 业务代码拿到的永远是 []int64
type FileIDList []int64

// NormalizeFileIDs 把各种历史形态归一化为 FileIDList
// 支持：数字数组、[{"id":1}] 对象数组、数字字符串、以及上述内容被再编码一次的 JSON 字符串
func NormalizeFileIDs(raw any) (FileIDList, error) {
	switch v := raw.(type) {
	case nil:
		return FileIDList{}, nil
	case FileIDList:
		return append(FileIDList{}, v...), nil
	case []int64:
		return append(FileIDList{}, v...), nil
	case []int:
		ids := make(FileIDList, 0, len(v))
		for _, id := range v {
			ids = append(ids, int64(id))
		}
		return ids, nil
	case json.RawMessage:
		return normalizeJSON(v)
	case []byte:
		return normalizeJSON(v)
	case string:
		return normalizeJSON([]byte(v))
	case []any:
		ids := make(FileIDList, 0, len(v))
		for i, item := range v {
			id, err := fileIDOf(item)
			if err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", domainErrors.ErrInvalidFileIDs, i, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %T", domainErrors.ErrInvalidFileIDs, raw)
}

func normalizeJSON(data []byte) (FileIDList, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return FileIDList{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidFileIDs, err)
	}

	// 被 JSON.stringify 过两次的旧数据
	if s, ok := decoded.(string); ok {
		return normalizeJSON([]byte(s))
	}
	return NormalizeFileIDs(decoded)
}

func fileIDOf(item any) (int64, error) {
	var id int64
	switch v := item.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		id = n
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("non-integer id %v", v)
		}
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		id = n
	case map[string]any:
		inner, ok := v["id"]
		if !ok {
			return 0, fmt.Errorf("object without id")
		}
		return fileIDOf(inner)
	default:
		return 0, fmt.Errorf("unsupported element type %T", item)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}

// Contains 线性查找，文件列表通常只有几项
func (l FileIDList) Contains(id int64) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Scan 实现 sql.Scanner，数据库读出时归一化
func (l *FileIDList) Scan(src any) error {
	ids, err := NormalizeFileIDs(src)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

// Value 实现 driver.Valuer，统一写回数字数组
func (l FileIDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int64(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l FileIDList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int64(l))
}

// UnmarshalJSON API 入参同样接受所有历史形态
func (l *FileIDList) UnmarshalJSON(data []byte) error {
	ids, err := normalizeJSON(data)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}
