package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
)

// JSON 以 JSON 文本落库的键值字段（审计详情、outbox 载荷）
type JSON map[string]interface{}

// Value 空值写入 NULL
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	body, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(body), nil
}

// Scan 兼容驱动返回 []byte 或 string；NULL 读出为空 map
func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = JSON{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.JSON: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*j = JSON{}
		return nil
	}
	decoded := JSON{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("models.JSON: %w", err)
	}
	*j = decoded
	return nil
}

// Merge 返回副本，extra 中的键覆盖原值
func (j JSON) Merge(extra JSON) JSON {
	merged := make(JSON, len(j)+len(extra))
	maps.Copy(merged, j)
	maps.Copy(merged, extra)
	return merged
}
