package correlator

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action 原始记录中的系统调用动作
type Action string

const (
	ActionOpen    Action = "open"
	ActionClose   Action = "close"
	ActionUnlink  Action = "unlink"
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionListDir Action = "listdir"
)

// ErrMalformedRecord 行不是合法的 JSON 对象
var ErrMalformedRecord = errors.New("malformed record")

// RawRecord tracing agent 输出的一行记录
// 可选字段用指针表示，区分缺失和零值。
type RawRecord struct {
	Action Action  `json:"action"`
	PID    int     `json:"pid"`
	FD     *int    `json:"fd,omitempty"`
	Path   *string `json:"path,omitempty"`
	Size   *int64  `json:"size,omitempty"`
	T      float64 `json:"t"`
}

// DecodeRecord 解析一行 JSON 记录
func DecodeRecord(line []byte) (RawRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return RawRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, nil
}

func (r RawRecord) path() string {
	if r.Path == nil {
		return ""
	}
	return *r.Path
}

func (r RawRecord) size() int64 {
	if r.Size == nil {
		return 0
	}
	return *r.Size
}
