// Package decision 处理可疑进程的放行/阻断裁决
package decision

import (
	"context"
	"strings"

	"github.com/FloatingGuy/ransomcare/internal/event"
)

// Verdict 裁决结果
type Verdict int

const (
	// VerdictDeny 阻断（默认）
	VerdictDeny Verdict = iota
	// VerdictAllow 放行
	VerdictAllow
)

// String 返回裁决名称
func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// ParseAnswer 解析操作员输入
// 提示语是 "Block it? (Y/n)"：包含 n（不区分大小写）表示不阻断，其余（包括空输入）都阻断。
func ParseAnswer(answer string) Verdict {
	if strings.Contains(strings.ToLower(answer), "n") {
		return VerdictAllow
	}
	return VerdictDeny
}

// ParseVerdict 解析配置中的裁决名称
func ParseVerdict(s string) (Verdict, bool) {
	switch strings.ToLower(s) {
	case "allow":
		return VerdictAllow, true
	case "deny":
		return VerdictDeny, true
	default:
		return VerdictDeny, false
	}
}

// Request 一次裁决请求
type Request struct {
	ID      string
	Process event.Process
	Path    string
}

// Provider 裁决能力接口
// 实现可以阻塞（例如等待操作员输入），调用方负责把它放在独立的 goroutine 上。
type Provider interface {
	Decide(ctx context.Context, req Request) (Verdict, error)
}

// Auto 固定裁决，用于非交互模式
type Auto struct {
	Verdict Verdict
}

// Decide 实现 Provider
func (a Auto) Decide(ctx context.Context, _ Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return VerdictDeny, err
	}
	return a.Verdict, nil
}
