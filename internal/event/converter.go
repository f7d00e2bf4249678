package event

import (
	"math"
	"time"
)

// 文件事件到 ECS event.action / event.type 的映射
var fileActions = map[Type]struct {
	action  string
	ecsType string
}{
	TypeFileOpen:   {"open", "access"},
	TypeListDir:    {"listdir", "access"},
	TypeFileRead:   {"read", "access"},
	TypeFileWrite:  {"write", "change"},
	TypeFileClose:  {"close", "access"},
	TypeFileUnlink: {"unlink", "deletion"},
}

// TimeOf 将 agent 上报的浮点秒时间戳转换为 time.Time
func TimeOf(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// ToECS 将事件转换为 ECS 格式
// 遵循Elastic Common Schema标准，用于调试日志输出
func ToECS(ev Event) map[string]interface{} {
	if fe, ok := ev.(FileEvent); ok {
		return fileToECS(fe)
	}

	ecs := map[string]interface{}{
		"event": map[string]interface{}{
			"category": []string{"process"},
			"kind":     "alert",
		},
	}
	eventMap := ecs["event"].(map[string]interface{})

	switch e := ev.(type) {
	case AskUserAllowOrDeny:
		eventMap["action"] = "ask"
		ecs["process"] = map[string]interface{}{"pid": e.Process.PID}
		ecs["file"] = map[string]interface{}{"path": e.Path}
	case AllowProcess:
		eventMap["action"] = "allow"
		eventMap["type"] = []string{"allowed"}
		ecs["process"] = map[string]interface{}{"pid": e.Process.PID}
	case DenyProcess:
		eventMap["action"] = "deny"
		eventMap["type"] = []string{"denied"}
		ecs["process"] = map[string]interface{}{"pid": e.Process.PID}
	default:
		eventMap["action"] = string(ev.Type())
	}
	return ecs
}

func fileToECS(ev FileEvent) map[string]interface{} {
	mapping := fileActions[ev.Type()]
	ecs := map[string]interface{}{
		"@timestamp": TimeOf(ev.Time()).Format(time.RFC3339Nano),
		"event": map[string]interface{}{
			"category": []string{"file"},
			"type":     []string{mapping.ecsType},
			"action":   mapping.action,
		},
		"process": map[string]interface{}{
			"pid": ev.ProcessID(),
		},
		"file": map[string]interface{}{
			"path": ev.FilePath(),
		},
	}

	// 读写字节数
	switch e := ev.(type) {
	case FileRead:
		ecs["file"].(map[string]interface{})["bytes"] = e.Size
	case FileWrite:
		ecs["file"].(map[string]interface{})["bytes"] = e.Size
	}

	return ecs
}
