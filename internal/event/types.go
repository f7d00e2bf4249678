// Package event 定义关联引擎发布的类型化事件
//
// 所有事件都是值类型，发布后不可修改。文件类事件携带 tracing agent
// 上报的原始时间戳（秒，浮点）。
package event

// Type 事件类型
type Type string

const (
	TypeFileOpen           Type = "file_open"
	TypeListDir            Type = "list_dir"
	TypeFileRead           Type = "file_read"
	TypeFileWrite          Type = "file_write"
	TypeFileClose          Type = "file_close"
	TypeFileUnlink         Type = "file_unlink"
	TypeAskUserAllowOrDeny Type = "ask_user_allow_or_deny"
	TypeAllowProcess       Type = "allow_process"
	TypeDenyProcess        Type = "deny_process"
)

// Event 所有可发布事件的公共接口
type Event interface {
	Type() Type
}

// FileEvent 文件访问类事件
type FileEvent interface {
	Event
	Time() float64
	ProcessID() int
	FilePath() string
}

// Process 进程句柄
type Process struct {
	PID int `json:"pid"`
}

// FileOpen 进程打开了文件
type FileOpen struct {
	Timestamp float64
	PID       int
	Path      string
}

// ListDir 进程列举了目录
type ListDir struct {
	Timestamp float64
	PID       int
	Path      string
}

// FileRead 进程读取了文件
type FileRead struct {
	Timestamp float64
	PID       int
	Path      string
	Size      int64
}

// FileWrite 进程写入了文件
type FileWrite struct {
	Timestamp float64
	PID       int
	Path      string
	Size      int64
}

// FileClose 进程关闭了文件
type FileClose struct {
	Timestamp float64
	PID       int
	Path      string
}

// FileUnlink 进程删除了文件
type FileUnlink struct {
	Timestamp float64
	PID       int
	Path      string
}

// AskUserAllowOrDeny 检测引擎请求操作员裁决可疑进程
type AskUserAllowOrDeny struct {
	Process Process
	Path    string
}

// AllowProcess 操作员放行进程
type AllowProcess struct {
	Process Process
}

// DenyProcess 操作员阻断进程
type DenyProcess struct {
	Process Process
}

func (FileOpen) Type() Type           { return TypeFileOpen }
func (ListDir) Type() Type            { return TypeListDir }
func (FileRead) Type() Type           { return TypeFileRead }
func (FileWrite) Type() Type          { return TypeFileWrite }
func (FileClose) Type() Type          { return TypeFileClose }
func (FileUnlink) Type() Type         { return TypeFileUnlink }
func (AskUserAllowOrDeny) Type() Type { return TypeAskUserAllowOrDeny }
func (AllowProcess) Type() Type       { return TypeAllowProcess }
func (DenyProcess) Type() Type        { return TypeDenyProcess }

func (e FileOpen) Time() float64   { return e.Timestamp }
func (e ListDir) Time() float64    { return e.Timestamp }
func (e FileRead) Time() float64   { return e.Timestamp }
func (e FileWrite) Time() float64  { return e.Timestamp }
func (e FileClose) Time() float64  { return e.Timestamp }
func (e FileUnlink) Time() float64 { return e.Timestamp }

func (e FileOpen) ProcessID() int   { return e.PID }
func (e ListDir) ProcessID() int    { return e.PID }
func (e FileRead) ProcessID() int   { return e.PID }
func (e FileWrite) ProcessID() int  { return e.PID }
func (e FileClose) ProcessID() int  { return e.PID }
func (e FileUnlink) ProcessID() int { return e.PID }

func (e FileOpen) FilePath() string   { return e.Path }
func (e ListDir) FilePath() string    { return e.Path }
func (e FileRead) FilePath() string   { return e.Path }
func (e FileWrite) FilePath() string  { return e.Path }
func (e FileClose) FilePath() string  { return e.Path }
func (e FileUnlink) FilePath() string { return e.Path }
