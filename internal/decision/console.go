package decision

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/log"
	"github.com/FloatingGuy/ransomcare/internal/procinfo"
)

const unavailable = "<unavailable>"

// Console 通过终端询问操作员
type Console struct {
	in        *bufio.Reader
	inFile    *os.File // 终端输入，用于清空内核缓冲区
	out       io.Writer
	inspector procinfo.Inspector
	logger    *log.Logger

	// 同一时间只有一个 goroutine 读取 in；上一次提示被取消时留下的读取在下次提示中继续等待
	mu      sync.Mutex
	pending chan answer
}

// NewConsole 创建终端裁决器
func NewConsole(in io.Reader, out io.Writer, inspector procinfo.Inspector, logger *log.Logger) *Console {
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Console{
		in:        bufio.NewReader(in),
		out:       out,
		inspector: inspector,
		logger:    logger,
	}
	if f, ok := in.(*os.File); ok {
		c.inFile = f
	}
	return c
}

type answer struct {
	line string
	err  error
}

// Decide 展示可疑进程信息并等待一行输入
// 进程信息获取失败时只告警，提示照常进行。
func (c *Console) Decide(ctx context.Context, req Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return VerdictDeny, err
	}

	info, err := procinfo.Describe(c.inspector, req.Process.PID)
	if err != nil {
		c.logger.Warn("Ransomware process is caught, but the process does not exist or is not accessible",
			zap.Int("pid", req.Process.PID),
			zap.String("prompt_id", req.ID),
			zap.Error(err),
		)
	}

	c.render(req, info)
	ch := c.readLine()

	select {
	case <-ctx.Done():
		return VerdictDeny, ctx.Err()
	case a := <-ch:
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()

		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return VerdictDeny, fmt.Errorf("read operator answer: %w", a.err)
		}
		return ParseAnswer(strings.TrimSpace(a.line)), nil
	}
}

// readLine 返回当前的读取结果通道，没有未完成的读取时先丢弃积压输入再发起新的读取
func (c *Console) readLine() <-chan answer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return c.pending
	}

	c.discardStaleInput()
	ch := make(chan answer, 1)
	c.pending = ch
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()
	return ch
}

func (c *Console) render(req Request, info procinfo.Info) {
	exe := info.Exe
	if exe == "" {
		exe = unavailable
	}
	cmdline := unavailable
	if len(info.Cmdline) > 0 {
		cmdline = strings.Join(info.Cmdline, " ")
	}

	fmt.Fprint(c.out, "\033[91m\n")
	fmt.Fprintln(c.out, "*** [Crypto ransom detected] ***")
	fmt.Fprintf(c.out, "[PID]: %d\n", req.Process.PID)
	fmt.Fprintf(c.out, "[EXE]: %q\n", exe)
	fmt.Fprintf(c.out, "[Command]: %q\n", cmdline)
	fmt.Fprintf(c.out, "[File]: %s\n", req.Path)
	fmt.Fprint(c.out, "********************************\033[0m\n")
	fmt.Fprint(c.out, "> Block it? (Y/n) ")
}

// discardStaleInput 丢弃提示之前积压的输入
func (c *Console) discardStaleInput() {
	if n := c.in.Buffered(); n > 0 {
		_, _ = c.in.Discard(n)
	}
	if c.inFile != nil {
		if err := flushInput(c.inFile); err != nil {
			c.logger.Debug("Failed to flush terminal input", zap.Error(err))
		}
	}
}
