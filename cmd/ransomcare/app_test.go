package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FloatingGuy/ransomcare/internal/config"
	"github.com/FloatingGuy/ransomcare/internal/decision"
	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/log"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Handle(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func TestNewProvider(t *testing.T) {
	p, err := newProvider("console", strings.NewReader(""), nil, nil, log.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &decision.Console{}, p)

	p, err = newProvider("allow", nil, nil, nil, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, decision.Auto{Verdict: decision.VerdictAllow}, p)

	_, err = newProvider("ask", nil, nil, nil, log.NewNop())
	assert.Error(t, err)
}

func TestApp_StartFailsWithoutAgent(t *testing.T) {
	cfg := config.Default()
	cfg.Tracer.Binary = "/nonexistent/ransomcare-sniffer"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := newApp(ctx, cfg, log.NewNop(), strings.NewReader(""), nil)
	require.NoError(t, err)

	assert.Error(t, a.start(ctx))
	a.shutdown()
}

func TestApp_EndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	target := filepath.Join(dir, "doc.txt")

	lines := []string{
		fmt.Sprintf(`{"action":"open","pid":1,"fd":3,"path":%q,"t":1.5}`, target),
		`{"action":"read","pid":1,"fd":3,"size":10,"t":1.6}`,
		`{"action":"read","pid":1,"fd":9,"size":10,"t":1.7}`,
		`{"action":"close","pid":1,"fd":3,"t":1.8}`,
	}
	script := "echo '" + strings.Join(lines, "'; echo '") + "'"

	cfg := config.Default()
	cfg.Tracer.Binary = "/bin/sh"
	cfg.Tracer.Args = []string{"-c", script}
	cfg.Decision.Mode = "deny"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := newApp(ctx, cfg, log.NewNop(), strings.NewReader(""), nil)
	require.NoError(t, err)

	rec := &recorder{}
	a.bus.Subscribe(rec)

	require.NoError(t, a.start(ctx))
	a.wait(ctx)

	assert.Equal(t, []event.Event{
		event.FileOpen{Timestamp: 1.5, PID: 1, Path: target},
		event.FileRead{Timestamp: 1.6, PID: 1, Path: target, Size: 10},
		event.FileClose{Timestamp: 1.8, PID: 1, Path: target},
	}, rec.snapshot())
	assert.Equal(t, 0, a.correlator.Table().Len())

	// 检测引擎发出询问后，裁决结果异步发布到总线
	a.bus.Publish(event.AskUserAllowOrDeny{Process: event.Process{PID: 1}, Path: target})
	assert.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if _, ok := ev.(event.DenyProcess); ok {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	a.shutdown()
}
