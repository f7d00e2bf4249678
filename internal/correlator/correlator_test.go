package correlator

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/metrics"
	"github.com/FloatingGuy/ransomcare/internal/pathresolve"
	"github.com/FloatingGuy/ransomcare/internal/procinfo"
)

// capture 记录发布的事件
type capture struct {
	events []event.Event
}

func (c *capture) Publish(ev event.Event) { c.events = append(c.events, ev) }

// exitedInspector 模拟所有进程都已退出
type exitedInspector struct{}

func (exitedInspector) Cwd(int) (string, error)       { return "", errors.New("no such process") }
func (exitedInspector) Exe(int) (string, error)       { return "", errors.New("no such process") }
func (exitedInspector) Cmdline(int) ([]string, error) { return nil, errors.New("no such process") }

type fixture struct {
	cwd  *procinfo.Resolver
	pub  *capture
	corr *Correlator
	m    *metrics.Metrics
}

func newFixture() *fixture {
	cwd := procinfo.NewResolver(exitedInspector{}, nil)
	paths := pathresolve.New(cwd, pathresolve.WithCanonicalizer(filepath.Clean))
	pub := &capture{}
	m := metrics.New("test")
	return &fixture{
		cwd:  cwd,
		pub:  pub,
		corr: New(paths, pub, WithMetrics(m)),
		m:    m,
	}
}

// feed 解码并关联若干行记录
func (f *fixture) feed(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		rec, err := DecodeRecord([]byte(line))
		require.NoError(t, err)
		f.corr.Correlate(rec)
	}
}

// dropped 读取某个丢弃原因的计数
func (f *fixture) dropped(t *testing.T, reason string) float64 {
	t.Helper()
	families, err := f.m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "test_correlator_records_dropped_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == reason {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCorrelate_OpenThenWrite(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":1,"fd":3,"path":"/tmp/a"}`,
		`{"action":"write","pid":1,"fd":3,"size":10,"t":5}`,
	)

	assert.Equal(t, []event.Event{
		event.FileOpen{PID: 1, Path: "/tmp/a"},
		event.FileWrite{Timestamp: 5, PID: 1, Path: "/tmp/a", Size: 10},
	}, f.pub.events)
}

func TestCorrelate_WriteWithoutOpenIsDropped(t *testing.T) {
	f := newFixture()
	f.feed(t, `{"action":"write","pid":9,"fd":2}`)

	assert.Empty(t, f.pub.events)
	assert.Equal(t, 1.0, f.dropped(t, metrics.DropUnknownDescriptor))
}

func TestCorrelate_RelativePathUsesCachedCwd(t *testing.T) {
	f := newFixture()
	f.cwd.Remember(1, "/home/x")

	f.feed(t, `{"action":"open","pid":1,"fd":3,"path":"rel.txt"}`)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, event.FileOpen{PID: 1, Path: "/home/x/rel.txt"}, f.pub.events[0])
}

func TestCorrelate_RelativePathWithoutCwdIsDropped(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":1,"fd":3,"path":"rel.txt"}`,
		`{"action":"read","pid":1,"fd":3,"size":4}`,
	)

	assert.Empty(t, f.pub.events)
	assert.Equal(t, 0, f.corr.Table().Len())
	assert.Equal(t, 1.0, f.dropped(t, metrics.DropUnresolvable))
	assert.Equal(t, 1.0, f.dropped(t, metrics.DropUnknownDescriptor))
}

func TestCorrelate_EmptyPathIsDropped(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":1,"fd":3}`,
		`{"action":"open","pid":1,"fd":4,"path":""}`,
	)

	assert.Empty(t, f.pub.events)
	assert.Equal(t, 2.0, f.dropped(t, metrics.DropUnresolvable))
}

func TestCorrelate_CloseAndUnlinkRemoveDescriptor(t *testing.T) {
	for _, action := range []string{"close", "unlink"} {
		t.Run(action, func(t *testing.T) {
			f := newFixture()
			f.feed(t,
				`{"action":"open","pid":7,"fd":3,"path":"/data/a"}`,
				`{"action":"open","pid":7,"fd":4,"path":"/data/b"}`,
				`{"action":"`+action+`","pid":7,"fd":3,"t":2}`,
			)

			_, ok := f.corr.Table().Lookup(7, 3)
			assert.False(t, ok)
			assert.True(t, f.corr.Table().HasProcess(7))

			f.feed(t, `{"action":"`+action+`","pid":7,"fd":4,"t":3}`)
			_, ok = f.corr.Table().Lookup(7, 4)
			assert.False(t, ok)
			// 子表为空后被删除
			assert.False(t, f.corr.Table().HasProcess(7))
			assert.Equal(t, 0, f.corr.Table().Processes())

			require.Len(t, f.pub.events, 4)
			if action == "close" {
				assert.Equal(t, event.FileClose{Timestamp: 2, PID: 7, Path: "/data/a"}, f.pub.events[2])
			} else {
				assert.Equal(t, event.FileUnlink{Timestamp: 2, PID: 7, Path: "/data/a"}, f.pub.events[2])
			}

			// 重复关闭被丢弃
			f.feed(t, `{"action":"`+action+`","pid":7,"fd":4}`)
			assert.Len(t, f.pub.events, 4)
		})
	}
}

func TestCorrelate_ReadAndListDir(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":2,"fd":5,"path":"/home/x/docs"}`,
		`{"action":"listdir","pid":2,"fd":5,"t":1.5}`,
		`{"action":"read","pid":2,"fd":5,"size":512,"t":2}`,
	)

	require.Len(t, f.pub.events, 3)
	assert.Equal(t, event.ListDir{Timestamp: 1.5, PID: 2, Path: "/home/x/docs"}, f.pub.events[1])
	assert.Equal(t, event.FileRead{Timestamp: 2, PID: 2, Path: "/home/x/docs", Size: 512}, f.pub.events[2])

	// 只读操作不改变状态
	path, ok := f.corr.Table().Lookup(2, 5)
	assert.True(t, ok)
	assert.Equal(t, "/home/x/docs", path)
}

func TestCorrelate_DescriptorReuseOverwrites(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":1,"fd":3,"path":"/a"}`,
		`{"action":"open","pid":1,"fd":3,"path":"/b"}`,
		`{"action":"write","pid":1,"fd":3,"size":1}`,
	)

	assert.Equal(t, 1, f.corr.Table().Len())
	require.Len(t, f.pub.events, 3)
	assert.Equal(t, "/b", f.pub.events[2].(event.FileWrite).Path)
}

func TestCorrelate_DescriptorsArePerProcess(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":1,"fd":3,"path":"/a"}`,
		`{"action":"write","pid":2,"fd":3,"size":1}`,
	)

	assert.Len(t, f.pub.events, 1)
}

func TestCorrelate_MissingFDAndUnknownAction(t *testing.T) {
	f := newFixture()
	f.feed(t,
		`{"action":"open","pid":1,"path":"/a"}`,
		`{"action":"chmod","pid":1,"fd":3,"path":"/a"}`,
	)

	assert.Empty(t, f.pub.events)
	assert.Equal(t, 1.0, f.dropped(t, metrics.DropMissingField))
	assert.Equal(t, 1.0, f.dropped(t, metrics.DropUnknownAction))
}

func TestCorrelate_ReturnsEmittedEvent(t *testing.T) {
	f := newFixture()
	fd := 3
	path := "/x"

	ev, ok := f.corr.Correlate(RawRecord{Action: ActionOpen, PID: 4, FD: &fd, Path: &path, T: 9})
	require.True(t, ok)
	assert.Equal(t, event.FileOpen{Timestamp: 9, PID: 4, Path: "/x"}, ev)

	ev, ok = f.corr.Correlate(RawRecord{Action: ActionRead, PID: 5, FD: &fd})
	assert.False(t, ok)
	assert.Nil(t, ev)
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"action":"write","pid":1,"fd":0,"size":0,"t":5.25}`))
	require.NoError(t, err)
	assert.Equal(t, ActionWrite, rec.Action)
	require.NotNil(t, rec.FD)
	assert.Equal(t, 0, *rec.FD)
	require.NotNil(t, rec.Size)
	assert.Equal(t, int64(0), *rec.Size)
	assert.Nil(t, rec.Path)
	assert.Equal(t, 5.25, rec.T)

	_, err = DecodeRecord([]byte("not json"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
