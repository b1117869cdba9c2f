package modules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/odyssia-dev/realmgate/internal/scripting"
	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/wire"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type invocation struct {
	scriptID int
	session  uint32
	opcode   byte
}

type fakeExecutor struct {
	calls []invocation
	err   error
}

func (f *fakeExecutor) ExecuteRecvByte(scriptID int, sess *session.Session, msg *wire.Message, opcode byte) error {
	f.calls = append(f.calls, invocation{scriptID: scriptID, session: sess.ID(), opcode: opcode})
	return f.err
}

func newDispatchFixture(t *testing.T) (*fakeClock, *session.Manager, *Registry, *fakeExecutor, *Dispatcher) {
	t.Helper()
	clock := newFakeClock()
	sessions := session.NewManager(session.WithNow(clock.Now))
	registry := NewRegistry()
	exec := &fakeExecutor{}
	d := NewDispatcher(registry, sessions, exec, zap.NewNop(), nil)
	return clock, sessions, registry, exec, d
}

func TestDispatchRateGateScenario(t *testing.T) {
	clock, sessions, registry, exec, d := newDispatchFixture(t)

	m := newRecvByteModule(t, 0x0A, 50)
	m.Bind(7)
	require.True(t, registry.Register(m))

	s := sessions.Attach("10.0.0.1:4321", nil)

	// t=0 触发
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	require.Len(t, exec.calls, 1)
	assert.Equal(t, invocation{scriptID: 7, session: s.ID(), opcode: 0x0A}, exec.calls[0])

	// t=10 冷却中
	clock.Advance(10 * time.Millisecond)
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	assert.Len(t, exec.calls, 1)

	// t=60 再次触发
	clock.Advance(50 * time.Millisecond)
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	assert.Len(t, exec.calls, 2)
}

func TestDispatchUnknownSession(t *testing.T) {
	_, _, registry, exec, d := newDispatchFixture(t)

	m := newRecvByteModule(t, 0x0A, 0)
	m.Bind(1)
	require.True(t, registry.Register(m))

	d.Dispatch(42, 0x0A, wire.NewMessage(nil))
	assert.Empty(t, exec.calls, "unknown session must be ignored silently")
}

func TestDispatchUnboundOpcode(t *testing.T) {
	_, sessions, _, exec, d := newDispatchFixture(t)
	s := sessions.Attach("10.0.0.1:4321", nil)

	d.Dispatch(s.ID(), 0x7F, wire.NewMessage(nil))
	assert.Empty(t, exec.calls)
}

func TestDispatchSkipsUnloaded(t *testing.T) {
	_, sessions, registry, exec, d := newDispatchFixture(t)

	m := newRecvByteModule(t, 0x0A, 0)
	require.True(t, registry.Register(m)) // 未加载槽位

	s := sessions.Attach("10.0.0.1:4321", nil)
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	assert.Empty(t, exec.calls, "unloaded module must never be dispatched to")
}

func TestDispatchAtMostOnce(t *testing.T) {
	_, sessions, registry, exec, d := newDispatchFixture(t)

	m := newRecvByteModule(t, 0x0A, 0)
	m.Bind(1)
	require.True(t, registry.Register(m))

	s := sessions.Attach("10.0.0.1:4321", nil)
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	assert.Len(t, exec.calls, 1, "single dispatch must invoke the bridge at most once")
}

func TestDispatchOverflowRecovered(t *testing.T) {
	_, sessions, registry, exec, d := newDispatchFixture(t)
	exec.err = scripting.ErrCallStackOverflow

	m := newRecvByteModule(t, 0x0A, 0)
	m.Bind(1)
	require.True(t, registry.Register(m))

	s := sessions.Attach("10.0.0.1:4321", nil)
	// 溢出只在本地恢复，dispatch 正常返回
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	assert.Len(t, exec.calls, 1)
}

func TestDispatchScriptErrorRecovered(t *testing.T) {
	_, sessions, registry, exec, d := newDispatchFixture(t)
	exec.err = errors.New("script blew up")

	m := newRecvByteModule(t, 0x0A, 0)
	m.Bind(1)
	require.True(t, registry.Register(m))

	s := sessions.Attach("10.0.0.1:4321", nil)
	d.Dispatch(s.ID(), 0x0A, wire.NewMessage(nil))
	assert.Len(t, exec.calls, 1)
}
