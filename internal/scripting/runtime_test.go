package scripting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/wire"
)

func newTestSession(t *testing.T, sent *[][]byte) *session.Session {
	t.Helper()
	m := session.NewManager()
	return m.Attach("10.0.0.1:4321", func(p []byte) error {
		if sent != nil {
			*sent = append(*sent, append([]byte(nil), p...))
		}
		return nil
	})
}

func TestLoadHandlerString(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())

	id, err := r.LoadHandlerString("noop.lua", `return function(session, msg, opcode) end`)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id2, err := r.LoadHandlerString("noop2.lua", `return function(session, msg, opcode) end`)
	require.NoError(t, err)
	assert.Equal(t, 2, id2)
}

func TestLoadHandlerStringNotAFunction(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	_, err := r.LoadHandlerString("bad.lua", `return 42`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must return a handler function")
}

func TestLoadHandlerStringSyntaxError(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	_, err := r.LoadHandlerString("bad.lua", `return function(`)
	assert.Error(t, err)
}

func TestExecuteRecvByte(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	var sent [][]byte
	sess := newTestSession(t, &sent)

	id, err := r.LoadHandlerString("echo.lua", `
return function(session, msg, opcode)
    local v = msg:u8()
    session:send(string.char(opcode, v))
end`)
	require.NoError(t, err)

	msg := wire.NewMessage([]byte{0x2A})
	require.NoError(t, r.ExecuteRecvByte(id, sess, msg, 0x0A))

	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x0A, 0x2A}, sent[0])
}

func TestExecuteDiscardsReturnValues(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	sess := newTestSession(t, nil)

	id, err := r.LoadHandlerString("ret.lua", `return function(session, msg, opcode) return 1, 2, 3 end`)
	require.NoError(t, err)

	require.NoError(t, r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01))
	assert.Equal(t, 0, r.l.Top(), "stack must be balanced after the call")
}

func TestExecuteScriptError(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	sess := newTestSession(t, nil)

	id, err := r.LoadHandlerString("boom.lua", `return function(session, msg, opcode) error("boom") end`)
	require.NoError(t, err)

	err = r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom.lua")
	assert.Equal(t, 0, r.CallDepth(), "slot must be released on the error path")
}

func TestExecuteSessionIdentity(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	var sent [][]byte
	sess := newTestSession(t, &sent)

	id, err := r.LoadHandlerString("ident.lua", `
return function(session, msg, opcode)
    session:send(string.char(session:id()))
end`)
	require.NoError(t, err)

	require.NoError(t, r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01))
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{byte(sess.ID())}, sent[0])
}

func TestBufferNotRetainable(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	sess := newTestSession(t, nil)

	keeper, err := r.LoadHandlerString("keep.lua", `
return function(session, msg, opcode)
    retained_msg = msg
end`)
	require.NoError(t, err)
	toucher, err := r.LoadHandlerString("touch.lua", `
return function(session, msg, opcode)
    retained_msg:u8()
end`)
	require.NoError(t, err)

	require.NoError(t, r.ExecuteRecvByte(keeper, sess, wire.NewMessage([]byte{0x01}), 0x01))

	// 上一次调用的借用视图已失效，过期访问必须失败
	err = r.ExecuteRecvByte(toucher, sess, wire.NewMessage(nil), 0x02)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "released")
}

func TestReentrancyCeiling(t *testing.T) {
	r := NewRuntime(1, zap.NewNop())
	sess := newTestSession(t, nil)

	id, err := r.LoadHandlerString("noop.lua", `return function(session, msg, opcode) end`)
	require.NoError(t, err)

	// 占满唯一槽位，模拟已在脚本嵌套中
	require.True(t, r.reserveCallSlot())
	err = r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01)
	assert.ErrorIs(t, err, ErrCallStackOverflow)
	assert.Equal(t, 1, r.depth, "refused reserve must leave the counter unchanged")
	r.releaseCallSlot()

	// 释放后调用恢复
	require.NoError(t, r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01))
	assert.Equal(t, 0, r.depth)
}

func TestReinitializeInvalidatesHandlers(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	sess := newTestSession(t, nil)

	id, err := r.LoadHandlerString("noop.lua", `return function(session, msg, opcode) end`)
	require.NoError(t, err)
	require.NoError(t, r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01))

	require.NoError(t, r.Reinitialize())

	// 旧身份随旧状态作废
	err = r.ExecuteRecvByte(id, sess, wire.NewMessage(nil), 0x01)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not bound"))

	// 身份计数随状态重置
	id2, err := r.LoadHandlerString("noop.lua", `return function(session, msg, opcode) end`)
	require.NoError(t, err)
	assert.Equal(t, 1, id2)
	require.NoError(t, r.ExecuteRecvByte(id2, sess, wire.NewMessage(nil), 0x01))
}

func TestMessageBindings(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	var sent [][]byte
	sess := newTestSession(t, &sent)

	id, err := r.LoadHandlerString("read.lua", `
return function(session, msg, opcode)
    local a = msg:u8()
    local b = msg:u16()
    local s = msg:string()
    session:send(string.char(a, b % 256) .. s .. string.char(msg:remaining()))
end`)
	require.NoError(t, err)

	payload := []byte{0x01, 0x02, 0x03, 0x00, 0x02, 'h', 'i', 0xFF}
	require.NoError(t, r.ExecuteRecvByte(id, sess, wire.NewMessage(payload), 0x01))

	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x01, 0x03, 'h', 'i', 0x01}, sent[0])
}

func TestMessageShortReadRaises(t *testing.T) {
	r := NewRuntime(0, zap.NewNop())
	sess := newTestSession(t, nil)

	id, err := r.LoadHandlerString("short.lua", `
return function(session, msg, opcode)
    msg:u32()
end`)
	require.NoError(t, err)

	err = r.ExecuteRecvByte(id, sess, wire.NewMessage([]byte{0x01}), 0x01)
	require.Error(t, err)
	assert.Equal(t, 0, r.CallDepth())
}
