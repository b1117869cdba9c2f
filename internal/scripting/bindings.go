package scripting

import (
	"github.com/Shopify/go-lua"

	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/wire"
)

const (
	sessionTypeName = "session"
	messageTypeName = "message"
)

func registerSessionType(l *lua.State) {
	lua.NewMetaTable(l, sessionTypeName)
	l.NewTable()
	lua.SetFunctions(l, sessionMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)
}

func registerMessageType(l *lua.State) {
	lua.NewMetaTable(l, messageTypeName)
	l.NewTable()
	lua.SetFunctions(l, messageMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)
}

func pushSession(l *lua.State, s *session.Session) {
	l.PushUserData(s)
	lua.SetMetaTableNamed(l, sessionTypeName)
}

func pushMessage(l *lua.State, v *wire.Borrowed) {
	l.PushUserData(v)
	lua.SetMetaTableNamed(l, messageTypeName)
}

var sessionMethods = []lua.RegistryFunction{
	{Name: "id", Function: sessionID},
	{Name: "remote", Function: sessionRemote},
	{Name: "send", Function: sessionSend},
}

func checkSession(l *lua.State) *session.Session {
	if s, ok := l.ToUserData(1).(*session.Session); ok && s != nil {
		return s
	}
	lua.Errorf(l, "session expected")
	return nil
}

func sessionID(l *lua.State) int {
	s := checkSession(l)
	l.PushInteger(int(s.ID()))
	return 1
}

func sessionRemote(l *lua.State) int {
	s := checkSession(l)
	l.PushString(s.RemoteAddr())
	return 1
}

func sessionSend(l *lua.State) int {
	s := checkSession(l)
	payload := lua.CheckString(l, 2)
	if err := s.Send([]byte(payload)); err != nil {
		l.PushBoolean(false)
		l.PushString(err.Error())
		return 2
	}
	l.PushBoolean(true)
	return 1
}

var messageMethods = []lua.RegistryFunction{
	{Name: "u8", Function: messageU8},
	{Name: "u16", Function: messageU16},
	{Name: "u32", Function: messageU32},
	{Name: "string", Function: messageString},
	{Name: "remaining", Function: messageRemaining},
}

// checkMessage 借用视图在调用返回后被 Release，此处不做额外校验，
// 过期访问由视图自身以 ErrReleased 拒绝并转为 Lua 错误。
func checkMessage(l *lua.State) *wire.Borrowed {
	if v, ok := l.ToUserData(1).(*wire.Borrowed); ok && v != nil {
		return v
	}
	lua.Errorf(l, "message expected")
	return nil
}

func messageU8(l *lua.State) int {
	v := checkMessage(l)
	b, err := v.ReadByte()
	if err != nil {
		lua.Errorf(l, "message u8: %s", err.Error())
	}
	l.PushInteger(int(b))
	return 1
}

func messageU16(l *lua.State) int {
	v := checkMessage(l)
	u, err := v.ReadUint16()
	if err != nil {
		lua.Errorf(l, "message u16: %s", err.Error())
	}
	l.PushInteger(int(u))
	return 1
}

func messageU32(l *lua.State) int {
	v := checkMessage(l)
	u, err := v.ReadUint32()
	if err != nil {
		lua.Errorf(l, "message u32: %s", err.Error())
	}
	l.PushInteger(int(u))
	return 1
}

func messageString(l *lua.State) int {
	v := checkMessage(l)
	s, err := v.ReadString()
	if err != nil {
		lua.Errorf(l, "message string: %s", err.Error())
	}
	l.PushString(s)
	return 1
}

func messageRemaining(l *lua.State) int {
	v := checkMessage(l)
	l.PushInteger(v.Remaining())
	return 1
}
