package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestConfigureValid(t *testing.T) {
	m := NewModule()
	err := m.Configure(Def{Type: "recvbyte", Byte: intp(0x0A), Delay: 50})
	require.NoError(t, err)

	assert.Equal(t, byte(0x0A), m.Opcode())
	assert.Equal(t, KindRecvByte, m.Kind())
	assert.Equal(t, int16(50), m.Delay())
	assert.False(t, m.Loaded(), "configure alone must not mark loaded")
}

func TestConfigureCaseInsensitiveType(t *testing.T) {
	m := NewModule()
	require.NoError(t, m.Configure(Def{Type: "RecvByte", Byte: intp(1)}))
	assert.Equal(t, KindRecvByte, m.Kind())
}

func TestConfigureRejects(t *testing.T) {
	cases := []struct {
		name string
		def  Def
	}{
		{"missing type", Def{Byte: intp(1)}},
		{"unknown type", Def{Type: "sendbyte", Byte: intp(1)}},
		{"missing byte", Def{Type: "recvbyte"}},
		{"byte too large", Def{Type: "recvbyte", Byte: intp(256)}},
		{"byte negative", Def{Type: "recvbyte", Byte: intp(-1)}},
		{"delay negative", Def{Type: "recvbyte", Byte: intp(1), Delay: -1}},
		{"delay too large", Def{Type: "recvbyte", Byte: intp(1), Delay: 40000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewModule()
			err := m.Configure(tc.def)
			require.Error(t, err)
			// 失败不得遗留部分状态
			assert.Equal(t, KindNone, m.Kind())
			assert.False(t, m.Loaded())
		})
	}
}

func TestBind(t *testing.T) {
	m := NewModule()
	require.NoError(t, m.Configure(Def{Type: "recvbyte", Byte: intp(2)}))

	m.Bind(7)
	assert.True(t, m.Loaded())
	assert.Equal(t, 7, m.ScriptID())
}
