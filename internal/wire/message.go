package wire

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrShortRead 读取越过消息末尾
	ErrShortRead = errors.New("wire: read past end of message")
	// ErrReleased 借用视图已失效
	ErrReleased = errors.New("wire: message view released")
)

// Message 读取定位的入站报文视图。底层存储归投递该帧的调用栈所有，
// 仅在单次 dispatch 调用期间有效。
type Message struct {
	buf []byte
	pos int
}

// NewMessage 在 payload 之上构建报文视图（不拷贝）
func NewMessage(payload []byte) *Message {
	return &Message{buf: payload}
}

// Remaining 返回未读字节数
func (m *Message) Remaining() int { return len(m.buf) - m.pos }

// ReadByte 读取 1 字节
func (m *Message) ReadByte() (byte, error) {
	if m.Remaining() < 1 {
		return 0, ErrShortRead
	}
	b := m.buf[m.pos]
	m.pos++
	return b, nil
}

// ReadUint16 读取大端 u16
func (m *Message) ReadUint16() (uint16, error) {
	if m.Remaining() < 2 {
		return 0, ErrShortRead
	}
	v := binary.BigEndian.Uint16(m.buf[m.pos:])
	m.pos += 2
	return v, nil
}

// ReadUint32 读取大端 u32
func (m *Message) ReadUint32() (uint32, error) {
	if m.Remaining() < 4 {
		return 0, ErrShortRead
	}
	v := binary.BigEndian.Uint32(m.buf[m.pos:])
	m.pos += 4
	return v, nil
}

// ReadString 读取 u16 长度前缀字符串
func (m *Message) ReadString() (string, error) {
	n, err := m.ReadUint16()
	if err != nil {
		return "", err
	}
	if m.Remaining() < int(n) {
		return "", ErrShortRead
	}
	s := string(m.buf[m.pos : m.pos+int(n)])
	m.pos += int(n)
	return s, nil
}

// Skip 跳过 n 字节
func (m *Message) Skip(n int) error {
	if n < 0 || m.Remaining() < n {
		return ErrShortRead
	}
	m.pos += n
	return nil
}

// Borrow 返回非拥有视图。脚本调用通过该视图访问报文；
// 调用返回后视图被 Release，之后任何访问返回 ErrReleased。
func (m *Message) Borrow() *Borrowed {
	return &Borrowed{msg: m}
}

// Borrowed 报文的借用（非拥有）视图。持有方不得在 Release 之后继续使用。
type Borrowed struct {
	msg *Message
}

// Release 使视图失效。幂等。
func (b *Borrowed) Release() { b.msg = nil }

// Valid 视图是否仍可用
func (b *Borrowed) Valid() bool { return b.msg != nil }

// ReadByte 透传到底层报文；视图失效后返回 ErrReleased
func (b *Borrowed) ReadByte() (byte, error) {
	if b.msg == nil {
		return 0, ErrReleased
	}
	return b.msg.ReadByte()
}

// ReadUint16 透传到底层报文
func (b *Borrowed) ReadUint16() (uint16, error) {
	if b.msg == nil {
		return 0, ErrReleased
	}
	return b.msg.ReadUint16()
}

// ReadUint32 透传到底层报文
func (b *Borrowed) ReadUint32() (uint32, error) {
	if b.msg == nil {
		return 0, ErrReleased
	}
	return b.msg.ReadUint32()
}

// ReadString 透传到底层报文
func (b *Borrowed) ReadString() (string, error) {
	if b.msg == nil {
		return "", ErrReleased
	}
	return b.msg.ReadString()
}

// Remaining 透传到底层报文；失效后返回 0
func (b *Borrowed) Remaining() int {
	if b.msg == nil {
		return 0
	}
	return b.msg.Remaining()
}
