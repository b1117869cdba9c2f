package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// 帧格式：len(2, 大端，不含自身) + opcode(1) + payload(var)
const (
	// MaxFrameSize 单帧最大长度（len 字段上限）
	MaxFrameSize = 0xFFFF
	headerSize   = 2
)

var (
	// ErrEmptyFrame 帧长为 0，缺少 opcode
	ErrEmptyFrame = errors.New("wire: empty frame")
)

// ReadFrame 从 r 读取一帧，返回 opcode 与 payload。
// payload 底层存储在下一次读取前有效。
func ReadFrame(r io.Reader) (byte, []byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 {
		return 0, nil, ErrEmptyFrame
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

// WriteFrame 向 w 写出一帧
func WriteFrame(w io.Writer, opcode byte, payload []byte) error {
	if len(payload)+1 > MaxFrameSize {
		return errors.New("wire: frame too large")
	}
	buf := make([]byte, headerSize+1+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(1+len(payload)))
	buf[2] = opcode
	copy(buf[3:], payload)
	_, err := w.Write(buf)
	return err
}
