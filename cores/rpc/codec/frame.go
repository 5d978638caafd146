package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

/////////////////////////////////////////
// header 16字节 大端
// 0-1   magic
// 2     version
// 3     flag 低3位为消息类型 其余保留
// 4-11  request id
// 12-15 body length
/////////////////////////////////////////

const (
	Magic        uint16 = 0xF0F0
	Version      byte   = 0x01
	HeaderLength        = 16

	FlagMask              byte = 0x07
	FlagRequest           byte = 0x00
	FlagResponse          byte = 0x01
	FlagResponseVoid      byte = 0x03
	FlagResponseException byte = 0x05
)

type header struct {
	flag       byte
	requestID  int64
	bodyLength int32
}

func writeFrame(flag byte, requestID int64, body []byte) []byte {
	data := make([]byte, HeaderLength+len(body))
	binary.BigEndian.PutUint16(data[0:2], Magic)
	data[2] = Version
	data[3] = flag
	binary.BigEndian.PutUint64(data[4:12], uint64(requestID))
	binary.BigEndian.PutUint32(data[12:16], uint32(len(body)))
	copy(data[HeaderLength:], body)
	return data
}

// body写入
type bodyWriter struct {
	buf []byte
}

func (w *bodyWriter) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return errors.Errorf("string too long: %d bytes", len(s))
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *bodyWriter) writeBytes(bs []byte) error {
	if len(bs) > math.MaxInt32 {
		return errors.Errorf("blob too long: %d bytes", len(bs))
	}
	w.writeInt32(int32(len(bs)))
	w.buf = append(w.buf, bs...)
	return nil
}

func (w *bodyWriter) writeInt32(n int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
}

func (w *bodyWriter) writeInt64(n int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(n))
}

// body读取
type bodyReader struct {
	buf []byte
	off int
}

var errShortBody = errors.New("body too short")

func (r *bodyReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *bodyReader) next(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShortBody
	}
	bs := r.buf[r.off : r.off+n]
	r.off += n
	return bs, nil
}

func (r *bodyReader) readString() (string, error) {
	bs, err := r.next(2)
	if err != nil {
		return "", err
	}
	bs, err = r.next(int(binary.BigEndian.Uint16(bs)))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(bs) {
		return "", errors.New("invalid utf-8 string")
	}
	return string(bs), nil
}

func (r *bodyReader) readBytes() ([]byte, error) {
	n, err := r.readInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("negative blob length %d", n)
	}
	return r.next(int(n))
}

func (r *bodyReader) readInt32() (int32, error) {
	bs, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(bs)), nil
}

func (r *bodyReader) readInt64() (int64, error) {
	bs, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(bs)), nil
}

func (r *bodyReader) done() error {
	if r.remaining() != 0 {
		return errors.Errorf("%d trailing bytes in body", r.remaining())
	}
	return nil
}
