// Package frame implements the length-prefixed binary wire codec used
// between nodes: 4-byte big-endian length, 1-byte tag, then payload.
// Grounded on hydra/src/node_remote.rs's framing (tokio_util::codec::Framed
// over a byte stream) and the wire layout spec'd in the external
// interfaces section; no framing-codec library appears anywhere in the
// reference corpus, so this is implemented directly on encoding/binary
// and io (see DESIGN.md for the stdlib justification).
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// Tag identifies a frame's kind on the wire.
type Tag byte

const (
	TagHello Tag = 0x01
	TagPing  Tag = 0x02
	TagPong  Tag = 0x03
	TagUser  Tag = 0x04
)

func (t Tag) String() string {
	switch t {
	case TagHello:
		return "Hello"
	case TagPing:
		return "Ping"
	case TagPong:
		return "Pong"
	case TagUser:
		return "User"
	default:
		return fmt.Sprintf("Tag(0x%02x)", byte(t))
	}
}

// ErrFrameTooLarge is returned when a peer's declared frame length exceeds
// the codec's configured maximum.
var ErrFrameTooLarge = errors.New("frame: declared length exceeds max_frame_len")

// ErrProtocol marks a frame that parsed but violates protocol invariants
// (e.g. a Hello received mid-session, or an unrecognized tag).
var ErrProtocol = errors.New("frame: protocol error")

// Hello is sent exactly once per connection, first, by both peers.
type Hello struct {
	Name             string
	BroadcastAddress net.Addr
	Cookie           []byte
	Version          uint16
}

// Frame is one decoded wire unit. Exactly one of the payload fields is
// meaningful, selected by Tag: Hello for TagHello, User for TagUser; Ping
// and Pong carry no payload.
type Frame struct {
	Tag   Tag
	Hello Hello
	User  []byte // target local-Pid-serial (8 bytes, big-endian) followed by opaque payload
}

// Ping builds a heartbeat request frame.
func Ping() Frame { return Frame{Tag: TagPing} }

// Pong builds a heartbeat reply frame.
func Pong() Frame { return Frame{Tag: TagPong} }

// NewHello builds a Hello frame for the given identity.
func NewHello(name string, addr net.Addr, cookie []byte, version uint16) Frame {
	return Frame{Tag: TagHello, Hello: Hello{Name: name, BroadcastAddress: addr, Cookie: cookie, Version: version}}
}

// NewUser builds a frame carrying an opaque cross-node message addressed
// to targetSerial on the receiving node.
func NewUser(targetSerial uint64, payload []byte) Frame {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf, targetSerial)
	copy(buf[8:], payload)
	return Frame{Tag: TagUser, User: buf}
}

// TargetSerial extracts the addressed Pid serial from a User frame's
// payload.
func (f Frame) TargetSerial() uint64 {
	if len(f.User) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(f.User[:8])
}

// UserPayload returns the opaque message bytes following the target
// serial in a User frame.
func (f Frame) UserPayload() []byte {
	if len(f.User) < 8 {
		return nil
	}
	return f.User[8:]
}

// helloAddrLen is 1 family + 16 addr + 2 port = 19 bytes, unused bytes zero.
const helloAddrLen = 19

// Codec reads and writes frames against a byte stream, enforcing
// maxFrameLen on every read. It holds no state between calls: each
// ReadFrame reads one whole length prefix and body with io.ReadFull.
type Codec struct {
	r           io.Reader
	w           io.Writer
	maxFrameLen uint32
}

// NewCodec wraps rw for framed reads and writes, rejecting any declared
// frame length over maxFrameLen.
func NewCodec(rw io.ReadWriter, maxFrameLen uint32) *Codec {
	return &Codec{r: rw, w: rw, maxFrameLen: maxFrameLen}
}

// WriteFrame encodes and writes f as 4-byte length + 1-byte tag + payload.
func (c *Codec) WriteFrame(f Frame) error {
	payload, err := encodePayload(f)
	if err != nil {
		return err
	}
	length := uint32(1 + len(payload))
	header := make([]byte, 4+1)
	binary.BigEndian.PutUint32(header[:4], length)
	header[4] = byte(f.Tag)
	if _, err := c.w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := c.w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame blocks for the next complete frame, or returns an error if
// the stream ends, a read fails, or the declared length exceeds
// maxFrameLen.
func (c *Codec) ReadFrame() (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return Frame{}, fmt.Errorf("%w: zero-length frame", ErrProtocol)
	}
	if length > c.maxFrameLen {
		return Frame{}, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return Frame{}, err
	}

	tag := Tag(body[0])
	payload := body[1:]

	switch tag {
	case TagPing:
		return Ping(), nil
	case TagPong:
		return Pong(), nil
	case TagUser:
		return Frame{Tag: TagUser, User: payload}, nil
	case TagHello:
		hello, err := decodeHello(payload)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Tag: TagHello, Hello: hello}, nil
	default:
		return Frame{}, fmt.Errorf("%w: unrecognized tag 0x%02x", ErrProtocol, byte(tag))
	}
}

func encodePayload(f Frame) ([]byte, error) {
	switch f.Tag {
	case TagPing, TagPong:
		return nil, nil
	case TagUser:
		return f.User, nil
	case TagHello:
		return encodeHello(f.Hello)
	default:
		return nil, fmt.Errorf("%w: cannot encode tag 0x%02x", ErrProtocol, byte(f.Tag))
	}
}

func encodeHello(h Hello) ([]byte, error) {
	nameBytes := []byte(h.Name)
	addrBytes, err := encodeAddr(h.BroadcastAddress)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 2+2+len(nameBytes)+helloAddrLen+2+len(h.Cookie))
	buf = appendU16(buf, h.Version)
	buf = appendU16(buf, uint16(len(nameBytes)))
	buf = append(buf, nameBytes...)
	buf = append(buf, addrBytes...)
	buf = appendU16(buf, uint16(len(h.Cookie)))
	buf = append(buf, h.Cookie...)
	return buf, nil
}

func decodeHello(b []byte) (Hello, error) {
	if len(b) < 4 {
		return Hello{}, fmt.Errorf("%w: hello frame truncated", ErrProtocol)
	}
	version := binary.BigEndian.Uint16(b[0:2])
	nameLen := int(binary.BigEndian.Uint16(b[2:4]))
	b = b[4:]
	if len(b) < nameLen+helloAddrLen+2 {
		return Hello{}, fmt.Errorf("%w: hello frame truncated", ErrProtocol)
	}
	name := string(b[:nameLen])
	if name == "" {
		return Hello{}, fmt.Errorf("%w: hello with empty name", ErrProtocol)
	}
	b = b[nameLen:]

	addr, err := decodeAddr(b[:helloAddrLen])
	if err != nil {
		return Hello{}, err
	}
	b = b[helloAddrLen:]

	cookieLen := int(binary.BigEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < cookieLen {
		return Hello{}, fmt.Errorf("%w: hello frame truncated", ErrProtocol)
	}
	cookie := append([]byte(nil), b[:cookieLen]...)

	return Hello{Name: name, BroadcastAddress: addr, Cookie: cookie, Version: version}, nil
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// encodeAddr packs a net.Addr into the fixed 19-byte layout: 1 family
// (4 or 6), 16 address bytes (IPv4 left-padded with zero), 2 port.
func encodeAddr(addr net.Addr) ([]byte, error) {
	buf := make([]byte, helloAddrLen)
	if addr == nil {
		return buf, nil
	}
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported address type %T", ErrProtocol, addr)
	}
	ip4 := tcp.IP.To4()
	if ip4 != nil {
		buf[0] = 4
		copy(buf[1+12:1+16], ip4)
	} else {
		buf[0] = 6
		copy(buf[1:1+16], tcp.IP.To16())
	}
	binary.BigEndian.PutUint16(buf[17:19], uint16(tcp.Port))
	return buf, nil
}

func decodeAddr(b []byte) (net.Addr, error) {
	if len(b) != helloAddrLen {
		return nil, fmt.Errorf("%w: malformed address", ErrProtocol)
	}
	family := b[0]
	port := int(binary.BigEndian.Uint16(b[17:19]))
	switch family {
	case 4:
		ip := net.IPv4(b[1+12], b[1+13], b[1+14], b[1+15])
		return &net.TCPAddr{IP: ip, Port: port}, nil
	case 6:
		ip := append(net.IP(nil), b[1:17]...)
		return &net.TCPAddr{IP: ip, Port: port}, nil
	default:
		return nil, fmt.Errorf("%w: unknown address family %d", ErrProtocol, family)
	}
}
