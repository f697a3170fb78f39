// Package protocol implements the framing spoken on both spacepatch
// sockets: the connection to the window manager and the local control
// socket. Frames are a fixed little-endian header followed by a typed
// payload, with an optional CRC32 over everything past the magic.
package protocol

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	magic      uint32 = 0x53505701 // "SPW\x01"
	headerSize        = 24

	// MaxPayload bounds a single frame. Status replies and event frames
	// stay far below this.
	MaxPayload = 1 << 20
)

// Flag bits for the header Flags byte.
const (
	FlagChecksum uint8 = 0x01
)

// Version is the protocol version implemented by this package.
const Version uint8 = 1

// MessageType enumerates the message categories exchanged over a
// spacepatch socket. The low range is the window-manager protocol, the
// 0x1x range the control protocol.
type MessageType uint8

const (
	MsgHello       MessageType = 0x01
	MsgWelcome     MessageType = 0x02
	MsgSubscribe   MessageType = 0x03
	MsgWindowEvent MessageType = 0x04
	MsgSetFlags    MessageType = 0x05
	MsgPlace       MessageType = 0x06
	MsgRegister    MessageType = 0x07
	MsgResult      MessageType = 0x08
	MsgPing        MessageType = 0x0E
	MsgPong        MessageType = 0x0F

	MsgStatusRequest    MessageType = 0x10
	MsgStatusReply      MessageType = 0x11
	MsgStreamSubscribe  MessageType = 0x12
	MsgCorrectionRecord MessageType = 0x13
	MsgShutdown         MessageType = 0x14
)

// Header describes the fixed portion of every frame. Sequence numbers
// correlate requests with their Result frames; event and stream frames
// carry the sender's own running sequence.
type Header struct {
	Version    uint8
	Type       MessageType
	Flags      uint8
	Reserved   uint8
	Sequence   uint64
	PayloadLen uint32
	Checksum   uint32
}

var (
	ErrInvalidMagic     = errors.New("protocol: invalid magic")
	ErrUnsupportedVer   = errors.New("protocol: unsupported version")
	ErrShortPayload     = errors.New("protocol: payload shorter than declared length")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds frame limit")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
)

// WriteMessage serialises the header and payload to the provided writer.
// The payload slice is written as-is; callers retain ownership.
func WriteMessage(w io.Writer, hdr Header, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	hdr.PayloadLen = uint32(len(payload))

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], magic)
	buf[4] = hdr.Version
	buf[5] = byte(hdr.Type)
	buf[6] = hdr.Flags
	buf[7] = hdr.Reserved
	binary.LittleEndian.PutUint64(buf[8:16], hdr.Sequence)
	binary.LittleEndian.PutUint32(buf[16:20], hdr.PayloadLen)

	checksum := hdr.Checksum
	if hdr.Flags&FlagChecksum != 0 {
		crc := crc32.NewIEEE()
		_, _ = crc.Write(buf[4:20])
		if len(payload) > 0 {
			_, _ = crc.Write(payload)
		}
		checksum = crc.Sum32()
	}
	binary.LittleEndian.PutUint32(buf[20:24], checksum)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads a header and payload from r. The returned payload is
// a freshly allocated slice sized to the declared payload length.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var hdr Header
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return hdr, nil, err
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return hdr, nil, ErrInvalidMagic
	}

	hdr.Version = buf[4]
	hdr.Type = MessageType(buf[5])
	hdr.Flags = buf[6]
	hdr.Reserved = buf[7]
	hdr.Sequence = binary.LittleEndian.Uint64(buf[8:16])
	hdr.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	hdr.Checksum = binary.LittleEndian.Uint32(buf[20:24])

	if hdr.Version != Version {
		return hdr, nil, ErrUnsupportedVer
	}
	if hdr.PayloadLen > MaxPayload {
		return hdr, nil, ErrPayloadTooLarge
	}

	payload := make([]byte, hdr.PayloadLen)
	if hdr.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return hdr, nil, ErrShortPayload
			}
			return hdr, nil, err
		}
	}

	if hdr.Flags&FlagChecksum != 0 {
		crc := crc32.NewIEEE()
		_, _ = crc.Write(buf[4:20])
		if len(payload) > 0 {
			_, _ = crc.Write(payload)
		}
		if crc.Sum32() != hdr.Checksum {
			return hdr, nil, ErrChecksumMismatch
		}
	}

	return hdr, payload, nil
}
