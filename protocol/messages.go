package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/spacepatch/spacepatch/wm"
)

var (
	errStringTooLong = errors.New("protocol: string exceeds 64KB limit")
	errPayloadShort  = errors.New("protocol: payload too short")
)

// WindowFlags packs the manager's cached per-window booleans into one
// byte, shared by event frames and SetFlags requests.
type WindowFlags uint8

const (
	FlagFullscreen WindowFlags = 1 << iota
	FlagMovable
	FlagResizable
	FlagManaged
	FlagSpaceFullscreen
)

// Result status codes.
const (
	StatusOK            uint16 = 0
	StatusUnknownWindow uint16 = 1
	StatusNoPlacement   uint16 = 2
	StatusDenied        uint16 = 3
)

// Hello initiates the handshake from client to window manager.
type Hello struct {
	ClientName   string
	Capabilities uint32
}

// Welcome is returned by the manager acknowledging the handshake.
type Welcome struct {
	ServerName string
}

// Subscribe selects which window signals the manager should deliver.
// Kinds is a bitmask with bit n set for wm.EventKind n.
type Subscribe struct {
	Kinds uint32
}

// SetFlags asks the manager to set and clear capability flags on a
// window. Set is applied before Clear.
type SetFlags struct {
	Window uint32
	Set    WindowFlags
	Clear  WindowFlags
}

// Place asks the tiling engine for a placement of the window on the
// given space.
type Place struct {
	Window uint32
	Space  uint32
}

// Register inserts the window into the manager's managed set under the
// placement identified by View.
type Register struct {
	Window uint32
	View   uint64
}

// Result answers a SetFlags, Place or Register request. View is only
// meaningful for Place replies with StatusOK.
type Result struct {
	Status uint16
	View   uint64
	Detail string
}

// Ping/Pong keep the connection alive and double as a health probe.
type Ping struct {
	Timestamp int64
}

type Pong struct {
	Timestamp int64
}

// EventMask builds a Subscribe bitmask from event kinds.
func EventMask(kinds ...wm.EventKind) uint32 {
	var mask uint32
	for _, k := range kinds {
		mask |= 1 << uint32(k)
	}
	return mask
}

func encodeString(buf *bytes.Buffer, value string) error {
	if len(value) > 0xFFFF {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		if _, err := buf.WriteString(value); err != nil {
			return err
		}
	}
	return nil
}

func decodeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errPayloadShort
	}
	length := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if uint16(len(b)) < length {
		return "", nil, errPayloadShort
	}
	return string(b[:length]), b[length:], nil
}

func EncodeHello(h Hello) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8+len(h.ClientName)))
	if err := encodeString(buf, h.ClientName); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.Capabilities); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	name, rest, err := decodeString(b)
	if err != nil {
		return h, err
	}
	h.ClientName = name
	if len(rest) < 4 {
		return h, errPayloadShort
	}
	h.Capabilities = binary.LittleEndian.Uint32(rest[:4])
	return h, nil
}

func EncodeWelcome(w Welcome) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 2+len(w.ServerName)))
	if err := encodeString(buf, w.ServerName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWelcome(b []byte) (Welcome, error) {
	var w Welcome
	name, _, err := decodeString(b)
	if err != nil {
		return w, err
	}
	w.ServerName = name
	return w, nil
}

func EncodeSubscribe(s Subscribe) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4))
	if err := binary.Write(buf, binary.LittleEndian, s.Kinds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSubscribe(b []byte) (Subscribe, error) {
	var s Subscribe
	if len(b) < 4 {
		return s, errPayloadShort
	}
	s.Kinds = binary.LittleEndian.Uint32(b[:4])
	return s, nil
}

// EncodeWindowEvent flattens a wm.Event into a frame payload.
func EncodeWindowEvent(ev wm.Event) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 12+len(ev.App)))
	buf.WriteByte(byte(ev.Kind))
	buf.WriteByte(byte(PackWindowFlags(ev)))
	if err := binary.Write(buf, binary.LittleEndian, uint32(ev.Window)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(ev.Space)); err != nil {
		return nil, err
	}
	if err := encodeString(buf, ev.App); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWindowEvent(b []byte) (wm.Event, error) {
	var ev wm.Event
	if len(b) < 10 {
		return ev, errPayloadShort
	}
	ev.Kind = wm.EventKind(b[0])
	flags := WindowFlags(b[1])
	ev.Window = wm.WindowID(binary.LittleEndian.Uint32(b[2:6]))
	ev.Space = wm.SpaceID(binary.LittleEndian.Uint32(b[6:10]))
	app, _, err := decodeString(b[10:])
	if err != nil {
		return ev, err
	}
	ev.App = app
	ev.Fullscreen = flags&FlagFullscreen != 0
	ev.Movable = flags&FlagMovable != 0
	ev.Resizable = flags&FlagResizable != 0
	ev.Managed = flags&FlagManaged != 0
	ev.SpaceFullscreen = flags&FlagSpaceFullscreen != 0
	return ev, nil
}

// PackWindowFlags collapses the boolean fields of a wm.Event into the
// wire representation.
func PackWindowFlags(ev wm.Event) WindowFlags {
	var flags WindowFlags
	if ev.Fullscreen {
		flags |= FlagFullscreen
	}
	if ev.Movable {
		flags |= FlagMovable
	}
	if ev.Resizable {
		flags |= FlagResizable
	}
	if ev.Managed {
		flags |= FlagManaged
	}
	if ev.SpaceFullscreen {
		flags |= FlagSpaceFullscreen
	}
	return flags
}

func EncodeSetFlags(s SetFlags) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 6))
	if err := binary.Write(buf, binary.LittleEndian, s.Window); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(s.Set))
	buf.WriteByte(byte(s.Clear))
	return buf.Bytes(), nil
}

func DecodeSetFlags(b []byte) (SetFlags, error) {
	var s SetFlags
	if len(b) < 6 {
		return s, errPayloadShort
	}
	s.Window = binary.LittleEndian.Uint32(b[:4])
	s.Set = WindowFlags(b[4])
	s.Clear = WindowFlags(b[5])
	return s, nil
}

func EncodePlace(p Place) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8))
	if err := binary.Write(buf, binary.LittleEndian, p.Window); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, p.Space); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodePlace(b []byte) (Place, error) {
	var p Place
	if len(b) < 8 {
		return p, errPayloadShort
	}
	p.Window = binary.LittleEndian.Uint32(b[:4])
	p.Space = binary.LittleEndian.Uint32(b[4:8])
	return p, nil
}

func EncodeRegister(r Register) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 12))
	if err := binary.Write(buf, binary.LittleEndian, r.Window); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, r.View); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRegister(b []byte) (Register, error) {
	var r Register
	if len(b) < 12 {
		return r, errPayloadShort
	}
	r.Window = binary.LittleEndian.Uint32(b[:4])
	r.View = binary.LittleEndian.Uint64(b[4:12])
	return r, nil
}

func EncodeResult(r Result) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 12+len(r.Detail)))
	if err := binary.Write(buf, binary.LittleEndian, r.Status); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, r.View); err != nil {
		return nil, err
	}
	if err := encodeString(buf, r.Detail); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeResult(b []byte) (Result, error) {
	var r Result
	if len(b) < 10 {
		return r, errPayloadShort
	}
	r.Status = binary.LittleEndian.Uint16(b[:2])
	r.View = binary.LittleEndian.Uint64(b[2:10])
	detail, _, err := decodeString(b[10:])
	if err != nil {
		return r, err
	}
	r.Detail = detail
	return r, nil
}

func EncodePing(p Ping) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8))
	if err := binary.Write(buf, binary.LittleEndian, p.Timestamp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodePing(b []byte) (Ping, error) {
	var p Ping
	if len(b) < 8 {
		return p, errPayloadShort
	}
	p.Timestamp = int64(binary.LittleEndian.Uint64(b[:8]))
	return p, nil
}

func EncodePong(p Pong) ([]byte, error) {
	return EncodePing(Ping{Timestamp: p.Timestamp})
}

func DecodePong(b []byte) (Pong, error) {
	ping, err := DecodePing(b)
	if err != nil {
		return Pong{}, err
	}
	return Pong{Timestamp: ping.Timestamp}, nil
}
