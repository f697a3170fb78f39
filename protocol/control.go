package protocol

import (
	"bytes"
	"encoding/binary"
)

// Control-socket payloads. StatusRequest, StreamSubscribe and Shutdown
// carry no payload; only their frame types exist.

// TrackedEntry is one in-flight fullscreen transition in a status reply.
// Space 0 marks an entry that was already resolved.
type TrackedEntry struct {
	Window    uint32
	Space     uint32
	TrackedAt int64 // UnixNano
}

// ManagedEntry is one window spacepatch re-registered with the manager.
type ManagedEntry struct {
	Window uint32
	View   uint64
}

// StatusReply describes the daemon to control clients.
type StatusReply struct {
	RunID       string
	TargetApp   string
	StartedAt   int64 // UnixNano
	WMConnected bool
	Events      uint64
	Tracked     uint64
	Repaired    uint64
	Deferred    uint64
	Evicted     uint64
	Pending     []TrackedEntry
	Managed     []ManagedEntry
}

// CorrectionRecord is one correction streamed to subscribed control
// clients, mirroring what the journal persists.
type CorrectionRecord struct {
	Kind   string
	Window uint32
	Space  uint32
	At     int64 // UnixNano
	App    string
	Detail string
}

func EncodeStatusReply(s StatusReply) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 64+len(s.RunID)+len(s.TargetApp)))
	if err := encodeString(buf, s.RunID); err != nil {
		return nil, err
	}
	if err := encodeString(buf, s.TargetApp); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, s.StartedAt); err != nil {
		return nil, err
	}
	if s.WMConnected {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	for _, v := range []uint64{s.Events, s.Tracked, s.Repaired, s.Deferred, s.Evicted} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(buf, binary.LittleEndian, uint16(len(s.Pending))); err != nil {
		return nil, err
	}
	for _, e := range s.Pending {
		if err := binary.Write(buf, binary.LittleEndian, e.Window); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, e.Space); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, e.TrackedAt); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(buf, binary.LittleEndian, uint16(len(s.Managed))); err != nil {
		return nil, err
	}
	for _, e := range s.Managed {
		if err := binary.Write(buf, binary.LittleEndian, e.Window); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, e.View); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeStatusReply(b []byte) (StatusReply, error) {
	var s StatusReply
	runID, rest, err := decodeString(b)
	if err != nil {
		return s, err
	}
	s.RunID = runID
	target, rest, err := decodeString(rest)
	if err != nil {
		return s, err
	}
	s.TargetApp = target

	if len(rest) < 9+5*8 {
		return s, errPayloadShort
	}
	s.StartedAt = int64(binary.LittleEndian.Uint64(rest[:8]))
	s.WMConnected = rest[8] != 0
	rest = rest[9:]
	for _, dst := range []*uint64{&s.Events, &s.Tracked, &s.Repaired, &s.Deferred, &s.Evicted} {
		*dst = binary.LittleEndian.Uint64(rest[:8])
		rest = rest[8:]
	}

	if len(rest) < 2 {
		return s, errPayloadShort
	}
	n := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < n*16 {
		return s, errPayloadShort
	}
	for i := 0; i < n; i++ {
		s.Pending = append(s.Pending, TrackedEntry{
			Window:    binary.LittleEndian.Uint32(rest[:4]),
			Space:     binary.LittleEndian.Uint32(rest[4:8]),
			TrackedAt: int64(binary.LittleEndian.Uint64(rest[8:16])),
		})
		rest = rest[16:]
	}

	if len(rest) < 2 {
		return s, errPayloadShort
	}
	n = int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < n*12 {
		return s, errPayloadShort
	}
	for i := 0; i < n; i++ {
		s.Managed = append(s.Managed, ManagedEntry{
			Window: binary.LittleEndian.Uint32(rest[:4]),
			View:   binary.LittleEndian.Uint64(rest[4:12]),
		})
		rest = rest[12:]
	}
	return s, nil
}

func EncodeCorrectionRecord(c CorrectionRecord) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 24+len(c.Kind)+len(c.App)+len(c.Detail)))
	if err := encodeString(buf, c.Kind); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, c.Window); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, c.Space); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, c.At); err != nil {
		return nil, err
	}
	if err := encodeString(buf, c.App); err != nil {
		return nil, err
	}
	if err := encodeString(buf, c.Detail); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCorrectionRecord(b []byte) (CorrectionRecord, error) {
	var c CorrectionRecord
	kind, rest, err := decodeString(b)
	if err != nil {
		return c, err
	}
	c.Kind = kind
	if len(rest) < 16 {
		return c, errPayloadShort
	}
	c.Window = binary.LittleEndian.Uint32(rest[:4])
	c.Space = binary.LittleEndian.Uint32(rest[4:8])
	c.At = int64(binary.LittleEndian.Uint64(rest[8:16]))
	app, rest, err := decodeString(rest[16:])
	if err != nil {
		return c, err
	}
	c.App = app
	detail, _, err := decodeString(rest)
	if err != nil {
		return c, err
	}
	c.Detail = detail
	return c, nil
}
