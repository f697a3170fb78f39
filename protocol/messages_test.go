// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages_test.go
// Summary: Exercises payload codecs for the window-manager and control messages.
// Usage: Executed during `go test` to guard against regressions.
// Notes: Keep changes backward-compatible; any additions require coordinated version bumps.

package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/spacepatch/spacepatch/wm"
)

func TestHelloRoundTrip(t *testing.T) {
	hello := Hello{ClientName: "spacepatch", Capabilities: 0x05}
	payload, err := EncodeHello(hello)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeHello(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != hello {
		t.Fatalf("mismatch: %#v vs %#v", decoded, hello)
	}
}

func TestWindowEventRoundTrip(t *testing.T) {
	ev := wm.Event{
		Kind:            wm.EventWindowMoved,
		Window:          23,
		Space:           2,
		SpaceFullscreen: false,
		Fullscreen:      false,
		Movable:         false,
		Resizable:       true,
		Managed:         false,
		App:             "org.mozilla.firefox",
	}
	payload, err := EncodeWindowEvent(ev)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeWindowEvent(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != ev {
		t.Fatalf("mismatch: %#v vs %#v", decoded, ev)
	}
}

func TestWindowEventShortPayload(t *testing.T) {
	if _, err := DecodeWindowEvent([]byte{0x01, 0x02, 0x03}); !errors.Is(err, errPayloadShort) {
		t.Fatalf("expected errPayloadShort, got %v", err)
	}
}

func TestSetFlagsRoundTrip(t *testing.T) {
	req := SetFlags{Window: 23, Set: FlagMovable | FlagResizable, Clear: FlagFullscreen}
	payload, err := EncodeSetFlags(req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeSetFlags(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != req {
		t.Fatalf("mismatch: %#v vs %#v", decoded, req)
	}
}

func TestResultRoundTrip(t *testing.T) {
	res := Result{Status: StatusNoPlacement, View: 0, Detail: "space has no layout"}
	payload, err := EncodeResult(res)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeResult(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != res {
		t.Fatalf("mismatch: %#v vs %#v", decoded, res)
	}
}

func TestEncodeStringTooLong(t *testing.T) {
	res := Result{Status: StatusOK, Detail: strings.Repeat("x", 0x10000)}
	if _, err := EncodeResult(res); !errors.Is(err, errStringTooLong) {
		t.Fatalf("expected errStringTooLong, got %v", err)
	}
}

func TestEventMask(t *testing.T) {
	mask := EventMask(wm.EventWindowResized, wm.EventWindowMoved)
	if mask&(1<<uint32(wm.EventWindowResized)) == 0 || mask&(1<<uint32(wm.EventWindowMoved)) == 0 {
		t.Fatalf("mask missing subscribed kinds: %b", mask)
	}
	if mask&(1<<uint32(wm.EventWindowFocused)) != 0 {
		t.Fatalf("mask includes unsubscribed kind: %b", mask)
	}
}

func TestStatusReplyRoundTrip(t *testing.T) {
	reply := StatusReply{
		RunID:       "1f0c8a4e-4b8e-4d7e-9e1a-0a1b2c3d4e5f",
		TargetApp:   "org.mozilla.firefox",
		StartedAt:   1700000000000000000,
		WMConnected: true,
		Events:      120,
		Tracked:     4,
		Repaired:    3,
		Deferred:    1,
		Evicted:     0,
		Pending: []TrackedEntry{
			{Window: 23, Space: 2, TrackedAt: 1700000001000000000},
			{Window: 31, Space: 0, TrackedAt: 1700000002000000000},
		},
		Managed: []ManagedEntry{
			{Window: 19, View: 7},
		},
	}
	payload, err := EncodeStatusReply(reply)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeStatusReply(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.RunID != reply.RunID || decoded.TargetApp != reply.TargetApp || !decoded.WMConnected {
		t.Fatalf("identity fields mismatch: %#v", decoded)
	}
	if decoded.Repaired != reply.Repaired || decoded.Deferred != reply.Deferred {
		t.Fatalf("counter mismatch: %#v", decoded)
	}
	if len(decoded.Pending) != 2 || decoded.Pending[0] != reply.Pending[0] || decoded.Pending[1] != reply.Pending[1] {
		t.Fatalf("pending mismatch: %#v", decoded.Pending)
	}
	if len(decoded.Managed) != 1 || decoded.Managed[0] != reply.Managed[0] {
		t.Fatalf("managed mismatch: %#v", decoded.Managed)
	}
}

func TestStatusReplyTruncated(t *testing.T) {
	reply := StatusReply{RunID: "run", TargetApp: "app", Pending: []TrackedEntry{{Window: 1, Space: 2}}}
	payload, err := EncodeStatusReply(reply)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := DecodeStatusReply(payload[:len(payload)-4]); !errors.Is(err, errPayloadShort) {
		t.Fatalf("expected errPayloadShort, got %v", err)
	}
}

func TestCorrectionRecordRoundTrip(t *testing.T) {
	rec := CorrectionRecord{
		Kind:   "repaired",
		Window: 23,
		Space:  2,
		At:     1700000003000000000,
		App:    "org.mozilla.firefox",
		Detail: "view 7",
	}
	payload, err := EncodeCorrectionRecord(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeCorrectionRecord(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != rec {
		t.Fatalf("mismatch: %#v vs %#v", decoded, rec)
	}
}
