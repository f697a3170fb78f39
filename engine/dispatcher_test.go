package engine

import "testing"

type countingListener struct {
	n int
}

func (c *countingListener) OnCorrection(CorrectionEvent) { c.n++ }

func TestDispatcherSubscribeUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	a := &countingListener{}
	b := &countingListener{}

	d.Subscribe(a)
	d.Subscribe(b)
	d.Broadcast(CorrectionEvent{Type: CorrectionTracked, Window: 1})

	if a.n != 1 || b.n != 1 {
		t.Fatalf("after first broadcast: a=%d b=%d; want 1 1", a.n, b.n)
	}

	d.Unsubscribe(a)
	d.Broadcast(CorrectionEvent{Type: CorrectionRepaired, Window: 1})

	if a.n != 1 {
		t.Fatalf("unsubscribed listener still receiving (n=%d)", a.n)
	}
	if b.n != 2 {
		t.Fatalf("remaining listener missed broadcast (n=%d)", b.n)
	}
}
