package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, ctx
}

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("no message within 1s")
	}
	return Message{}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPublish_FansOut(t *testing.T) {
	h, ctx := startHub(t)

	a, cancelA := h.Subscribe(ctx, 4)
	defer cancelA()
	b, cancelB := h.Subscribe(ctx, 4)
	defer cancelB()

	waitClients(t, h, 2)

	sample := map[string]float64{"pupil_diameter": 31.25, "timecode": 0}
	if err := h.Publish(KindSample, sample); err != nil {
		t.Fatal(err)
	}

	for _, ch := range []<-chan Message{a, b} {
		var env struct {
			Kind string             `json:"kind"`
			Data map[string]float64 `json:"data"`
		}
		if err := json.Unmarshal(recv(t, ch).Data, &env); err != nil {
			t.Fatal(err)
		}
		if env.Kind != KindSample || env.Data["pupil_diameter"] != 31.25 {
			t.Errorf("unexpected envelope %+v", env)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	h, ctx := startHub(t)

	ch, cancel := h.Subscribe(ctx, 1)
	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	if h.ClientCount() != 0 {
		t.Errorf("clients = %d, want 0", h.ClientCount())
	}
}

func TestSlowClientDropped(t *testing.T) {
	h, ctx := startHub(t)

	slow, cancel := h.Subscribe(ctx, 1)
	defer cancel()

	for i := 0; i < 3; i++ {
		h.Publish(KindTrack, i)
	}

	waitClients(t, h, 0)

	// The buffered message is still delivered before the close.
	if _, ok := <-slow; !ok {
		t.Error("Expected the first message before close")
	}
	if _, ok := <-slow; ok {
		t.Error("Expected channel closed after drop")
	}
}

func TestRun_ClosesClientsOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("stop", nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	ch, _ := h.Subscribe(ctx, 1)
	if !h.IsRunning() {
		t.Error("Expected hub running")
	}
	cancel()
	<-done

	if _, ok := <-ch; ok {
		t.Error("Expected client channel closed on stop")
	}
	if h.IsRunning() {
		t.Error("Expected hub stopped")
	}
}

func TestNewMessage_Error(t *testing.T) {
	if _, err := NewMessage(KindState, make(chan int)); err == nil {
		t.Error("Expected encode error")
	}
}

func TestJoinLeave_AfterRunReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := &Client{hub: h, send: make(chan Message, 1)}
	if !h.join(c) {
		t.Fatal("join failed while running")
	}
	waitClients(t, h, 1)

	cancel()
	<-done

	if _, ok := <-c.send; ok {
		t.Error("Expected send closed when the hub stopped")
	}

	returned := make(chan struct{})
	go func() {
		h.leave(c)

		late := &Client{hub: h, send: make(chan Message, 1)}
		if h.join(late) {
			t.Error("join succeeded on a stopped hub")
		}
		if _, ok := <-late.send; ok {
			t.Error("Expected late client's send closed")
		}

		ch, unsubscribe := h.Subscribe(context.Background(), 1)
		if _, ok := <-ch; ok {
			t.Error("Expected closed subscription on a stopped hub")
		}
		unsubscribe()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("join/leave blocked after Run returned")
	}
}

func TestCoalesce(t *testing.T) {
	msg := func(kind, data string) Message { return Message{Kind: kind, Data: []byte(data)} }

	tests := []struct {
		name  string
		batch []Message
		want  []string
	}{
		{"empty", nil, nil},
		{"samples kept", []Message{msg(KindSample, "s0"), msg(KindSample, "s1")}, []string{"s0", "s1"}},
		{"latest track wins", []Message{msg(KindTrack, "t0"), msg(KindTrack, "t1"), msg(KindTrack, "t2")}, []string{"t2"}},
		{"mixed keeps order", []Message{
			msg(KindTrack, "t0"), msg(KindSample, "s0"), msg(KindTrack, "t1"),
			msg(KindState, "tracking"), msg(KindSample, "s1"),
		}, []string{"s0", "t1", "tracking", "s1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := coalesce(tc.batch)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d messages, want %d", len(got), len(tc.want))
			}
			for i, m := range got {
				if string(m.Data) != tc.want[i] {
					t.Errorf("message %d = %q, want %q", i, m.Data, tc.want[i])
				}
			}
		})
	}
}

func TestNewMessage_Kind(t *testing.T) {
	m, err := NewMessage(KindTrack, map[string]int{"x": 1})
	if err != nil {
		t.Fatal(err)
	}
	if m.Kind != KindTrack {
		t.Errorf("kind = %q", m.Kind)
	}
}
