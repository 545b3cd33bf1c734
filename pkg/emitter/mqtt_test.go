package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-pupil/internal/log"
	"github.com/teslashibe/go-pupil/pkg/session"
)

// fakeToken is an already-completed mqtt.Token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes. Methods not overridden panic via the nil
// embedded interface.
type fakeClient struct {
	mqtt.Client

	mu    sync.Mutex
	msgs  []published
	err   error
	disc  bool
	delay time.Duration
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	c.disc = true
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func connectedEmitter(cfg Config, client *fakeClient) *MQTTEmitter {
	e := NewMQTTEmitter(cfg, log.Discard())
	e.Client = client
	e.setConnected(true)
	return e
}

func TestTopic(t *testing.T) {
	e := NewMQTTEmitter(Config{TopicPrefix: "lab/eyes"}, log.Discard())
	if got := e.Topic("f1c2"); got != "lab/eyes/f1c2/samples" {
		t.Errorf("topic = %q", got)
	}
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	cfg := DefaultConfig()
	cfg.QoS = 1
	e := connectedEmitter(cfg, client)

	s := session.Sample{SessionID: "abc", Seq: 3, PupilDiameter: 31.25, BlinkProb: 0.012, Timecode: 300, Threshold: 0.5}
	if err := e.Publish(s); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].topic != "pupil/abc/samples" || msgs[0].qos != 1 {
		t.Errorf("topic=%q qos=%d", msgs[0].topic, msgs[0].qos)
	}
	var got session.Sample
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Errorf("payload = %+v, want %+v", got, s)
	}
	if e.Stats().Published["pupil/abc/samples"] != 1 {
		t.Errorf("stats = %+v", e.Stats())
	}
}

func TestPublish_NotConnected(t *testing.T) {
	e := NewMQTTEmitter(DefaultConfig(), log.Discard())
	if err := e.Publish(session.Sample{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if e.Stats().Errors != 1 {
		t.Errorf("errors = %d", e.Stats().Errors)
	}
}

func TestPublish_BrokerError(t *testing.T) {
	boom := errors.New("not authorized")
	e := connectedEmitter(DefaultConfig(), &fakeClient{err: boom})
	if err := e.Publish(session.Sample{SessionID: "x"}); !errors.Is(err, boom) {
		t.Errorf("Expected broker error, got %v", err)
	}
}

func TestOnSample_DrainsOnClose(t *testing.T) {
	client := &fakeClient{}
	e := connectedEmitter(DefaultConfig(), client)
	e.Start()

	for i := 0; i < 20; i++ {
		e.OnSample(session.Sample{SessionID: "s1", Seq: i})
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	msgs := client.messages()
	if len(msgs) != 20 {
		t.Fatalf("published %d, want 20", len(msgs))
	}
	for i, m := range msgs {
		var s session.Sample
		json.Unmarshal(m.payload, &s)
		if s.Seq != i {
			t.Errorf("message %d has seq %d", i, s.Seq)
		}
	}
	if !client.disc {
		t.Error("Expected disconnect on close")
	}

	// Closed emitters ignore further samples.
	e.OnSample(session.Sample{Seq: 99})
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestOnSample_DropsWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	e := connectedEmitter(cfg, &fakeClient{})

	// Not started: the queue fills up.
	for i := 0; i < 5; i++ {
		e.OnSample(session.Sample{Seq: i})
	}
	if got := e.Stats().Dropped; got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
	e.Close()
}

var _ session.SampleSink = (*MQTTEmitter)(nil)
