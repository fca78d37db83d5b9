package mqttctl

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-kit/log"
	"github.com/jonas-koeritz/ov5640"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publications and keeps the control handler.
type fakeClient struct {
	mqtt.Client

	mu         sync.Mutex
	sent       []published
	handler    mqtt.MessageHandler
	subscribed chan string
	unsubbed   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: make(chan string, 1)}
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic, payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
	c.subscribed <- topic
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubbed = append(c.unsubbed, topics...)
	return doneToken{}
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.sent...)
}

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return qos }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

// memConn is a sensor that accepts every write and reads back zero.
type memConn struct{}

func (memConn) Tx(w, r []byte) error {
	for i := range r {
		r[i] = 0
	}
	return nil
}

func newDevice() *ov5640.Device {
	return ov5640.New(memConn{}, ov5640.WithSettleDelay(0), ov5640.WithLogger(log.NewNopLogger()))
}

func TestExecute(t *testing.T) {
	s := NewServer(newFakeClient(), newDevice(), "cam", log.NewNopLogger())
	ctx := context.Background()

	tests := []struct {
		req  request
		want resultMsg
	}{
		{request{"brightness", 5}, resultMsg{Op: "brightness", OK: true, Value: 5}},
		{request{"brightness", 9}, resultMsg{Op: "brightness", OK: true, Value: 3}},
		{request{"frame-size", 0}, resultMsg{Op: "frame-size", OK: true, Width: 640, Height: 480}},
		{request{"cancel-autofocus", 0}, resultMsg{Op: "cancel-autofocus", OK: true, Focus: "cancelled"}},
		{request{"autofocus", 1}, resultMsg{Op: "autofocus", OK: true, Focus: "failed"}},
		{request{"flash", 9}, resultMsg{Op: "flash", Error: "ov5640: invalid flash mode 9"}},
		{request{"zoom", 2}, resultMsg{Op: "zoom", Error: "ov5640: invalid control zoom"}},
	}
	for _, tt := range tests {
		if got := s.execute(ctx, tt.req); got != tt.want {
			t.Errorf("execute(%+v) = %+v, want %+v", tt.req, got, tt.want)
		}
	}
}

func TestServe(t *testing.T) {
	c := newFakeClient()
	s := NewServer(c, newDevice(), "cam", log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()

	if topic := <-c.subscribed; topic != "cam/control" {
		t.Fatalf("subscribed to %q", topic)
	}
	c.handler(c, message{"cam/control", []byte(`{"op":"capture"}`)})
	c.handler(c, message{"cam/control", []byte(`not json`)})

	waitForMessages(t, c, 4)
	cancel()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if len(c.unsubbed) != 1 || c.unsubbed[0] != "cam/control" {
		t.Errorf("unsubscribed %v", c.unsubbed)
	}

	msgs := c.messages()
	topics := make([]string, len(msgs))
	for i, m := range msgs {
		topics[i] = m.topic
	}
	want := []string{"cam/state", "cam/result", "cam/state", "cam/result"}
	if len(topics) != len(want) {
		t.Fatalf("published %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("published %v, want %v", topics, want)
			break
		}
	}

	var res resultMsg
	if err := json.Unmarshal(msgs[1].payload, &res); err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Width != 2592 || res.Height != 1944 {
		t.Errorf("capture result = %+v", res)
	}
	var st stateMsg
	if err := json.Unmarshal(msgs[0].payload, &st); err != nil {
		t.Fatal(err)
	}
	if st.FrameInterval != 33 || st.OneFrameDelay != 67 {
		t.Errorf("frame timing = %d/%d ms, want 33/67", st.FrameInterval, st.OneFrameDelay)
	}
	if err := json.Unmarshal(msgs[2].payload, &st); err != nil {
		t.Fatal(err)
	}
	if st.Mode != "capture" || !st.PendingCapture || st.Resolution != "capture" {
		t.Errorf("state after capture = %+v", st)
	}
	if err := json.Unmarshal(msgs[3].payload, &res); err != nil || res.OK || res.Error == "" {
		t.Errorf("bad request answered with %s", msgs[3].payload)
	}
}

func waitForMessages(t *testing.T, c *fakeClient, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(c.messages()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("published %d messages, want %d", len(c.messages()), n)
		}
		time.Sleep(time.Millisecond)
	}
}

// slowDevice holds every Apply until release is closed.
type slowDevice struct {
	*ov5640.Device
	started chan struct{}
	release chan struct{}
}

func (d *slowDevice) Apply(ctx context.Context, op ov5640.ControlOp) (ov5640.Result, error) {
	d.started <- struct{}{}
	<-d.release
	return d.Device.Apply(ctx, op)
}

func TestHandlerDoesNotWaitForOperation(t *testing.T) {
	c := newFakeClient()
	dev := &slowDevice{Device: newDevice(), started: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewServer(c, dev, "cam", log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()
	<-c.subscribed

	returned := make(chan struct{})
	go func() {
		c.handler(c, message{"cam/control", []byte(`{"op":"autofocus","value":1}`)})
		<-dev.started
		c.handler(c, message{"cam/control", []byte(`{"op":"brightness","value":4}`)})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("handler blocked behind a running operation")
	}

	close(dev.release)
	waitForMessages(t, c, 5)
	cancel()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	var res resultMsg
	if err := json.Unmarshal(c.messages()[3].payload, &res); err != nil {
		t.Fatal(err)
	}
	if res.Op != "brightness" || !res.OK || res.Value != 4 {
		t.Errorf("queued request answered with %+v", res)
	}
}

func TestFullQueueRejectsRequest(t *testing.T) {
	c := newFakeClient()
	s := NewServer(c, newDevice(), "cam", log.NewNopLogger())
	c.Subscribe("cam/control", qos, s.enqueue)
	<-c.subscribed

	for i := 0; i < queueLen; i++ {
		c.handler(c, message{"cam/control", []byte(`{"op":"frame-size"}`)})
	}
	if msgs := c.messages(); len(msgs) != 0 {
		t.Fatalf("queued requests published %d messages", len(msgs))
	}
	c.handler(c, message{"cam/control", []byte(`{"op":"frame-size"}`)})

	msgs := c.messages()
	if len(msgs) != 1 || msgs[0].topic != "cam/result" {
		t.Fatalf("overflow published %v", msgs)
	}
	var res resultMsg
	if err := json.Unmarshal(msgs[0].payload, &res); err != nil || res.OK || res.Error != "busy" {
		t.Errorf("overflow answered with %s", msgs[0].payload)
	}
	if len(s.requests) != queueLen {
		t.Errorf("%d requests queued, want %d", len(s.requests), queueLen)
	}
}
