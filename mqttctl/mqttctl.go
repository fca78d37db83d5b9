// Package mqttctl exposes a sensor's control operations over MQTT.
//
// Requests arrive on <topic>/control as {"op": "brightness", "value": 4}.
// Every request is answered on <topic>/result and followed by a session
// snapshot on <topic>/state.
package mqttctl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jonas-koeritz/ov5640"
)

const (
	qos = 2

	// queueLen bounds the requests waiting behind a running operation.
	queueLen = 16
)

// Controller is the part of *ov5640.Device the server needs.
type Controller interface {
	Apply(ctx context.Context, op ov5640.ControlOp) (ov5640.Result, error)
	State() ov5640.State
}

// NewMQTTClient connects to broker, for example "tcp://localhost:1883".
func NewMQTTClient(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", broker, token.Error())
	}
	return c, nil
}

type Server struct {
	client   mqtt.Client
	dev      Controller
	topic    string
	logger   log.Logger
	requests chan []byte
}

func NewServer(client mqtt.Client, dev Controller, topic string, logger log.Logger) *Server {
	return &Server{
		client:   client,
		dev:      dev,
		topic:    topic,
		logger:   log.With(logger, "component", "mqttctl", "topic", topic),
		requests: make(chan []byte, queueLen),
	}
}

// Serve handles requests one at a time until ctx is done, then
// unsubscribes. Operations run on the calling goroutine, not in the MQTT
// client's message handler.
func (s *Server) Serve(ctx context.Context) error {
	if token := s.client.Subscribe(s.topic+"/control", qos, s.enqueue); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe: %w", token.Error())
	}
	level.Info(s.logger).Log("msg", "serving control requests")

	s.publishJsonMsg(s.topic+"/state", newStateMsg(s.dev.State()))

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case payload := <-s.requests:
			s.handle(ctx, payload)
		}
	}
	if token := s.client.Unsubscribe(s.topic + "/control"); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}
	return nil
}

func (s *Server) enqueue(_ mqtt.Client, msg mqtt.Message) {
	select {
	case s.requests <- msg.Payload():
	default:
		level.Warn(s.logger).Log("msg", "request queue full, dropping request")
		s.publishJsonMsg(s.topic+"/result", resultMsg{Error: "busy"})
	}
}

type request struct {
	Op    string `json:"op"`
	Value int    `json:"value"`
}

type resultMsg struct {
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Focus  string `json:"focus,omitempty"`
	Value  int    `json:"value"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type stateMsg struct {
	Mode           string `json:"mode"`
	Resolution     string `json:"resolution"`
	Brightness     int    `json:"brightness"`
	Focus          string `json:"focus"`
	FocusAvailable bool   `json:"focus_available"`
	FocusMode      string `json:"focus_mode"`
	Flash          string `json:"flash"`
	CaptureFlash   string `json:"capture_flash"`
	PendingCapture bool   `json:"pending_capture"`
	LastTimeout    string `json:"last_timeout,omitempty"`
	FrameInterval  int64  `json:"frame_interval_ms"`
	OneFrameDelay  int64  `json:"one_frame_delay_ms"`
}

func newStateMsg(st ov5640.State) stateMsg {
	msg := stateMsg{
		Mode:           st.Mode.String(),
		Resolution:     st.Resolution.String(),
		Brightness:     st.Brightness,
		Focus:          st.Focus.String(),
		FocusAvailable: st.FocusAvailable,
		FocusMode:      st.FocusMode.String(),
		Flash:          st.Flash.String(),
		CaptureFlash:   st.CaptureFlash.String(),
		PendingCapture: st.PendingCapture,
		FrameInterval:  st.FrameInterval.Milliseconds(),
		OneFrameDelay:  st.OneFrameDelay.Milliseconds(),
	}
	if st.LastTimeout != nil {
		msg.LastTimeout = st.LastTimeout.Error()
	}
	return msg
}

func (s *Server) handle(ctx context.Context, payload []byte) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		level.Warn(s.logger).Log("msg", "invalid request", "err", err)
		s.publishJsonMsg(s.topic+"/result", resultMsg{Error: "invalid request: " + err.Error()})
		return
	}

	s.publishJsonMsg(s.topic+"/result", s.execute(ctx, req))
	s.publishJsonMsg(s.topic+"/state", newStateMsg(s.dev.State()))
}

func (s *Server) execute(ctx context.Context, req request) resultMsg {
	msg := resultMsg{Op: req.Op}

	op, err := ov5640.ParseControl(req.Op, req.Value)
	if err != nil {
		msg.Error = err.Error()
		return msg
	}

	res, err := s.dev.Apply(ctx, op)
	msg.OK = err == nil
	if err != nil {
		msg.Error = err.Error()
	}
	switch op.(type) {
	case ov5640.Init, ov5640.StartAutoFocus, ov5640.CancelAutoFocus, ov5640.FocusResultQuery:
		msg.Focus = res.Focus.String()
	}
	msg.Value = res.Value
	msg.Width, msg.Height = res.Size.Width, res.Size.Height
	return msg
}

func (s *Server) publishJsonMsg(topic string, obj interface{}) {
	msg, err := json.Marshal(obj)
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to encode message", "err", err)
		return
	}
	s.client.Publish(topic, qos, false, msg)
}
