package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Request asks the toolbox to solve one problem. Requests arrive on
// <prefix>/requests; the Response goes to <prefix>/responses/<requestId>.
type Request struct {
	RequestID string          `json:"requestId"`
	TypeID    string          `json:"typeId"`
	SolverID  string          `json:"solverId,omitempty"`
	Input     json.RawMessage `json:"input"`
}

// Response reports the outcome of a Request.
type Response struct {
	RequestID string      `json:"requestId"`
	ProblemID string      `json:"problemId,omitempty"`
	Solution  interface{} `json:"solution,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// RequestHandler solves a request.
type RequestHandler func(ctx context.Context, req Request) Response

type requestClient interface {
	publishClient
	Subscribe(topic string, handler paho.MessageHandler) error
}

// RequestSubscriber serves solve requests received over MQTT.
type RequestSubscriber struct {
	client requestClient
	prefix string
	handle RequestHandler
	logger *slog.Logger

	mu         sync.Mutex
	ctx        context.Context
	subscribed bool
	inflight   sync.WaitGroup
}

// NewRequestSubscriber creates a subscriber; Start begins serving.
func NewRequestSubscriber(client requestClient, prefix string, handle RequestHandler, logger *slog.Logger) *RequestSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestSubscriber{
		client: client,
		prefix: prefix,
		handle: handle,
		logger: logger,
	}
}

// RequestTopic is the topic requests are read from.
func RequestTopic(prefix string) string {
	return prefix + "/requests"
}

// ResponseTopic is the topic the response to requestID is written to.
func ResponseTopic(prefix, requestID string) string {
	return prefix + "/responses/" + requestID
}

// Start subscribes to the request topic. Requests are solved with ctx;
// calling Start again is a no-op.
func (s *RequestSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return nil
	}
	s.ctx = ctx
	if err := s.client.Subscribe(RequestTopic(s.prefix), s.onMessage); err != nil {
		return err
	}
	s.subscribed = true
	return nil
}

// Wait blocks until all accepted requests are answered.
func (s *RequestSubscriber) Wait() {
	s.inflight.Wait()
}

func (s *RequestSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	var req Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil || req.RequestID == "" {
		s.logger.Warn("mqtt request rejected", slog.String("topic", msg.Topic()))
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	// paho delivers messages in order on one goroutine; solving must not block it.
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		resp := s.handle(ctx, req)
		resp.RequestID = req.RequestID
		s.respond(resp)
	}()
}

func (s *RequestSubscriber) respond(resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mqtt response encoding failed", slog.String("request_id", resp.RequestID), slog.String("error", err.Error()))
		return
	}
	if err := s.client.Publish(ResponseTopic(s.prefix, resp.RequestID), payload); err != nil {
		s.logger.Warn("mqtt response publish failed", slog.String("request_id", resp.RequestID), slog.String("error", err.Error()))
	}
}
