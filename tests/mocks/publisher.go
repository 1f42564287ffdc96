package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	sharedBus "github.com/davicafu/orderrouter/internal/shared/infra/platform/bus"
)

// MockPublisher simula un publisher
type MockPublisher struct {
	mock.Mock
}

var _ sharedBus.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg sharedBus.Message) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

// RecordingPublisher guarda cada mensaje publicado por topic.
type RecordingPublisher struct {
	mu       sync.Mutex
	Messages map[string][]sharedBus.Message
}

var _ sharedBus.Publisher = (*RecordingPublisher)(nil)

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{Messages: make(map[string][]sharedBus.Message)}
}

func (p *RecordingPublisher) Publish(ctx context.Context, topic string, msg sharedBus.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg.Topic = topic
	p.Messages[topic] = append(p.Messages[topic], msg)
	return nil
}

func (p *RecordingPublisher) On(topic string) []sharedBus.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sharedBus.Message(nil), p.Messages[topic]...)
}

// Total cuenta los mensajes publicados en todos los topics.
func (p *RecordingPublisher) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, msgs := range p.Messages {
		n += len(msgs)
	}
	return n
}
