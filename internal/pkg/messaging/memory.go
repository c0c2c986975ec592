package messaging

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process broker. Every consumer group subscribed to a topic
// receives each message once; consumers inside a group share the load
// round-robin. Messages published while no group listens are dropped.
type Memory struct {
	buffer int

	mu     sync.RWMutex
	topics map[string]map[string]*memoryGroup
	closed bool
	done   chan struct{}
	seq    atomic.Uint64
}

type memoryGroup struct {
	next  atomic.Uint64
	mu    sync.RWMutex
	chans []chan *memoryMessage
}

// NewMemory returns an in-process broker whose per-consumer queues hold buffer messages.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{
		buffer: buffer,
		topics: map[string]map[string]*memoryGroup{},
		done:   make(chan struct{}),
	}
}

// Close stops all consumers.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Publish hands msg to one consumer of every group on topic, blocking while
// a consumer queue is full.
func (m *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if topic == "" {
		return PublishResult{}, ErrTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	groups := make([]*memoryGroup, 0, len(m.topics[topic]))
	for _, g := range m.topics[topic] {
		groups = append(groups, g)
	}
	m.mu.RUnlock()

	res := PublishResult{
		MessageID: strconv.FormatUint(m.seq.Add(1), 10),
		Topic:     topic,
		Timestamp: time.Now(),
	}

	for _, g := range groups {
		ch := g.pick()
		if ch == nil {
			continue
		}
		delivered := &memoryMessage{
			topic:   topic,
			body:    append([]byte(nil), msg.Body...),
			key:     append([]byte(nil), msg.Key...),
			headers: append([]Header(nil), msg.Headers...),
			at:      res.Timestamp,
		}
		select {
		case ch <- delivered:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-m.done:
			return PublishResult{}, io.ErrClosedPipe
		}
	}

	return res, nil
}

// Consume registers a consumer in the group named by WithGroup (the empty
// group is valid) and blocks until ctx is done or the broker is closed.
func (m *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, topic, handler); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)

	ch := make(chan *memoryMessage, m.buffer)
	if err := m.subscribe(topic, co.group, ch); err != nil {
		return err
	}
	defer m.unsubscribe(topic, co.group, ch)

	work := make(chan *memoryMessage)
	wg := startWorkers(co.concurrency, work, func(msg *memoryMessage) {
		_ = deliver(ctx, "memory", handler, msg, co.autoAck)
	})
	defer func() {
		close(work)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case msg := <-ch:
			select {
			case work <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (m *Memory) subscribe(topic, group string, ch chan *memoryMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	groups, ok := m.topics[topic]
	if !ok {
		groups = map[string]*memoryGroup{}
		m.topics[topic] = groups
	}
	g, ok := groups[group]
	if !ok {
		g = &memoryGroup{}
		groups[group] = g
	}

	g.mu.Lock()
	g.chans = append(g.chans, ch)
	g.mu.Unlock()
	return nil
}

func (m *Memory) unsubscribe(topic, group string, ch chan *memoryMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.topics[topic][group]
	if !ok {
		return
	}

	g.mu.Lock()
	for i, c := range g.chans {
		if c == ch {
			g.chans = append(g.chans[:i], g.chans[i+1:]...)
			break
		}
	}
	empty := len(g.chans) == 0
	g.mu.Unlock()

	if empty {
		delete(m.topics[topic], group)
	}
}

func (g *memoryGroup) pick() chan *memoryMessage {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.chans) == 0 {
		return nil
	}
	return g.chans[(g.next.Add(1)-1)%uint64(len(g.chans))]
}

type memoryMessage struct {
	responder
	topic   string
	body    []byte
	key     []byte
	headers []Header
	at      time.Time
}

func (m *memoryMessage) Body() []byte         { return m.body }
func (m *memoryMessage) Key() []byte          { return m.key }
func (m *memoryMessage) Headers() []Header    { return m.headers }
func (m *memoryMessage) Topic() string        { return m.topic }
func (m *memoryMessage) Timestamp() time.Time { return m.at }

func (m *memoryMessage) Ack(ctx context.Context) error {
	m.claim()
	return ctx.Err()
}

// Nack drops the message; the memory broker does not redeliver.
func (m *memoryMessage) Nack(ctx context.Context) error {
	m.claim()
	return ctx.Err()
}
