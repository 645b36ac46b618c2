package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MemoryBackend is an in-process broker. Every subscriber of a channel gets
// every message published after it subscribed.
type MemoryBackend struct {
	mu     sync.Mutex
	seq    int
	subs   map[string][]chan Message
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subs: make(map[string][]chan Message)}
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", errors.New("memory backend closed")
	}
	b.seq++
	msg := Message{ID: strconv.Itoa(b.seq), Data: append([]byte(nil), data...), Attributes: attrs}
	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return msg.ID, nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ch := make(chan Message, 64)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("memory backend closed")
	}
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	defer b.unsubscribe(channel, ch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (b *MemoryBackend) unsubscribe(channel string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[channel]
	for i, c := range subs {
		if c == ch {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
