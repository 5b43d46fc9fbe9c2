package canvas

import (
	"sync"
	"time"
)

// ChatMessage is immutable once appended.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatBuffer keeps the most recent messages for a room. Once full, the
// oldest message is evicted on every append.
type ChatBuffer struct {
	mu       sync.RWMutex
	messages []ChatMessage
	capacity int
}

func NewChatBuffer(capacity int) *ChatBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &ChatBuffer{
		messages: make([]ChatMessage, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a message, evicting the oldest if at capacity.
func (b *ChatBuffer) Append(msg ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) >= b.capacity {
		b.messages = b.messages[1:]
	}
	b.messages = append(b.messages, msg)
}

// Tail returns up to n most recent messages, oldest first.
func (b *ChatBuffer) Tail(n int) []ChatMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.messages) {
		n = len(b.messages)
	}
	out := make([]ChatMessage, n)
	copy(out, b.messages[len(b.messages)-n:])
	return out
}

// Len reports how many messages are currently buffered.
func (b *ChatBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}
