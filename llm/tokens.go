package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings maps model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// Tokenizer counts tokens with the encoding appropriate for a model.
// The encoding is initialized on first use because tiktoken may need to
// load its BPE data.
type Tokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTokenizer creates a tokenizer for the given model, matching by exact
// name then by prefix, defaulting to cl100k_base.
func NewTokenizer(model string) *Tokenizer {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, e := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				encoding, ok = e, true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}
	return &Tokenizer{encoding: encoding}
}

func (t *Tokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens returns the token count of a single text.
func (t *Tokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// CountMessages returns the token count of a message list including the
// per-message framing overhead of the chat format.
func (t *Tokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := 3 // conversation-end overhead
	for _, msg := range messages {
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	return total, nil
}

// MessageCounter counts the tokens of a message list.
type MessageCounter interface {
	CountMessages(messages []Message) (int, error)
}

// BoundMessages trims a conversation to fit within maxTokens. System
// messages are always kept; the oldest non-system messages are dropped
// first. When even the kept messages exceed the budget the trimmed list is
// returned anyway, since dropping the system prompt or the final user turn
// would change the request's meaning.
func BoundMessages(counter MessageCounter, messages []Message, maxTokens int) ([]Message, error) {
	if maxTokens <= 0 {
		return messages, nil
	}
	total, err := counter.CountMessages(messages)
	if err != nil {
		return nil, err
	}
	if total <= maxTokens {
		return messages, nil
	}

	kept := append([]Message(nil), messages...)
	for total > maxTokens {
		dropped := false
		for i, msg := range kept {
			if msg.Role == RoleSystem || i == len(kept)-1 {
				continue
			}
			kept = append(kept[:i], kept[i+1:]...)
			dropped = true
			break
		}
		if !dropped {
			break
		}
		total, err = counter.CountMessages(kept)
		if err != nil {
			return nil, err
		}
	}
	return kept, nil
}
