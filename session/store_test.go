package session

import (
	"testing"

	"github.com/modelcouncil/council/council"
)

func TestAppendAccumulatesMessagesAndTokens(t *testing.T) {
	s := NewStore()
	id := NewSessionID()

	s.Append(id, council.ConversationMessage{Role: "user", Content: "hello"}, 5)
	s.Append(id, council.ConversationMessage{Role: "assistant", Content: "hi there"}, 7)

	cc := s.Get(id)
	if len(cc.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(cc.Messages))
	}
	if cc.TotalTokens != 12 {
		t.Fatalf("expected 12 total tokens, got %d", cc.TotalTokens)
	}
}

func TestSummarizeReplacesHistory(t *testing.T) {
	s := NewStore()
	id := NewSessionID()
	s.Append(id, council.ConversationMessage{Role: "user", Content: "long conversation"}, 100)

	s.Summarize(id, "user asked about X, agreed on Y")

	cc := s.Get(id)
	if !cc.Summarized {
		t.Fatalf("expected Summarized true")
	}
	if len(cc.Messages) != 1 {
		t.Fatalf("expected exactly one summary message, got %d", len(cc.Messages))
	}
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	s := NewStore()
	id := NewSessionID()
	s.Append(id, council.ConversationMessage{Role: "user", Content: "hi"}, 1)

	s.Sweep(0) // everything is "older" than now
	cc := s.Get(id)
	if len(cc.Messages) != 0 {
		t.Fatalf("expected session swept, got %d messages still present", len(cc.Messages))
	}
}

func TestNewSessionIDIsUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	if a == b {
		t.Fatalf("expected distinct session ids")
	}
	if len(a) == 0 {
		t.Fatalf("expected non-empty session id")
	}
}
