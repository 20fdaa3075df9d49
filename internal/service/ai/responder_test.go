package ai

import (
	"context"
	"strings"
	"testing"
)

func TestStaticResponderNeverFails(t *testing.T) {
	r := NewStaticResponder()
	ctx := context.Background()

	inputs := []string{"hello", "my EC2 instance is down", "thanks", "I want a human agent", ""}
	for _, in := range inputs {
		reply, err := r.Reply(ctx, "s1", in)
		if err != nil {
			t.Fatalf("Reply(%q) err: %v", in, err)
		}
		if reply == "" {
			t.Fatalf("Reply(%q) returned empty text", in)
		}
	}
}

func TestStaticResponderGreets(t *testing.T) {
	r := NewStaticResponder()
	reply, _ := r.Reply(context.Background(), "s1", "Hello there")
	if !strings.Contains(reply, "Hello") {
		t.Fatalf("greeting reply = %q", reply)
	}
}
