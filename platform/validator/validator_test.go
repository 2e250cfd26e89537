package validator

import (
	"strings"
	"testing"
)

type envelope struct {
	From    string   `validate:"required,mailbox"`
	To      string   `validate:"required,mailbox"`
	Cc      []string `validate:"omitempty,dive,mailbox"`
	Subject string   `validate:"required"`
}

func TestMailboxRule(t *testing.T) {
	v := New()

	ok := envelope{From: "a@x.com", To: "b@x.com", Cc: []string{"c@x.com"}, Subject: "hi"}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}

	bad := envelope{From: "a@x.com", To: "b@x.com", Cc: []string{"not-an-address"}, Subject: "hi"}
	err := v.Struct(bad)
	if err == nil {
		t.Fatal("expected cc without @ to fail")
	}
	if msg := Describe(err); !strings.Contains(msg, "invalid email: not-an-address") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestDescribeRequired(t *testing.T) {
	err := New().Struct(envelope{From: "a@x.com", To: "b@x.com"})
	if err == nil {
		t.Fatal("expected missing subject to fail")
	}
	if msg := Describe(err); msg != "Subject is required" {
		t.Fatalf("unexpected message %q", msg)
	}
}
