package workerproc

import (
	"errors"
	"testing"
)

func TestParseMessage(t *testing.T) {
	msg, meta, err := ParseMessage(`{"jobId":"job-1","requestId":"req-1","version":1}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.JobID != "job-1" || msg.RequestID != "req-1" {
		t.Fatalf("msg = %+v", msg)
	}
	if meta.BodyLen == 0 || meta.BodySHA == "" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestParseMessageEmptyBody(t *testing.T) {
	_, _, err := ParseMessage("   ")
	var emptyErr ErrEmptyBody
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestParseMessageBadJSON(t *testing.T) {
	_, meta, err := ParseMessage("not json")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen != len("not json") {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestParseMessageMissingJobID(t *testing.T) {
	_, _, err := ParseMessage(`{"requestId":"req-1"}`)
	var missingErr ErrMissingJobID
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected ErrMissingJobID, got %v", err)
	}
	if missingErr.RequestID != "req-1" {
		t.Fatalf("request id = %q", missingErr.RequestID)
	}
}

func TestHandleMessageNoApp(t *testing.T) {
	if err := HandleMessage(nil, nil, "{}"); err == nil {
		t.Fatal("expected error for missing app")
	}
}
