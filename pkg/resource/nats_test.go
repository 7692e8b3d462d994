package resource

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// fakeRequester answers request-reply calls from canned handlers keyed by
// subject.
type fakeRequester struct {
	handlers map[string]func(data []byte) ([]byte, error)
}

func (f *fakeRequester) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	h, ok := f.handlers[subj]
	if !ok {
		return nil, nats.ErrNoResponders
	}
	reply, err := h(data)
	if err != nil {
		return nil, err
	}
	return &nats.Msg{Subject: subj, Data: reply}, nil
}

func TestNATSGetChildren(t *testing.T) {
	req := &fakeRequester{handlers: map[string]func([]byte) ([]byte, error){
		SubjectChildren: func(data []byte) ([]byte, error) {
			var body childrenRequest
			if err := json.Unmarshal(data, &body); err != nil {
				return nil, err
			}
			if body.RootID != "root-1" {
				t.Errorf("RootID = %q, want root-1", body.RootID)
			}
			return []byte(`{"children":["a","b","c"]}`), nil
		},
	}}

	c, err := NewNATSClient(req, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNATSClient failed: %v", err)
	}

	refs, err := c.GetChildren(context.Background(), "root-1")
	if err != nil {
		t.Fatalf("GetChildren failed: %v", err)
	}
	want := []Ref{"a", "b", "c"}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d", len(refs), len(want))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %s, want %s", i, refs[i], want[i])
		}
	}
}

func TestNATSGetDetail(t *testing.T) {
	req := &fakeRequester{handlers: map[string]func([]byte) ([]byte, error){
		SubjectDetail: func(data []byte) ([]byte, error) {
			return []byte(`{"name":"Alpha","mass":"77"}`), nil
		},
	}}

	c, err := NewNATSClient(req, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNATSClient failed: %v", err)
	}

	detail, err := c.GetDetail(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetDetail failed: %v", err)
	}
	if detail.Name != "Alpha" {
		t.Errorf("Name = %q, want Alpha", detail.Name)
	}
}

func TestNATSErrorReplyMapsToStatusError(t *testing.T) {
	req := &fakeRequester{handlers: map[string]func([]byte) ([]byte, error){
		SubjectChildren: func(data []byte) ([]byte, error) {
			return []byte(`{"error":"not found","status":404}`), nil
		},
		SubjectDetail: func(data []byte) ([]byte, error) {
			return []byte(`{"error":"boom"}`), nil
		},
	}}

	c, err := NewNATSClient(req, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNATSClient failed: %v", err)
	}

	_, err = c.GetChildren(context.Background(), "root-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != 404 {
		t.Errorf("Code = %d, want 404", statusErr.Code)
	}

	// Missing status in the reply defaults to 500.
	_, err = c.GetDetail(context.Background(), "a")
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != 500 {
		t.Errorf("Code = %d, want 500", statusErr.Code)
	}
}

func TestNATSTransportFailure(t *testing.T) {
	req := &fakeRequester{handlers: map[string]func([]byte) ([]byte, error){}}

	c, err := NewNATSClient(req, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNATSClient failed: %v", err)
	}

	_, err = c.GetChildren(context.Background(), "root-1")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
	if !errors.Is(err, nats.ErrNoResponders) {
		t.Error("NetworkError should unwrap to the NATS error")
	}
}

func TestNewNATSClientValidation(t *testing.T) {
	if _, err := NewNATSClient(nil, zap.NewNop()); err == nil {
		t.Error("nil connection should be rejected")
	}
}
