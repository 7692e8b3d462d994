package resource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Request-reply subjects served by the resource service.
const (
	SubjectChildren = "resource.children"
	SubjectDetail   = "resource.detail"
)

// Requester is the slice of the NATS connection the client depends on.
// Tests provide a fake; production code passes a *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type childrenRequest struct {
	RootID string `json:"root_id"`
}

type childrenReply struct {
	Children []string `json:"children"`
	Status   int      `json:"status,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type detailRequest struct {
	Ref string `json:"ref"`
}

// NATSClient implements Client over NATS request-reply. Each invocation is a
// single request; service-side failures arrive as a reply document carrying a
// non-success status and map onto the same error types as the HTTP transport.
type NATSClient struct {
	conn   Requester
	logger *zap.Logger
}

// NewNATSClient creates a resource client over an established connection.
func NewNATSClient(conn Requester, logger *zap.Logger) (*NATSClient, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection cannot be nil")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &NATSClient{conn: conn, logger: logger}, nil
}

// GetChildren requests the ordered child references of the root resource.
func (c *NATSClient) GetChildren(ctx context.Context, rootID string) ([]Ref, error) {
	payload, err := json.Marshal(childrenRequest{RootID: rootID})
	if err != nil {
		return nil, &NetworkError{Target: SubjectChildren, Err: err}
	}

	msg, err := c.conn.RequestWithContext(ctx, SubjectChildren, payload)
	if err != nil {
		return nil, &NetworkError{Target: SubjectChildren, Err: err}
	}

	var reply childrenReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, &NetworkError{Target: SubjectChildren, Err: fmt.Errorf("decoding reply: %w", err)}
	}
	if reply.Error != "" {
		return nil, &StatusError{Target: SubjectChildren, Code: statusOr(reply.Status, 500)}
	}

	refs := make([]Ref, len(reply.Children))
	for i, child := range reply.Children {
		refs[i] = Ref(child)
	}

	c.logger.Debug("fetched child references",
		zap.String("root_id", rootID),
		zap.Int("count", len(refs)))

	return refs, nil
}

// GetDetail requests the detail record for a single child reference.
func (c *NATSClient) GetDetail(ctx context.Context, ref Ref) (Detail, error) {
	payload, err := json.Marshal(detailRequest{Ref: string(ref)})
	if err != nil {
		return Detail{}, &NetworkError{Target: string(ref), Err: err}
	}

	msg, err := c.conn.RequestWithContext(ctx, SubjectDetail, payload)
	if err != nil {
		return Detail{}, &NetworkError{Target: string(ref), Err: err}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(msg.Data, &fields); err != nil {
		return Detail{}, &NetworkError{Target: string(ref), Err: fmt.Errorf("decoding reply: %w", err)}
	}
	if errMsg, ok := fields["error"].(string); ok && errMsg != "" {
		code := 500
		if status, ok := fields["status"].(float64); ok {
			code = int(status)
		}
		return Detail{}, &StatusError{Target: string(ref), Code: code}
	}

	detail := Detail{Fields: fields}
	if name, ok := fields["name"].(string); ok {
		detail.Name = name
	}
	return detail, nil
}

func statusOr(status, fallback int) int {
	if status != 0 {
		return status
	}
	return fallback
}
