package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docroute/extraction"
)

// ARNPrefix is the invocation ARN prefix used by default handles.
const ARNPrefix = "arn:aws:bedrock:us-east-1:000000000000:data-automation-invocation/"

// Client is a test double for extraction.Client.
// It allows custom behavior injection via function fields.
type Client struct {
	// SubmitFunc is called by Submit if set.
	// If nil, Submit returns a handle derived from the client token.
	SubmitFunc func(ctx context.Context, req *extraction.Request) (*extraction.Handle, error)

	mu       sync.Mutex
	requests []*extraction.Request
}

var _ extraction.Client = (*Client)(nil)

// NewClient creates a mock client with default behavior.
func NewClient() *Client {
	return &Client{}
}

// Submit records the request and starts a pretend job.
func (c *Client) Submit(ctx context.Context, req *extraction.Request) (*extraction.Handle, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.SubmitFunc != nil {
		return c.SubmitFunc(ctx, req)
	}
	return DefaultHandle(req), nil
}

// DefaultHandle is the handle returned when SubmitFunc is nil.
// Identical client tokens yield identical handles.
func DefaultHandle(req *extraction.Request) *extraction.Handle {
	jobID := req.ClientToken
	if len(jobID) > 12 {
		jobID = jobID[:12]
	}
	return &extraction.Handle{JobID: jobID, ARN: ARNPrefix + jobID}
}

// CallCount returns the number of times Submit was called.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests returns a copy of every request received.
func (c *Client) Requests() []*extraction.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*extraction.Request(nil), c.requests...)
}

// Reset clears the recorded requests.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
}
