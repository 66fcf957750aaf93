// Package mock provides a test double for the llm package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/sonara-ai/sonara/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Reply is the content returned by every Complete call. Defaults to
	// "ok" when empty.
	Reply string

	// Err, if non-nil, is returned by every Complete call.
	Err error

	// CompleteCalls records every request in order.
	CompleteCalls []llm.CompletionRequest
}

// Complete records the request and returns Reply, Err.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	reply := p.Reply
	if reply == "" {
		reply = "ok"
	}
	return &llm.CompletionResponse{Content: reply}, nil
}

// Calls returns a snapshot of recorded requests.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.CompleteCalls...)
}

var _ llm.Provider = (*Provider)(nil)
