// Package aiprovider abstracts the external asynchronous compute backends
// that run image enhancements. Each backend implements the Provider
// capability interface; feature configuration selects the implementation by
// name, so adding a backend never touches the job manager.
package aiprovider

import (
	"context"
	"fmt"
)

// Request is a provider-neutral submission: the model to run, the merged
// input parameters, and the callback URL the provider must notify.
type Request struct {
	ModelID     string
	Input       map[string]interface{}
	CallbackURL string
}

// Submission is the provider's synchronous answer to a submit call. The
// actual enhancement arrives later through the callback or polling.
type Submission struct {
	ExternalID       string
	EstimatedSeconds int
}

// Result is the provider-neutral terminal (or in-flight) state of a job.
type Result struct {
	ExternalID   string
	Terminal     bool
	Succeeded    bool
	OutputURL    string
	ErrorMessage string
}

type Provider interface {
	Name() string
	Submit(ctx context.Context, req Request) (*Submission, error)
	ParseResult(payload []byte) (*Result, error)
	Poll(ctx context.Context, externalID string) (*Result, error)
}

// Registry resolves a provider implementation by the name stored in feature
// configuration.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Register adds or replaces a provider implementation.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", name)
	}
	return p, nil
}
