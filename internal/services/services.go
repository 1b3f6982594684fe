// Package services adapts the external embedding and chat HTTP
// services Tessera depends on for retrieval: thin JSON request/response
// wrappers over the shared rate-limited Fetcher.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tessera/internal/errs"
	"tessera/internal/fetch"
)

// jsonFetcher is the subset of *fetch.Fetcher both services depend on,
// narrow enough to fake in tests.
type jsonFetcher interface {
	FetchJSON(ctx context.Context, url string, body []byte, timeout time.Duration) (fetch.Response, error)
}

// EmbedRequest is the payload sent to the embedding service.
type EmbedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

// EmbedResponse is the embedding service's response: one vector per
// input text, in the same order.
type EmbedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedService calls an external embedding endpoint.
type EmbedService struct {
	fetcher jsonFetcher
	baseURL string
	model   string
	timeout time.Duration
}

// NewEmbedService builds an EmbedService backed by f.
func NewEmbedService(f *fetch.Fetcher, baseURL, model string, timeout time.Duration) *EmbedService {
	return newEmbedService(f, baseURL, model, timeout)
}

func newEmbedService(f jsonFetcher, baseURL, model string, timeout time.Duration) *EmbedService {
	return &EmbedService{fetcher: f, baseURL: baseURL, model: model, timeout: timeout}
}

// ModelName returns the configured embedding model name, used as the
// store's model key for chunk_embeddings rows.
func (s *EmbedService) ModelName() string { return s.model }

// Embed requests vectors for texts, in order. A non-2xx response or a
// transport failure surfaces as a ServiceKind error so callers can fall
// back to keyword search.
func (s *EmbedService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(EmbedRequest{Model: s.model, Texts: texts})
	if err != nil {
		return nil, errs.Service("marshaling embed request", err)
	}

	resp, err := s.fetcher.FetchJSON(ctx, s.baseURL+"/embed", payload, s.timeout)
	if err != nil {
		return nil, errs.Service("calling embed service", err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, errs.Service(fmt.Sprintf("embed service returned status %d", resp.Status), nil)
	}

	var out EmbedResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, errs.Service("decoding embed response", err)
	}
	if len(out.Vectors) != len(texts) {
		return nil, errs.Service(fmt.Sprintf("embed service returned %d vectors for %d texts", len(out.Vectors), len(texts)), nil)
	}
	return out.Vectors, nil
}

// ChatMessage is one turn in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat service.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse is the chat service's response.
type ChatResponse struct {
	Content string `json:"content"`
}

// ChatService calls an external chat-completion endpoint and returns
// the reply text. No other package in this module calls it.
type ChatService struct {
	fetcher jsonFetcher
	baseURL string
	model   string
	timeout time.Duration
}

// NewChatService builds a ChatService backed by f.
func NewChatService(f *fetch.Fetcher, baseURL, model string, timeout time.Duration) *ChatService {
	return newChatService(f, baseURL, model, timeout)
}

func newChatService(f jsonFetcher, baseURL, model string, timeout time.Duration) *ChatService {
	return &ChatService{fetcher: f, baseURL: baseURL, model: model, timeout: timeout}
}

// Complete sends messages to the chat service and returns its reply.
func (s *ChatService) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	payload, err := json.Marshal(ChatRequest{Model: s.model, Messages: messages})
	if err != nil {
		return "", errs.Service("marshaling chat request", err)
	}

	resp, err := s.fetcher.FetchJSON(ctx, s.baseURL+"/chat", payload, s.timeout)
	if err != nil {
		return "", errs.Service("calling chat service", err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return "", errs.Service(fmt.Sprintf("chat service returned status %d", resp.Status), nil)
	}

	var out ChatResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", errs.Service("decoding chat response", err)
	}
	return out.Content, nil
}
