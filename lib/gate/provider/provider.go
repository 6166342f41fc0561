// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider is the engine's gate to a model server. INFERENCE,
// PROVIDER_RPC, and EMBEDDING_RPC payloads are posted as JSON to the
// configured HTTP endpoint and the upstream body is returned as the
// command response.
//
// Upstream failures are reported in-band as {"error":"..."} bodies so
// the caller always gets a JSON reply:
//
//	provider_not_configured     no base URL and not in mock mode
//	upstream_connection_failed  the request could not be sent
//	upstream_http_status        the upstream answered with a non-2xx status
//	upstream_http_malformed     the upstream body is not JSON or too large
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/netutil"
	"github.com/yai-labs/yai/lib/wire"
)

// DefaultTimeout bounds one upstream request.
const DefaultTimeout = 30 * time.Second

// MockContent is the content field of every mock reply.
const MockContent = "YAI Engine Sovereign L2: Inference Mock Active"

// Error codes reported in the "error" field.
const (
	ErrNotConfigured    = "provider_not_configured"
	ErrConnectionFailed = "upstream_connection_failed"
	ErrHTTPStatus       = "upstream_http_status"
	ErrMalformed        = "upstream_http_malformed"
)

// Config describes the upstream.
type Config struct {
	// ID names the provider in logs.
	ID string `yaml:"id"`

	// BaseURL is the scheme and authority, e.g. http://127.0.0.1:8080.
	BaseURL string `yaml:"base_url"`

	// Endpoint is the path for INFERENCE and PROVIDER_RPC.
	Endpoint string `yaml:"endpoint"`

	// EmbeddingEndpoint is the path for EMBEDDING_RPC.
	EmbeddingEndpoint string `yaml:"embedding_endpoint"`

	// APIKeyEnv names the environment variable holding a bearer
	// token. Empty sends no Authorization header.
	APIKeyEnv string `yaml:"api_key_env"`

	Timeout time.Duration `yaml:"timeout"`

	// Mock answers every call locally without contacting the upstream.
	Mock bool `yaml:"mock"`
}

// DefaultConfig is a llama.cpp-style server on localhost, not yet
// pointed anywhere.
func DefaultConfig() Config {
	return Config{
		ID:                "local",
		Endpoint:          "/completion",
		EmbeddingEndpoint: "/embedding",
		Timeout:           DefaultTimeout,
	}
}

// ErrorBody is the in-band failure reply.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// MockReply is the reply in mock mode.
type MockReply struct {
	Status      string `json:"status"`
	Content     string `json:"content"`
	Tokens      int    `json:"tokens"`
	WorkspaceID string `json:"ws_id"`
}

// Options are the gate's collaborators.
type Options struct {
	// Client sends requests. Nil builds one with Config.Timeout.
	Client *http.Client

	// Getenv resolves Config.APIKeyEnv. Nil uses os.Getenv.
	Getenv func(string) string

	Logger *slog.Logger
}

// Gate posts model commands upstream.
type Gate struct {
	config Config
	client *http.Client
	getenv func(string) string
	logger *slog.Logger
}

// New returns a gate for config.
func New(config Config, options Options) *Gate {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	getenv := options.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.BaseURL != "" || config.Mock {
		logger.Info("provider route configured",
			"provider", config.ID,
			"base_url", config.BaseURL,
			"endpoint", config.Endpoint,
			"mock", config.Mock,
		)
	}
	return &Gate{config: config, client: client, getenv: getenv, logger: logger}
}

// Dispatch serves one model command.
func (g *Gate) Dispatch(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error) {
	var endpoint string
	switch id {
	case command.Inference, command.ProviderRPC:
		endpoint = g.config.Endpoint
	case command.EmbeddingRPC:
		endpoint = g.config.EmbeddingEndpoint
	default:
		return nil, wire.Errorf(wire.CodeUnsupportedCommand, "provider gate does not serve %s", id)
	}

	if g.config.Mock {
		return json.Marshal(MockReply{
			Status:      "success",
			Content:     MockContent,
			Tokens:      42,
			WorkspaceID: workspaceID,
		})
	}
	if g.config.BaseURL == "" {
		return json.Marshal(ErrorBody{Error: ErrNotConfigured})
	}
	return g.post(ctx, workspaceID, id, strings.TrimRight(g.config.BaseURL, "/")+endpoint, payload)
}

func (g *Gate) post(ctx context.Context, workspaceID string, id command.ID, url string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		g.logger.Error("building provider request", "provider", g.config.ID, "url", url, "error", err)
		return json.Marshal(ErrorBody{Error: ErrConnectionFailed, Detail: err.Error()})
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-YAI-Workspace", workspaceID)
	if g.config.APIKeyEnv != "" {
		if key := g.getenv(g.config.APIKeyEnv); key != "" {
			request.Header.Set("Authorization", "Bearer "+key)
		}
	}

	g.logger.Debug("dispatching to provider",
		"provider", g.config.ID,
		"command", id.String(),
		"ws_id", workspaceID,
		"url", url,
	)
	response, err := g.client.Do(request)
	if err != nil {
		g.logger.Error("provider connection failed", "provider", g.config.ID, "url", url, "error", err)
		return json.Marshal(ErrorBody{Error: ErrConnectionFailed, Detail: err.Error()})
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail := netutil.ErrorBody(response.Body)
		g.logger.Warn("provider answered with error status",
			"provider", g.config.ID,
			"status", response.StatusCode,
		)
		return json.Marshal(ErrorBody{Error: ErrHTTPStatus, Status: response.StatusCode, Detail: detail})
	}

	limit := int64(wire.MaxPayload)
	body, err := netutil.ReadResponse(response.Body, limit)
	if err != nil || !json.Valid(body) {
		detail := "body is not JSON"
		if err != nil {
			detail = err.Error()
		}
		g.logger.Warn("provider reply unusable", "provider", g.config.ID, "detail", detail)
		return json.Marshal(ErrorBody{Error: ErrMalformed, Detail: detail})
	}
	return body, nil
}

// String describes the route for status output.
func (g *Gate) String() string {
	if g.config.Mock {
		return fmt.Sprintf("%s (mock)", g.config.ID)
	}
	if g.config.BaseURL == "" {
		return fmt.Sprintf("%s (not configured)", g.config.ID)
	}
	return fmt.Sprintf("%s -> %s%s", g.config.ID, g.config.BaseURL, g.config.Endpoint)
}
