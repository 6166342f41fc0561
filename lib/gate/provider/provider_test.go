// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/gate/provider"
	"github.com/yai-labs/yai/lib/wire"
)

func decodeError(t *testing.T, data []byte) provider.ErrorBody {
	t.Helper()
	var body provider.ErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	return body
}

func TestMockReply(t *testing.T) {
	gate := provider.New(provider.Config{ID: "mock", Mock: true}, provider.Options{})
	response, err := gate.Dispatch(context.Background(), "ws1", command.Inference, []byte(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := `{"status":"success","content":"YAI Engine Sovereign L2: Inference Mock Active","tokens":42,"ws_id":"ws1"}`
	if string(response) != want {
		t.Errorf("response = %s, want %s", response, want)
	}
}

func TestNotConfigured(t *testing.T) {
	gate := provider.New(provider.DefaultConfig(), provider.Options{})
	response, err := gate.Dispatch(context.Background(), "ws1", command.Inference, []byte(`{}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if body := decodeError(t, response); body.Error != provider.ErrNotConfigured {
		t.Errorf("error = %q, want %q", body.Error, provider.ErrNotConfigured)
	}
}

func TestPostsPayloadUpstream(t *testing.T) {
	var gotPath, gotAuth, gotWorkspace, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotWorkspace = r.Header.Get("X-YAI-Workspace")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"content":"hello","tokens":3}`)
	}))
	defer server.Close()

	config := provider.DefaultConfig()
	config.BaseURL = server.URL + "/"
	config.APIKeyEnv = "YAI_TEST_KEY"
	gate := provider.New(config, provider.Options{
		Getenv: func(key string) string {
			if key == "YAI_TEST_KEY" {
				return "secret"
			}
			return ""
		},
	})

	response, err := gate.Dispatch(context.Background(), "ws1", command.Inference, []byte(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(response) != `{"content":"hello","tokens":3}` {
		t.Errorf("response = %s", response)
	}
	if gotPath != "/completion" {
		t.Errorf("path = %q, want /completion", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
	if gotWorkspace != "ws1" {
		t.Errorf("X-YAI-Workspace = %q, want ws1", gotWorkspace)
	}
	if gotBody != `{"prompt":"hi"}` {
		t.Errorf("body = %q", gotBody)
	}

	if _, err := gate.Dispatch(context.Background(), "ws1", command.EmbeddingRPC, []byte(`{"content":"x"}`)); err != nil {
		t.Fatalf("Dispatch(embedding): %v", err)
	}
	if gotPath != "/embedding" {
		t.Errorf("embedding path = %q, want /embedding", gotPath)
	}
}

func TestUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	config := provider.DefaultConfig()
	config.BaseURL = server.URL
	response, err := provider.New(config, provider.Options{}).
		Dispatch(context.Background(), "ws1", command.ProviderRPC, []byte(`{}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	body := decodeError(t, response)
	if body.Error != provider.ErrHTTPStatus || body.Status != http.StatusServiceUnavailable {
		t.Errorf("body = %+v", body)
	}
	if !strings.Contains(body.Detail, "model not loaded") {
		t.Errorf("detail = %q", body.Detail)
	}
}

func TestUpstreamMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))
	defer server.Close()

	config := provider.DefaultConfig()
	config.BaseURL = server.URL
	response, _ := provider.New(config, provider.Options{}).
		Dispatch(context.Background(), "ws1", command.Inference, []byte(`{}`))
	if body := decodeError(t, response); body.Error != provider.ErrMalformed {
		t.Errorf("error = %q, want %q", body.Error, provider.ErrMalformed)
	}
}

func TestConnectionFailed(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	config := provider.DefaultConfig()
	config.BaseURL = url
	response, err := provider.New(config, provider.Options{}).
		Dispatch(context.Background(), "ws1", command.Inference, []byte(`{}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if body := decodeError(t, response); body.Error != provider.ErrConnectionFailed {
		t.Errorf("error = %q, want %q", body.Error, provider.ErrConnectionFailed)
	}
}

func TestRejectsStorageCommand(t *testing.T) {
	gate := provider.New(provider.Config{Mock: true}, provider.Options{})
	_, err := gate.Dispatch(context.Background(), "ws1", command.StoragePut, nil)
	var protocolErr *wire.ProtocolError
	if !errors.As(err, &protocolErr) || protocolErr.Code != wire.CodeUnsupportedCommand {
		t.Errorf("error = %v, want %s", err, wire.CodeUnsupportedCommand)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		config provider.Config
		want   string
	}{
		{provider.Config{ID: "m", Mock: true}, "m (mock)"},
		{provider.Config{ID: "x"}, "x (not configured)"},
		{provider.Config{ID: "l", BaseURL: "http://h:1", Endpoint: "/c"}, "l -> http://h:1/c"},
	}
	for _, test := range tests {
		if got := provider.New(test.config, provider.Options{}).String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}
