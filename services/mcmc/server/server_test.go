// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/chain"
)

type fakeStatus struct {
	status chain.Status
}

func (f *fakeStatus) Status() chain.Status { return f.status }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Addr: ":0"}, nil, nil)
	w := get(t, s.Handler(), "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Version != ServiceVersion {
		t.Errorf("health = %+v", resp)
	}
}

func TestServer_Status(t *testing.T) {
	provider := &fakeStatus{status: chain.Status{
		RunID:     "abc123",
		Running:   true,
		Iteration: 40,
		Total:     100,
		LogL:      -12.5,
		Accepted:  25,
		Rejected:  15,
		Proposers: []chain.ProposerStatus{{Name: "normal(mu)", Enabled: true, Attempts: 40, Acceptances: 25, Rate: 0.625}},
	}}
	s := New(Config{Addr: ":0"}, provider, nil)
	w := get(t, s.Handler(), "/v1/chain/status")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got chain.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "abc123" || got.Iteration != 40 || got.LogL != -12.5 {
		t.Errorf("status = %+v", got)
	}
	if len(got.Proposers) != 1 || got.Proposers[0].Rate != 0.625 {
		t.Errorf("proposers = %+v", got.Proposers)
	}
}

func TestServer_StatusWithoutChain(t *testing.T) {
	s := New(Config{Addr: ":0"}, nil, nil)
	w := get(t, s.Handler(), "/v1/chain/status")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := New(Config{Addr: ":0"}, nil, nil)
	w := get(t, s.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default Go collector")
	}
}

func TestServer_CustomMetricsHandler(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "mcmc_custom 1\n")
	})
	s := New(Config{Addr: ":0", MetricsHandler: h}, nil, nil)
	w := get(t, s.Handler(), "/metrics")
	if got := w.Body.String(); got != "mcmc_custom 1\n" {
		t.Errorf("body = %q, want custom handler output", got)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(Config{}, &fakeStatus{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		cancel()
		t.Fatalf("GET /health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * ShutdownTimeout):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestServer_RunBadAddress(t *testing.T) {
	s := New(Config{Addr: "not-an-address"}, nil, nil)
	if err := s.Run(context.Background()); err == nil {
		t.Error("Run() with a bad address should fail")
	}
}

// countdownStatus reports a running chain for the first n calls.
type countdownStatus struct {
	mu    sync.Mutex
	calls int
	n     int
}

func (c *countdownStatus) Status() chain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return chain.Status{Iteration: c.calls, Running: c.calls <= c.n}
}

func TestServer_Stream(t *testing.T) {
	s := New(Config{StreamInterval: 10 * time.Millisecond}, &countdownStatus{n: 2}, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chain/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	for want := 1; want <= 3; want++ {
		var st chain.Status
		if err := ws.ReadJSON(&st); err != nil {
			t.Fatalf("read %d: %v", want, err)
		}
		if st.Iteration != want {
			t.Errorf("message %d iteration = %d", want, st.Iteration)
		}
		if st.Running != (want <= 2) {
			t.Errorf("message %d running = %v", want, st.Running)
		}
	}

	_, _, err = ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("after final snapshot err = %v, want normal closure", err)
	}
}

func TestServer_StreamWithoutChain(t *testing.T) {
	s := New(Config{}, nil, nil)
	w := get(t, s.Handler(), "/v1/chain/stream")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
