package httputil

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSession() *Session {
	return NewSession(SessionConfig{
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RequestsPerSec: 1000,
		Burst:          1000,
	})
}

func TestDoSetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	s := newTestSession()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	_ = resp.Body.Close()

	if got != s.UserAgent() {
		t.Errorf("User-Agent = %q, want %q", got, s.UserAgent())
	}
}

func TestDoKeepsExplicitUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	s := newTestSession()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "custom/9.9")
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	_ = resp.Body.Close()

	if got != "custom/9.9" {
		t.Errorf("User-Agent = %q, want custom/9.9", got)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSession()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := newTestSession()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	_ = resp.Body.Close()

	if got := calls.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestDoRewindsBodyBetweenRetries(t *testing.T) {
	var calls atomic.Int32
	var lastBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		lastBody = string(data)
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	s := newTestSession()
	// bytes.Reader bodies get GetBody from NewRequest.
	req, _ := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader([]byte("payload")))
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	_ = resp.Body.Close()

	if got := calls.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
	if lastBody != "payload" {
		t.Errorf("retried body = %q, want payload", lastBody)
	}
}

func TestDoSendsNonRewindableBodyOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := newTestSession()
	req, _ := http.NewRequest(http.MethodPost, server.URL, io.NopCloser(strings.NewReader("stream")))
	req.GetBody = nil
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	_ = resp.Body.Close()

	if got := calls.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1 for non-rewindable body", got)
	}
}

func TestDoKeepsBodyAfterRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("backend exploded"))
	}))
	defer server.Close()

	s := NewSession(SessionConfig{
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RequestsPerSec: 1000,
		Burst:          1000,
	})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	checkErr := CheckStatus(resp)
	if checkErr == nil {
		t.Fatal("CheckStatus() = nil, want error for 500")
	}
	if !strings.Contains(checkErr.Error(), "backend exploded") {
		t.Errorf("CheckStatus() = %q, want body excerpt included", checkErr.Error())
	}
}

func TestCheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("nope"))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	checkErr := CheckStatus(resp)
	var statusErr *StatusError
	if !errors.As(checkErr, &statusErr) {
		t.Fatalf("CheckStatus() = %v, want *StatusError", checkErr)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Error(), "nope") {
		t.Errorf("Error() = %q, want body included", statusErr.Error())
	}
}
