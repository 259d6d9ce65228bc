package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/binder/internal/planner"
	"github.com/jackzampolin/binder/internal/sections"
)

func testHTTPClient(url string) *HTTPClient {
	return NewHTTPClient(HTTPConfig{
		BaseURL:           url,
		APIKey:            "test-key",
		Model:             "gemini-2.5-flash",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
		RequestsPerMinute: 10000,
	})
}

func batchReq() *BatchRequest {
	return &BatchRequest{
		Batch: planner.Batch{Lo: 40, Hi: 41, CtxLo: 38, CtxHi: 43},
		Excerpts: []PageExcerpt{
			{Page: 38, Text: "context before"},
			{Page: 39, Text: "context before"},
			{Page: 40, Text: "BY-LAW NO. 1"},
			{Page: 41, Text: "continued"},
			{Page: 42, Text: "context after"},
			{Page: 43, Text: "context after"},
		},
		RequestID: "req-1",
	}
}

func TestHTTPClientClassifyBatch(t *testing.T) {
	var gotAuth, gotQuery, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ask" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		gotQuery, gotModel = req.Query, req.Model
		json.NewEncoder(w).Encode(gatewayResponse{Result: "41, 2, 93\n42, 2, 88"})
	}))
	defer srv.Close()

	c := testHTTPClient(srv.URL)
	labels, err := c.ClassifyBatch(context.Background(), batchReq())
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotModel != "gemini-2.5-flash" {
		t.Errorf("model = %q", gotModel)
	}
	if !strings.Contains(gotQuery, "--- page 41 ---") || !strings.Contains(gotQuery, "(CONTEXT)") {
		t.Errorf("prompt missing page markers:\n%s", gotQuery)
	}
	if len(labels) != 2 {
		t.Fatalf("labels = %+v", labels)
	}
	if labels[0].Page != 40 || labels[0].Category != sections.ByLaws || labels[0].Confidence != 93 {
		t.Errorf("labels[0] = %+v", labels[0])
	}
	if got := c.Budget().Snapshot(); got.Asks != 1 || got.Failures != 0 {
		t.Errorf("budget = %+v", got)
	}
}

func TestHTTPClientRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "upstream flaked", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(gatewayResponse{Result: "41, 4, 80\n42, 4, 80"})
	}))
	defer srv.Close()

	c := testHTTPClient(srv.URL)
	labels, err := c.ClassifyBatch(context.Background(), batchReq())
	if err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
	if labels[0].Category != sections.MinutesResolutions {
		t.Errorf("labels[0] = %+v", labels[0])
	}
}

func TestHTTPClientExhaustsRetries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "still broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testHTTPClient(srv.URL)
	_, err := c.ClassifyBatch(context.Background(), batchReq())
	if err == nil {
		t.Fatal("expected an error")
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want MaxRetries", hits.Load())
	}
	if got := c.Budget().Snapshot(); got.Failures != 1 {
		t.Errorf("budget = %+v", got)
	}
}

func TestHTTPClientAuthFailureDoesNotRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testHTTPClient(srv.URL)
	_, err := c.ClassifyBatch(context.Background(), batchReq())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, auth errors must not retry", hits.Load())
	}
}

func TestHTTPClientMalformedReplyDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gatewayResponse{Result: "I am not able to classify these pages."})
	}))
	defer srv.Close()

	c := testHTTPClient(srv.URL)
	labels, err := c.ClassifyBatch(context.Background(), batchReq())
	if err != nil {
		t.Fatalf("malformed replies must not error: %v", err)
	}
	for _, l := range labels {
		if l.Category != sections.Unknown {
			t.Errorf("label %+v, want Unknown", l)
		}
	}
}

func TestHTTPClientClassifyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-pdf" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req visionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.PDFPage == "" || !strings.Contains(req.Prompt, "page 6") {
			t.Errorf("vision request incomplete: prompt=%q", req.Prompt)
		}
		json.NewEncoder(w).Encode(gatewayResponse{Result: "6, 9, 77"})
	}))
	defer srv.Close()

	c := testHTTPClient(srv.URL)
	label, err := c.ClassifyPage(context.Background(), &PageRequest{
		Page:  5,
		Image: []byte("fake png bytes"),
		MIME:  "image/png",
	})
	if err != nil {
		t.Fatal(err)
	}
	if label.Page != 5 || label.Category != sections.ShareCertificates || label.Source != sections.SourceVision {
		t.Errorf("label = %+v", label)
	}
	if got := c.Budget().Snapshot(); got.Visions != 1 || got.Total != 1 {
		t.Errorf("budget = %+v", got)
	}
}
