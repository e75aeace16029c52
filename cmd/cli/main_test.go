package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRun_AddTCPSendsPayloadAndKey(t *testing.T) {
	var gotPath, gotKey string
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotKey = r.URL.Path, r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"version":2}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, key: "adm", http: ts.Client()}
	var out bytes.Buffer
	if err := run(c, []string{"add", "tcp", "-id", "cf", "-host", "1.1.1.1", "-interval", "2"}, &out); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/config/tcp" || gotKey != "adm" {
		t.Fatalf("path=%s key=%s", gotPath, gotKey)
	}
	if got["id"] != "cf" || got["host"] != "1.1.1.1" || got["port"] != float64(443) || got["interval_sec"] != float64(2) {
		t.Fatalf("unexpected payload %v", got)
	}
	if !strings.Contains(out.String(), `"version": 2`) {
		t.Fatalf("output not pretty-printed: %q", out.String())
	}
}

func TestRun_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"target not found"}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client()}
	err := run(c, []string{"remove", "tcp", "nope"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("want 404 error, got %v", err)
	}
}

func TestRun_TailPrintsEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 2; i++ {
			fmt.Fprintf(w, "data: {\"n\":%d}\n\n", i)
		}
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client()}
	var out bytes.Buffer
	if err := run(c, []string{"tail"}, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "{\"n\":0}\n{\"n\":1}\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(&client{}, []string{"frobnicate"}, &bytes.Buffer{}); err == nil {
		t.Fatal("want error")
	}
}
