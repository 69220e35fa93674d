package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
)

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Push("a")
	ss.Push("b")
	ss.Push("a")
	if !ss.Exists("a") || !ss.Exists("b") || ss.Exists("c") {
		t.Fail()
	}
	sl := ss.Slice()
	sort.Strings(sl)
	if len(sl) != 2 || sl[0] != "a" || sl[1] != "b" {
		t.Errorf("expect [a b] found %v", sl)
	}
	ss.Pop("a")
	if ss.Exists("a") {
		t.Fail()
	}
}

func TestGetBodyRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls++; calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := GetBodyRetry(context.Background(), srv.URL, 2)
	if err != nil {
		t.Error(err)
	}
	if string(body) != "ok" {
		t.Errorf("expect ok found %s", body)
	}
	if calls != 2 {
		t.Errorf("expect 2 calls found %d", calls)
	}
}

func TestGetBodyRetryClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := GetBodyRetry(context.Background(), srv.URL, 2); err == nil {
		t.Error("expected error")
	}
	if calls != 1 {
		t.Errorf("expect no retry on 4xx, found %d calls", calls)
	}
}

func TestGetBodyRetryCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := GetBodyRetry(ctx, srv.URL, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("expect context.Canceled, found %v", err)
	}
}
