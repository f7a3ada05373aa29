package webdav_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/resilience"
	"github.com/finchapp/finch/internal/infra/webdav"

	"go.uber.org/zap"
)

func testConfig() resilience.Config {
	return resilience.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 2,
	}
}

func newTestClient(url string) *webdav.Client {
	cb := resilience.NewCircuitBreaker("webdav-test")
	return webdav.NewClient(&http.Client{Timeout: time.Second}, url, "user", "pass", cb, testConfig(), zap.NewNop())
}

func TestPutAndGetRoundTrip(t *testing.T) {
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(stored)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	payload := []byte(`{"version":1}`)
	if err := client.Put(ctx, "finch-backup.json", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if string(stored) != string(payload) {
		t.Errorf("server stored %q", stored)
	}

	got, err := client.Get(ctx, "finch-backup.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get returned %q", got)
	}
}

func TestPutCreatesCollectionOnConflict(t *testing.T) {
	var sawMkcol bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "MKCOL":
			sawMkcol = true
			w.WriteHeader(http.StatusCreated)
		case http.MethodPut:
			if !sawMkcol {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.Put(context.Background(), "finch-backup.json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !sawMkcol {
		t.Error("client never issued MKCOL")
	}
}

func TestGetMissingObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Get(context.Background(), "nothing.json")

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestServerErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.Put(context.Background(), "finch-backup.json", []byte("{}"))

	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("want ErrExternalService, got %v", err)
	}
	if external.Service != "webdav" {
		t.Errorf("service = %s", external.Service)
	}
}
