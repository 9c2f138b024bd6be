package lms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordedCall struct {
	method string
	path   string
}

func newTestClient(srv *httptest.Server) *httpClient {
	return &httpClient{
		baseURL: srv.URL,
		apiKey:  "test-key",
		hc:      &http.Client{Timeout: 2 * time.Second},
	}
}

func TestFindOrCreateAccount(t *testing.T) {
	t.Run("Existing account is reused without create", func(t *testing.T) {
		var calls []recordedCall
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, recordedCall{r.Method, r.URL.Path})
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode([]account{{ID: "acct-1", Email: "asha@example.com"}})
		}))
		defer srv.Close()

		id, err := newTestClient(srv).FindOrCreateAccount(context.Background(), "asha@example.com", "Asha Rao")

		assert.NoError(t, err)
		assert.Equal(t, "acct-1", id)
		assert.Equal(t, []recordedCall{{http.MethodGet, "/api/accounts"}}, calls)
	})

	t.Run("Missing account gets created", func(t *testing.T) {
		var calls []recordedCall
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, recordedCall{r.Method, r.URL.Path})
			if r.Method == http.MethodGet {
				json.NewEncoder(w).Encode([]account{})
				return
			}
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "asha@example.com", body["email"])
			json.NewEncoder(w).Encode(account{ID: "acct-new", Email: body["email"], Name: body["name"]})
		}))
		defer srv.Close()

		id, err := newTestClient(srv).FindOrCreateAccount(context.Background(), "asha@example.com", "Asha Rao")

		assert.NoError(t, err)
		assert.Equal(t, "acct-new", id)
		assert.Equal(t, []recordedCall{
			{http.MethodGet, "/api/accounts"},
			{http.MethodPost, "/api/accounts"},
		}, calls)
	})

	t.Run("Upstream error surfaces with status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).FindOrCreateAccount(context.Background(), "asha@example.com", "Asha Rao")

		assert.ErrorContains(t, err, "502")
	})
}

func TestFindOrCreateEnrollment(t *testing.T) {
	t.Run("Existing enrollment is a no-op", func(t *testing.T) {
		var posts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				posts++
			}
			json.NewEncoder(w).Encode([]enrollment{{ID: "enr-1", AccountID: "acct-1", CourseID: "plan-1"}})
		}))
		defer srv.Close()

		err := newTestClient(srv).FindOrCreateEnrollment(context.Background(), "acct-1", "plan-1")

		assert.NoError(t, err)
		assert.Zero(t, posts)
	})

	t.Run("Missing enrollment gets created", func(t *testing.T) {
		var posted map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				json.NewEncoder(w).Encode([]enrollment{})
				return
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		err := newTestClient(srv).FindOrCreateEnrollment(context.Background(), "acct-1", "plan-1")

		assert.NoError(t, err)
		assert.Equal(t, map[string]string{"accountId": "acct-1", "courseId": "plan-1"}, posted)
	})
}
