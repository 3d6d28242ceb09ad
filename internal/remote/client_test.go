package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offersync/internal/config"
	"offersync/internal/member"
)

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*config.RemoteConfig)) *Client {
	t.Helper()
	cfg := config.GetDefaultConfig().Remote
	cfg.BaseURL = srv.URL + "/api/v1/external/preorders"
	cfg.AccessKey = "secret"
	cfg.RequestTimeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func variantsPage(ids ...any) map[string]any {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"shopify_variant_id": id})
	}
	return map[string]any{"product_variants": items}
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "   ", "not a url", "/relative/path"} {
		_, err := NewClient(config.RemoteConfig{BaseURL: base})
		assert.Error(t, err, "base %q", base)
	}
}

func TestNewClient_RejectsBadQuery(t *testing.T) {
	_, err := NewClient(config.RemoteConfig{BaseURL: "http://example.test", MembersQuery: ".foo[["})
	assert.Error(t, err)
}

func TestListMembers_FollowsPagesUntilShortPage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/external/preorders/offer-42/product_variants", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var body map[string]any
		switch page {
		case 1:
			body = variantsPage(101, "103")
		case 2:
			body = variantsPage(105, 107)
		default:
			body = variantsPage(109)
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.RemoteConfig) { cfg.PageSize = 2 })
	values, err := c.ListMembers(context.Background(), "offer-42")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	set, malformed := member.ParseAll(values)
	assert.Empty(t, malformed)
	assert.Equal(t, []member.Member{101, 103, 105, 107, 109}, set.Sorted())
}

func TestListMembers_StopsWhenServerIgnoresPaging(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(variantsPage(1, 2))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.RemoteConfig) { cfg.PageSize = 2 })
	values, err := c.ListMembers(context.Background(), "offer-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Len(t, values, 2)
}

func TestListMembers_StopsAtEmptyPageAndMaxPages(t *testing.T) {
	t.Run("empty page", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "1" {
				_ = json.NewEncoder(w).Encode(variantsPage(1, 2))
				return
			}
			_ = json.NewEncoder(w).Encode(variantsPage())
		}))
		defer srv.Close()

		c := newTestClient(t, srv, func(cfg *config.RemoteConfig) { cfg.PageSize = 2 })
		values, err := c.ListMembers(context.Background(), "offer-1")
		require.NoError(t, err)
		assert.Len(t, values, 2)
	})

	t.Run("page limit", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			_ = json.NewEncoder(w).Encode(variantsPage(int(n)*10, int(n)*10+1))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, func(cfg *config.RemoteConfig) {
			cfg.PageSize = 2
			cfg.MaxPages = 3
		})
		values, err := c.ListMembers(context.Background(), "offer-1")
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		assert.Len(t, values, 6)
	})
}

func TestListMembers_KeepsMalformedValuesForCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"product_variants":[{"shopify_variant_id":"12.0"},{"shopify_variant_id":"abc"},{"title":"no id"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	values, err := c.ListMembers(context.Background(), "offer-1")
	require.NoError(t, err)

	set, malformed := member.ParseAll(values)
	assert.Equal(t, []member.Member{12}, set.Sorted())
	require.Len(t, malformed, 2)
	assert.Equal(t, "abc", malformed[0].Value)
	assert.Equal(t, "null", malformed[1].Value)
}

func TestListMembers_NullIDsDoNotShortenPage(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		switch page {
		case "1":
			assert.NoError(t, json.NewEncoder(w).Encode(variantsPage(1, nil)))
		case "2":
			assert.NoError(t, json.NewEncoder(w).Encode(variantsPage(3)))
		default:
			assert.NoError(t, json.NewEncoder(w).Encode(variantsPage()))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(rc *config.RemoteConfig) { rc.PageSize = 2 })
	values, err := c.ListMembers(context.Background(), "offer-1")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"1", "2"}, pages)
	mu.Unlock()
	set, malformed := member.ParseAll(values)
	assert.Equal(t, []member.Member{1, 3}, set.Sorted())
	require.Len(t, malformed, 1)
	assert.Equal(t, "null", malformed[0].Value)
}

func TestListMembers_ErrorClassification(t *testing.T) {
	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv, nil).ListMembers(context.Background(), "offer-1")
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("404 is not transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"offer not found"}`, http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv, nil).ListMembers(context.Background(), "offer-1")
		require.Error(t, err)
		assert.False(t, IsTransient(err))
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("closed server is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		c := newTestClient(t, srv, nil)
		srv.Close()

		_, err := c.ListMembers(context.Background(), "offer-1")
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})
}

func TestAddMembers_SendsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/external/preorders/offer-42/add_variant", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []any{float64(100), float64(102)}, payload["shopify_variant_ids"])
		assert.Equal(t, float64(5), payload["preorder_max_count"])

		w.Header().Set("Retry-After", "0.5")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.RemoteConfig) { cfg.MaxCountPerMember = 5 })
	resp := c.AddMembers(context.Background(), "offer-42", []member.Member{100, 102})
	require.NoError(t, resp.Err)
	assert.True(t, resp.OK())
	assert.True(t, resp.HasRetryAfter)
	assert.Equal(t, 500*time.Millisecond, resp.RetryAfter)
}

func TestRemoveMembers_SendsDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/external/preorders/offer-42/remove_variant", r.URL.Path)

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []any{float64(103)}, payload["shopify_variant_ids"])
		_, hasMax := payload["preorder_max_count"]
		assert.False(t, hasMax)

		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"Another job is in progress"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.RemoteConfig) { cfg.MaxCountPerMember = 5 })
	resp := c.RemoveMembers(context.Background(), "offer-42", []member.Member{103})
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.True(t, IsLockMessage(resp.Body))
	assert.False(t, resp.HasRetryAfter)
}

func TestMutate_TransportErrorInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv, nil)
	srv.Close()

	resp := c.AddMembers(context.Background(), "offer-1", []member.Member{1})
	assert.Error(t, resp.Err)
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Describe(), "request error")
}
