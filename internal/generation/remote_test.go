package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

const generateReply = `{
  "productName": "Calm Night Lotion",
  "ingredients": [
    {"name": "Lavender Essential Oil", "percent": 2, "costPer100ml": "120", "whyChosen": "popular calming scent"},
    {"name": "Shea Butter", "percent": 8, "costPer100ml": 60}
  ],
  "localMarket": {"location": "Pune", "marketSize": 30000000, "totalPurchasers": 12000, "averageOrderValue": 650}
}`

func newRemote(t *testing.T, srv *httptest.Server, retries int) *RemoteClient {
	t.Helper()
	c, err := NewRemoteClient(RemoteOptions{
		BaseURL:      srv.URL + "/",
		APIKey:       "secret",
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, logger.NewTestLogger(t), telemetry.NewMetrics())
	require.NoError(t, err)
	return c
}

func TestRemoteGenerate(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(generateReply))
	}))
	defer srv.Close()

	f, err := newRemote(t, srv, 0).Generate(context.Background(), Request{Prompt: "  calming lotion  ", Category: "Skincare", Location: "Pune"})
	require.NoError(t, err)

	assert.Equal(t, Request{Prompt: "calming lotion", Category: "skincare", Location: "Pune"}, got)
	assert.Equal(t, "Calm Night Lotion", f.ProductName)
	assert.Equal(t, "skincare", f.Category)
	require.Len(t, f.Ingredients, 2)
	require.NotNil(t, f.Ingredients[0].CostPer100ml)
	assert.Equal(t, 120.0, *f.Ingredients[0].CostPer100ml)
	require.NotNil(t, f.LocalMarket)
	assert.Equal(t, 12000.0, f.LocalMarket.TotalPurchasers)
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(generateReply))
	}))
	defer srv.Close()

	f, err := newRemote(t, srv, 3).Generate(context.Background(), Request{Prompt: "lotion"})
	require.NoError(t, err)
	assert.Equal(t, "Calm Night Lotion", f.ProductName)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteServiceErrorAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newRemote(t, srv, 2).Generate(context.Background(), Request{Prompt: "lotion"})
	var se *ServiceError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, se.Body, "upstream exploded")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"bad prompt"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newRemote(t, srv, 3).Generate(context.Background(), Request{Prompt: "lotion"})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteInvalidBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `<html>oops</html>`,
		"no ingredients": `{"productName": "X"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newRemote(t, srv, 0).Generate(context.Background(), Request{Prompt: "lotion"})
			assert.True(t, errors.Is(err, ErrInvalidResponse), "got %v", err)
		})
	}
}

func TestRemoteAssess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assess", r.URL.Path)
		_, _ = w.Write([]byte(`{"overallScore": 74, "summary": "Viable", "risks": ["essential oil sensitisation"]}`))
	}))
	defer srv.Close()

	a, err := newRemote(t, srv, 0).Assess(context.Background(), Request{Prompt: "lotion"})
	require.NoError(t, err)
	assert.Equal(t, 74.0, a.OverallScore)
	assert.Equal(t, []string{"essential oil sensitisation"}, a.Risks)
}

func TestRemoteRejectsInvalidRequestWithoutCalling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("service must not be called")
	}))
	defer srv.Close()

	_, err := newRemote(t, srv, 0).Generate(context.Background(), Request{Prompt: " "})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestNewRemoteClientRequiresBaseURL(t *testing.T) {
	_, err := NewRemoteClient(RemoteOptions{}, nil, nil)
	assert.Error(t, err)
}

func TestRemoteHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newRemote(t, srv, 0).Generate(ctx, Request{Prompt: "lotion"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
