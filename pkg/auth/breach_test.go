package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type breachCounts struct {
	results map[string]int
}

func (b *breachCounts) RecordAuthEvent(string, string) {}
func (b *breachCounts) RecordBreachCheck(result string) {
	b.results[result]++
}

func sha1Parts(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return digest[:5], digest[5:]
}

func rangeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRangeClient_SendsOnlyPrefix(t *testing.T) {
	password := "Correct-Horse-42"
	prefix, suffix := sha1Parts(password)

	var gotPath, gotPadding string
	srv := rangeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPadding = r.Header.Get("Add-Padding")
		fmt.Fprintf(w, "0000000000000000000000000000000000A:3\r\n")
	})

	logger, _ := test.NewNullLogger()
	rc := NewRangeClient(srv.URL+"/", logger)

	breached, err := rc.Lookup(context.Background(), password)
	require.NoError(t, err)
	assert.False(t, breached)
	assert.Equal(t, "/range/"+prefix, gotPath)
	assert.Equal(t, "true", gotPadding)
	assert.NotContains(t, gotPath, suffix)
}

func TestRangeClient_Match(t *testing.T) {
	password := "password123456"
	_, suffix := sha1Parts(password)

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"listed", "ABCDEF:1\r\n" + suffix + ":42\r\n", true},
		{"lowercase suffix", strings.ToLower(suffix) + ":7\n", true},
		{"padding entry", suffix + ":0\r\n", false},
		{"absent", "ABCDEF:1\r\n", false},
		{"empty body", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rangeServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			logger, _ := test.NewNullLogger()
			metrics := &breachCounts{results: map[string]int{}}
			rc := NewRangeClient(srv.URL, logger, WithBreachMetrics(metrics))

			assert.Equal(t, tt.want, rc.IsBreached(context.Background(), password))
			if tt.want {
				assert.Equal(t, 1, metrics.results[BreachResultBreached])
			} else {
				assert.Equal(t, 1, metrics.results[BreachResultClean])
			}
		})
	}
}

func TestRangeClient_FailsOpen(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := rangeServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		logger, hook := test.NewNullLogger()
		metrics := &breachCounts{results: map[string]int{}}
		rc := NewRangeClient(srv.URL, logger, WithBreachMetrics(metrics))

		assert.False(t, rc.IsBreached(context.Background(), "Correct-Horse-42"))
		assert.Equal(t, 1, metrics.results[BreachResultUnavailable])
		require.NotNil(t, hook.LastEntry())
		assert.Contains(t, hook.LastEntry().Message, "breach check unavailable")
	})

	t.Run("timeout", func(t *testing.T) {
		var hits int32
		srv := rangeServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		logger, _ := test.NewNullLogger()
		rc := NewRangeClient(srv.URL, logger, WithBreachTimeout(50*time.Millisecond))

		start := time.Now()
		assert.False(t, rc.IsBreached(context.Background(), "Correct-Horse-42"))
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		logger, _ := test.NewNullLogger()
		rc := NewRangeClient(url, logger)
		assert.False(t, rc.IsBreached(context.Background(), "Correct-Horse-42"))
	})
}

func TestRangeClient_DefaultTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rc := NewRangeClient("", logger)
	assert.Equal(t, DefaultBreachAPIURL, rc.baseURL)
	assert.Equal(t, 5*time.Second, rc.timeout)
}
