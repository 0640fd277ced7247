package recommend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req recommendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "morning sickness", req.Symptoms)

		json.NewEncoder(w).Encode(recommendResponse{
			DoctorID:    "c42",
			Explanation: "Dr. Santos handles prenatal nutrition.",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	rec, err := c.Recommend(context.Background(), "morning sickness")
	require.NoError(t, err)
	assert.Equal(t, "c42", rec.ConsultantID)
	assert.Equal(t, "Dr. Santos handles prenatal nutrition.", rec.Explanation)
}

func TestRecommendServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(recommendResponse{Error: "no matching consultant"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Recommend(context.Background(), "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching consultant")
}

func TestRecommendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Recommend(context.Background(), "anything")
	assert.Error(t, err)
}

func TestRecommendUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		json.NewEncoder(w).Encode(recommendResponse{DoctorID: "c1", Explanation: "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	c.UseRedisCache(rdb, time.Minute)

	_, err := c.Recommend(context.Background(), "Back pain")
	require.NoError(t, err)
	// Same symptoms modulo case and spacing hit the cache.
	_, err = c.Recommend(context.Background(), "  back   PAIN ")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
