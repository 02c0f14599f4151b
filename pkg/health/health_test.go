package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

type body struct {
	Status string
	Checks map[string]string
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) body {
	t.Helper()
	var b body
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			b.Status = s
			return err
		case "checks":
			b.Checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, name string) error {
				s, err := d.Str()
				b.Checks[name] = s
				return err
			})
		default:
			return d.Skip()
		}
	}))
	return b
}

func get(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())
	h.AddLivenessCheck("gc", time.Second, passingCheck())

	w := get(h.LiveEndpoint)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeBody(t, w).Status)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingCheck("too many"))

	ctx := context.Background()
	for range 3 {
		h.liveness[0].poll(ctx)
	}

	w := get(h.LiveEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	b := decodeBody(t, w)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, "too many", b.Checks["goroutines"])
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", time.Second, failingCheck("temporary"))

	ctx := context.Background()
	h.liveness[0].poll(ctx)
	h.liveness[0].poll(ctx)

	assert.Equal(t, http.StatusOK, get(h.LiveEndpoint).Code)
}

func TestWithThresholds(t *testing.T) {
	h := New()
	h.AddReadinessCheck("catalog", time.Second, failingCheck("refused"), WithThresholds(1, 2))
	h.SetReady(true)
	p := h.readiness[0]
	ctx := context.Background()

	p.poll(ctx)
	assert.False(t, h.IsReady(), "one failure is enough")

	p.check = passingCheck()
	p.poll(ctx)
	assert.False(t, h.IsReady(), "two passes are needed")
	p.poll(ctx)
	assert.True(t, h.IsReady())

	// Non-positive values keep the defaults.
	h.AddLivenessCheck("x", time.Second, passingCheck(), WithThresholds(0, -1))
	assert.Equal(t, 3, h.liveness[0].failureThreshold)
	assert.Equal(t, 1, h.liveness[0].successThreshold)
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready and passing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("catalog", time.Second, passingCheck())
		h.SetReady(true)

		w := get(h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decodeBody(t, w).Status)
	})

	t.Run("not marked ready", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("catalog", time.Second, passingCheck())

		w := get(h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, decodeBody(t, w).Checks, "_readiness")
	})

	t.Run("one of several failing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("catalog", time.Second, failingCheck("connection refused"))
		h.AddReadinessCheck("other", time.Second, passingCheck())
		h.SetReady(true)
		for range 3 {
			h.readiness[0].poll(context.Background())
		}

		w := get(h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		b := decodeBody(t, w)
		assert.Equal(t, "connection refused", b.Checks["catalog"])
		assert.NotContains(t, b.Checks, "other")
	})

	t.Run("flips with SetReady", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		assert.Equal(t, http.StatusOK, get(h.ReadyEndpoint).Code)
		h.SetReady(false)
		assert.Equal(t, http.StatusServiceUnavailable, get(h.ReadyEndpoint).Code)
	})
}

func TestProbeRecovers(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]
	ctx := context.Background()

	assert.Nil(t, p.lastError())
	for range 3 {
		p.poll(ctx)
	}
	assert.False(t, p.healthy.Load())
	assert.EqualError(t, p.lastError(), "down")

	failing = false
	p.poll(ctx)
	assert.True(t, p.healthy.Load())
	assert.NoError(t, p.lastError())
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failingCheck("err"))
	h.AddReadinessCheck("ready", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				get(h.LiveEndpoint)
				get(h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()
	h.Stop()
	h.Stop()
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	err := GoroutineCountCheck(0)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))

	assert.NoError(t, PingCheck(fakePinger{})(ctx))
	assert.EqualError(t, PingCheck(fakePinger{err: errors.New("refused")})(ctx), "refused")
}
