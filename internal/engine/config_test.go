package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	rt := Init(Config{})
	t.Cleanup(func() { _ = rt.Close() })

	assert.IsType(t, &PooledTransport{}, rt.Transport)
	sig, err := rt.Signer.Sign(t.Context(), "/x/", "a=1", "")
	require.NoError(t, err)
	assert.Empty(t, sig)
	assert.NotNil(t, rt.Cache)
	assert.False(t, rt.Limiter.Paused())
}

func TestInitOptions(t *testing.T) {
	rt := Init(Config{
		UserAgent:      "UA Chrome/130.0.0.0 x",
		SignerURL:      "http://127.0.0.1:1/sign",
		RetryBaseDelay: 5 * time.Millisecond,
		UpstreamRPS:    10,
		UpstreamBurst:  2,
	})
	t.Cleanup(func() { _ = rt.Close() })

	assert.IsType(t, &HTTPSigner{}, rt.Signer)
	o := rt.Options()
	assert.Equal(t, "UA Chrome/130.0.0.0 x", o.UserAgent)
	assert.Same(t, rt.Limiter, o.Limiter)
	assert.Equal(t, 5*time.Millisecond, o.RetryBaseDelay)

	r := New(o)
	assert.Equal(t, "UA Chrome/130.0.0.0 x", r.UserAgent())
	assert.Equal(t, 5*time.Millisecond, r.fetchPolicy.BaseDelay)
}

func TestFormatMetrics(t *testing.T) {
	before := GetMetrics()["rotations"]
	metrics.Rotations.Add(2)
	assert.Equal(t, before+2, GetMetrics()["rotations"])

	out := FormatMetrics()
	for _, k := range []string{"fetch_json_requests", "retries", "webid_fallbacks", "cache_hits"} {
		assert.Contains(t, out, k+" ")
	}
}
