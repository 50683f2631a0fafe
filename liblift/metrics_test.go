package liblift

import (
	"testing"

	"github.com/2x3systems/golift/libfg"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeMetrics(t *testing.T) {
	fg, err := libfg.ParseFactorGraph(`
		var A, B, C
		factor f1(A, B) = [1, 2, 3, 4]
		factor f2(C, B) = [1, 3, 2, 4]
		factor f3(A, C) = [4, 3, 2, 1]
	`)
	require.NoError(t, err)

	checks := testutil.ToFloat64(metrics.exchangeChecks)
	hits := testutil.ToFloat64(metrics.exchangeHits)
	leaves := testutil.ToFloat64(metrics.verifiedLeaves)

	cache := NewBucketCache()
	ok, err := IsExchangeable(fg.FactorByName("f1"), fg.FactorByName("f2"), cache, false)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = IsExchangeable(fg.FactorByName("f1"), fg.FactorByName("f3"), cache, false)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, checks+2, testutil.ToFloat64(metrics.exchangeChecks))
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.exchangeHits))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.verifiedLeaves), leaves+1)
}
