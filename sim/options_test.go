package sim

import (
	"testing"
	"time"

	"github.com/dvhop-sim/go-dvhop/sim/latency"
	"github.com/stretchr/testify/require"
)

func TestOptions_ComponentsDrawFromIndependentSeeds(t *testing.T) {
	var latencySeed int64
	subject, err := newOptions(
		WithSeed(7),
		WithSeededLatency(func(seed int64) (latency.Model, error) {
			latencySeed = seed
			return latency.None, nil
		}),
	)
	require.NoError(t, err)

	got := []int64{subject.seeds.topology, subject.seeds.jitter, subject.seeds.latency, subject.seeds.churn}
	require.NotContains(t, got, int64(7))
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			require.NotEqual(t, got[i], got[j])
		}
	}
	require.Equal(t, subject.seeds.latency, latencySeed)
	require.Equal(t, latency.None, subject.latencyModel)

	again, err := newOptions(WithSeed(7))
	require.NoError(t, err)
	require.Equal(t, subject.seeds, again.seeds)

	// Successive seeds, as used by successive iterations, share no component seed.
	next, err := newOptions(WithSeed(8))
	require.NoError(t, err)
	require.NotContains(t, []int64{next.seeds.topology, next.seeds.jitter, next.seeds.latency, next.seeds.churn}, subject.seeds.jitter)
}

func TestOptions_ExplicitLatencyModelWins(t *testing.T) {
	explicit, err := latency.NewLogNormal(1, time.Millisecond)
	require.NoError(t, err)
	subject, err := newOptions(
		WithLatencyModel(explicit),
		WithSeededLatency(func(int64) (latency.Model, error) { return latency.None, nil }),
	)
	require.NoError(t, err)
	require.Same(t, explicit, subject.latencyModel)

	_, err = newOptions(WithSeededLatency(nil))
	require.Error(t, err)
}
