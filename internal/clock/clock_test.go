package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/dvhop-sim/go-dvhop/internal/clock"
	"github.com/stretchr/testify/require"
)

func TestGetClock(t *testing.T) {
	ctx, mock := clock.WithMockClock(context.Background())
	mock.Add(time.Hour)
	require.True(t, time.Unix(3600, 0).Equal(clock.GetClock(ctx).Now()))

	require.WithinDuration(t, time.Now(), clock.GetClock(context.Background()).Now(), time.Minute)
}
