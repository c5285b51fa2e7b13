package sim

import (
	"github.com/dvhop-sim/go-dvhop/internal/measurements"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("dvhop/sim")
var metrics = struct {
	events metric.Int64Counter
	runs   metric.Int64Counter
}{
	events: measurements.Must(meter.Int64Counter("dvhop_sim_events", metric.WithDescription("Number of simulation events delivered labelled by kind."))),
	runs:   measurements.Must(meter.Int64Counter("dvhop_sim_runs", metric.WithDescription("Number of completed live phases."))),
}
