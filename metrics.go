package dvhop

import (
	"context"

	"github.com/dvhop-sim/go-dvhop/internal/measurements"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// bgCtx is used to record measurements from call sites that are not given a
// context, such as table updates inside the simulation event loop.
var bgCtx = context.Background()

var meter = otel.Meter("dvhop")
var metrics = struct {
	tableUpdates      metric.Int64Counter
	hopSizeSentinels  metric.Int64Counter
	localisations     metric.Int64Counter
	localisationError metric.Float64Histogram
	kills             metric.Int64Counter
}{
	tableUpdates:     measurements.Must(meter.Int64Counter("dvhop_distance_table_updates", metric.WithDescription("Number of distance table entries inserted or improved."))),
	hopSizeSentinels: measurements.Must(meter.Int64Counter("dvhop_hop_size_no_connectivity", metric.WithDescription("Number of beacons that saw no other beacon when calibrating hop size."))),
	localisations:    measurements.Must(meter.Int64Counter("dvhop_localisations", metric.WithDescription("Number of localisation attempts labelled by status."))),
	localisationError: measurements.Must(meter.Float64Histogram("dvhop_localisation_error",
		metric.WithDescription("Histogram of distance between estimated and true node position."),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 30, 50, 75, 100, 200),
	)),
	kills: measurements.Must(meter.Int64Counter("dvhop_churn_kills", metric.WithDescription("Number of nodes transitioned from alive to killed."))),
}

func recordLocalisation(ctx context.Context, status Status) {
	metrics.localisations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
}
