package measurements

import (
	"context"
	"fmt"

	"github.com/dvhop-sim/go-dvhop/internal/clock"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const attDsOperationKey = "operation"

var (
	_ datastore.Datastore = (*meteredDatastore)(nil)

	attrDsOperationGet    = attribute.String(attDsOperationKey, "get")
	attrDsOperationHas    = attribute.String(attDsOperationKey, "has")
	attrDsOperationQuery  = attribute.String(attDsOperationKey, "query")
	attrDsOperationPut    = attribute.String(attDsOperationKey, "put")
	attrDsOperationDelete = attribute.String(attDsOperationKey, "delete")
)

// meteredDatastore measures the operations used to read and write records.
// GetSize, Sync and Close pass through to the delegate unmeasured.
type meteredDatastore struct {
	datastore.Datastore

	latency metric.Float64Histogram
	bytes   metric.Int64Histogram
}

// NewMeteredDatastore wraps the delegate with metrics, measuring latency and
// bytes exchanged depending on the operation. Latency is measured with the
// clock found in the context of each operation.
func NewMeteredDatastore(meter metric.Meter, metricsPrefix string, delegate datastore.Datastore) datastore.Datastore {
	return &meteredDatastore{
		Datastore: delegate,
		latency: Must(meter.Float64Histogram(
			fmt.Sprintf("%slatency", metricsPrefix),
			metric.WithDescription("The datastore latency labelled by operation and status."),
			metric.WithUnit("s"))),
		bytes: Must(meter.Int64Histogram(
			fmt.Sprintf("%sbytes", metricsPrefix),
			metric.WithDescription("The datastore exchanged bytes labelled by operation and status."),
			metric.WithUnit("By"))),
	}
}

// observe starts timing an operation. The returned function records it, along
// with the number of bytes exchanged unless negative.
func (m *meteredDatastore) observe(ctx context.Context, operation attribute.KeyValue) func(bytes int, err error) {
	clk := clock.GetClock(ctx)
	start := clk.Now()
	return func(bytes int, err error) {
		attributes := metric.WithAttributes(operation, Status(ctx, err))
		m.latency.Record(ctx, clk.Since(start).Seconds(), attributes)
		if bytes > -1 {
			m.bytes.Record(ctx, int64(bytes), attributes)
		}
	}
}

func (m *meteredDatastore) Get(ctx context.Context, key datastore.Key) ([]byte, error) {
	done := m.observe(ctx, attrDsOperationGet)
	value, err := m.Datastore.Get(ctx, key)
	done(len(value), err)
	return value, err
}

func (m *meteredDatastore) Has(ctx context.Context, key datastore.Key) (bool, error) {
	done := m.observe(ctx, attrDsOperationHas)
	exists, err := m.Datastore.Has(ctx, key)
	done(-1, err)
	return exists, err
}

func (m *meteredDatastore) Query(ctx context.Context, q query.Query) (query.Results, error) {
	done := m.observe(ctx, attrDsOperationQuery)
	results, err := m.Datastore.Query(ctx, q)
	done(-1, err)
	return results, err
}

func (m *meteredDatastore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	done := m.observe(ctx, attrDsOperationPut)
	err := m.Datastore.Put(ctx, key, value)
	done(len(value), err)
	return err
}

func (m *meteredDatastore) Delete(ctx context.Context, key datastore.Key) error {
	done := m.observe(ctx, attrDsOperationDelete)
	err := m.Datastore.Delete(ctx, key)
	done(-1, err)
	return err
}
