package places

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/geonear/nearby-service/app/observability/metrics"
)

// MetricsObserver records pipeline events onto the application's otel
// instruments. Construct it only after metrics.InitAppMetrics has run.
type MetricsObserver struct {
	app *metrics.AppMetrics
}

var (
	_ RequestObserver = (*MetricsObserver)(nil)
	_ DedupeObserver  = (*MetricsObserver)(nil)
)

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{app: metrics.Get()}
}

func (o *MetricsObserver) ObserveUpstreamRequest(ctx context.Context, route string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("route", route))
	o.app.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	o.app.UpstreamDurationSeconds.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		o.app.UpstreamErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (o *MetricsObserver) ObserveDroppedRecords(ctx context.Context, count int) {
	o.app.PlacesDroppedTotal.Add(ctx, int64(count))
}

func (o *MetricsObserver) ObserveDedupeSkip(ctx context.Context) {
	o.app.DedupeSkipsTotal.Add(ctx, 1)
}

// ObserveCacheHit counts a response served from the facade cache.
func (o *MetricsObserver) ObserveCacheHit(ctx context.Context, kind string) {
	o.app.CacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", kind)))
}
