package firehose

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/classifier"
)

type ingestMetrics struct {
	processed  metric.Int64Counter
	indexed    metric.Int64Counter
	deleted    metric.Int64Counter
	replies    metric.Int64Counter
	reconnects metric.Int64Counter
}

func newIngestMetrics(meter metric.Meter) (*ingestMetrics, error) {
	var (
		m    ingestMetrics
		errs []error
		err  error
	)

	m.processed, err = meter.Int64Counter("feedgen_posts_processed_total",
		metric.WithDescription("Top-level post creates evaluated by the classifier."))
	errs = append(errs, err)
	m.indexed, err = meter.Int64Counter("feedgen_posts_indexed_total",
		metric.WithDescription("Posts included in the feed, by classifier reason."))
	errs = append(errs, err)
	m.deleted, err = meter.Int64Counter("feedgen_posts_deleted_total",
		metric.WithDescription("Post delete events applied to the store."))
	errs = append(errs, err)
	m.replies, err = meter.Int64Counter("feedgen_replies_skipped_total",
		metric.WithDescription("Reply posts discarded before classification."))
	errs = append(errs, err)
	m.reconnects, err = meter.Int64Counter("feedgen_firehose_reconnects_total",
		metric.WithDescription("Firehose connection drops followed by a reconnect."))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create ingest metrics: %w", err)
	}
	return &m, nil
}

func reasonAttr(r classifier.Reason) attribute.KeyValue {
	return attribute.String("reason", string(r))
}
