package warehouse

import "context"

// NoopSink discards every record. Used when no warehouse is configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (*NoopSink) Insert(context.Context, MirroredRecord) error {
	return nil
}

func (*NoopSink) Close() error {
	return nil
}
