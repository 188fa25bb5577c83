package datadog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyload/internal/metrics"
)

type sample struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	samples []sample
	flushes int
	closes  int
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.samples = append(f.samples, sample{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.samples = append(f.samples, sample{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Flush() error { f.flushes++; return nil }
func (f *fakeClient) Close() error { f.closes++; return nil }

func TestNewBackend(t *testing.T) {
	_, err := NewBackend(Config{})
	require.Error(t, err)

	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "companyload.", GlobalTags: []string{"env:test"}})
	require.NoError(t, err)
	require.NotNil(t, b.client)
	assert.NoError(t, b.Close())
}

func TestBackend_ForwardsWithTags(t *testing.T) {
	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"kind": "inserted", "job": "companies"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "persist"})
	require.NoError(t, b.Flush())
	require.NoError(t, b.Close())

	require.Len(t, fc.samples, 2)
	assert.Equal(t, sample{"count", metrics.RecordsTotal, 3, []string{"job:companies", "kind:inserted"}}, fc.samples[0])
	assert.Equal(t, sample{"histogram", metrics.StepDurationSeconds, 0.5, []string{"step:persist"}}, fc.samples[1])
	assert.Equal(t, 1, fc.flushes)
	assert.Equal(t, 1, fc.closes)
}

func TestLabelsToTags(t *testing.T) {
	assert.Nil(t, labelsToTags(nil))
	assert.Equal(t, []string{"a:1", "b:2"}, labelsToTags(metrics.Labels{"b": "2", "a": "1"}))
}
