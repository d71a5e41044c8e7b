package logger

import "sync/atomic"

const DefaultSampleCount = 100

// Sampler rate-limits log lines produced on a hot path, one in every
// sampleCount calls passes. Safe for concurrent use.
type Sampler struct {
	count       atomic.Int64
	sampleCount int64
}

func NewSampler(sampleCount int64) *Sampler {
	if sampleCount <= 0 {
		sampleCount = DefaultSampleCount
	}
	return &Sampler{
		sampleCount: sampleCount,
	}
}

func (s *Sampler) Ok() bool {
	return (s.count.Add(1)-1)%s.sampleCount == 0
}
