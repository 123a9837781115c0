// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/loopwise/internal/domain/dynamics"
)

// Status is the lifecycle state of an analysis job.
type Status string

// Job statuses.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Request is one analysis submission.
// Fields mirror the JSON body of POST /analyses.
type Request struct {
	EntityName  string               `json:"entity_name" yaml:"entity_name"`
	DomainLabel string               `json:"domain_label" yaml:"domain_label"`
	MetricNames []string             `json:"metric_names" yaml:"metric_names"` // defaults to the sorted series keys
	TimeSeries  map[string][]float64 `json:"time_series" yaml:"time_series"`
}

// Names returns MetricNames, or the sorted series keys when none were given.
func (r Request) Names() []string {
	if len(r.MetricNames) > 0 {
		return r.MetricNames
	}
	names := make([]string, 0, len(r.TimeSeries))
	for name := range r.TimeSeries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the request shape before it is queued. maxMetrics <= 0
// disables the metric count limit.
func (r Request) Validate(maxMetrics int) error {
	if len(r.TimeSeries) == 0 {
		return fmt.Errorf("%w: time_series must not be empty", ErrInvalidRequest)
	}
	names := r.Names()
	if maxMetrics > 0 && len(names) > maxMetrics {
		return fmt.Errorf("%w: %d metrics exceeds the limit of %d", ErrInvalidRequest, len(names), maxMetrics)
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: metric names must not be blank", ErrInvalidRequest)
		}
		series, ok := r.TimeSeries[name]
		if !ok {
			return fmt.Errorf("%w: metric %q has no series", ErrInvalidRequest, name)
		}
		for i, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: metric %q has a non-finite value at %d", ErrInvalidRequest, name, i)
			}
		}
	}
	return nil
}

// Fingerprint is a stable hash of the request used for idempotency. Two
// requests with the same entity, domain, metric order and observations share
// a fingerprint regardless of map iteration order.
func (r Request) Fingerprint() string {
	h := sha256.New()
	writeString := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	writeFloats := func(xs []float64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(len(xs)))
		h.Write(b[:])
		for _, v := range xs {
			binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
			h.Write(b[:])
		}
	}

	writeString(r.EntityName)
	writeString(r.DomainLabel)
	names := r.Names()
	for _, name := range names {
		writeString(name)
	}

	keys := make([]string, 0, len(r.TimeSeries))
	for k := range r.TimeSeries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(k)
		writeFloats(r.TimeSeries[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Submission is the outcome of accepting a request.
type Submission struct {
	JobID     string `json:"id" yaml:"id"`
	Duplicate bool   `json:"duplicate" yaml:"duplicate"`
}

// Job tracks one submitted analysis through the queue and worker pool.
type Job struct {
	ID          string             `json:"id" yaml:"id"`
	Fingerprint string             `json:"fingerprint" yaml:"fingerprint"`
	Status      Status             `json:"status" yaml:"status"`
	Request     Request            `json:"-" yaml:"-"`
	Result      *dynamics.Analysis `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at" yaml:"submitted_at"`
	StartedAt   time.Time          `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	FinishedAt  time.Time          `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}
