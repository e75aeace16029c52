package domain

import (
	"time"

	"github.com/guregu/null/v5"
)

// GroupKey holds the per-kind grouping fields of a rollup row:
// (host, port) for tcp, (fqdn, resolver) for dns, (url, method) for http.
type GroupKey struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	FQDN     string `json:"fqdn,omitempty"`
	Resolver string `json:"resolver,omitempty"`
	URL      string `json:"url,omitempty"`
	Method   string `json:"method,omitempty"`
}

type BucketKey struct {
	Start time.Time
	Group GroupKey
}

// AggregateRow is the per-minute rollup of one group. Latency statistics
// cover successful samples only and are null when SuccessCount is zero.
type AggregateRow struct {
	Kind         Kind       `json:"kind"`
	Bucket       time.Time  `json:"bucket"`
	Key          GroupKey   `json:"key"`
	Count        int        `json:"count"`
	SuccessCount int        `json:"success_count"`
	P50          null.Float `json:"p50"`
	P95          null.Float `json:"p95"`
	Avg          null.Float `json:"avg"`
	Min          null.Float `json:"min"`
	Max          null.Float `json:"max"`
}

type SeriesPoint struct {
	Bucket      time.Time  `json:"bucket"`
	Count       int        `json:"count"`
	SuccessRate float64    `json:"success_rate"`
	P50         null.Float `json:"p50"`
	P95         null.Float `json:"p95"`
	Avg         null.Float `json:"avg"`
}
