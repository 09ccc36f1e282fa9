// Copyright 2025 Zyros Dev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type apiMetrics struct {
	queriesTotal   *prometheus.CounterVec
	cacheHits      prometheus.Counter
	rateLimited    prometheus.Counter
	engineFailures *prometheus.CounterVec
}

func newAPIMetrics(reg *prometheus.Registry) *apiMetrics {
	factory := promauto.With(reg)
	return &apiMetrics{
		queriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgxapi_queries_total",
				Help: "Total number of executed queries per engine.",
			},
			[]string{"engine"},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pgxapi_cache_hits_total",
				Help: "Total number of query responses served from the result cache.",
			},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pgxapi_rate_limited_total",
				Help: "Total number of requests denied by the rate limiter.",
			},
		),
		engineFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgxapi_engine_failures_total",
				Help: "Total number of failed engine executions per engine.",
			},
			[]string{"engine"},
		),
	}
}
