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

// Package analytics reports query events to Google Analytics via the
// measurement protocol. Delivery is strictly best-effort: failures are
// logged and never propagate to the request which triggered them.
package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/czcorpus/cnc-gokit/httpclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zyros-dev/pgx-lower-api/cnf"
)

const (
	collectURL         = "https://www.google-analytics.com/mp/collect"
	requestTimeoutSecs = 5
)

type gaEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

type gaPayload struct {
	ClientID string    `json:"client_id"`
	Events   []gaEvent `json:"events"`
}

type Tracker struct {
	conf   cnf.AnalyticsConf
	client *http.Client
}

func NewTracker(conf cnf.AnalyticsConf) *Tracker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = httpclient.TransportMaxIdleConns
	transport.MaxConnsPerHost = httpclient.TransportMaxConnsPerHost
	transport.MaxIdleConnsPerHost = httpclient.TransportMaxIdleConnsPerHost
	return &Tracker{
		conf: conf,
		client: &http.Client{
			Timeout:   requestTimeoutSecs * time.Second,
			Transport: transport,
		},
	}
}

// TrackQuery reports one handled query. Safe to call from its own
// goroutine - the method never panics and never blocks longer than the
// client timeout.
func (t *Tracker) TrackQuery(requestID string, cached bool) {
	t.trackEvent("query_executed", map[string]any{
		"request_id": requestID,
		"cached":     cached,
	})
}

func (t *Tracker) trackEvent(name string, params map[string]any) {
	params["engagement_time_msec"] = "100"
	payload := gaPayload{
		ClientID: uuid.New().String(),
		Events: []gaEvent{
			{Name: name, Params: params},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode analytics event")
		return
	}

	target := fmt.Sprintf(
		"%s?measurement_id=%s", collectURL, url.QueryEscape(t.conf.MeasurementID))
	if t.conf.APISecret != "" {
		target += "&api_secret=" + url.QueryEscape(t.conf.APISecret)
	}

	resp, err := t.client.Post(target, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("analytics tracking failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		log.Warn().Int("status", resp.StatusCode).Str("event", name).Msg("analytics tracking rejected")
		return
	}
	log.Debug().Str("event", name).Msg("analytics event tracked")
}
