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

package cnf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerReadTimeoutSecs  = 30
	dfltServerWriteTimeoutSecs = 120
	dfltGateTimeoutSecs        = 60
	dfltStagingDir             = "/tmp/pgx_ir"
	dfltCachedLimitPerMin      = 100
	dfltUncachedLimitPerMin    = 10
	dfltStatsLimit             = 24
	dfltTimeZone               = "UTC"
)

// EngineConf describes a single backing query engine connection.
type EngineConf struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

func (ec EngineConf) IsZero() bool {
	return ec.Host == "" && ec.Port == 0
}

type RateLimitConf struct {
	CachedPerMin   int `json:"cachedPerMin"`
	UncachedPerMin int `json:"uncachedPerMin"`
}

type AnalyticsConf struct {
	MeasurementID string `json:"measurementId"`
	APISecret     string `json:"apiSecret"`
}

// Conf is a global configuration of the pgx-lower-api process.
type Conf struct {
	srcPath                string
	Logging                logging.LoggingConf `json:"logging"`
	ListenAddress          string              `json:"listenAddress"`
	ListenPort             int                 `json:"listenPort"`
	PublicURL              string              `json:"publicUrl"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	CorsAllowedOrigins     []string            `json:"corsAllowedOrigins"`
	TimeZone               string              `json:"timeZone"`

	// WorkingDBPath is a path to the sqlite database with the request
	// audit log, result cache, latency log and hourly stats.
	WorkingDBPath string `json:"workingDbPath"`

	// StagingDir is a directory shared with the pgx-lower engine process
	// where per-stage IR dumps are deposited during a query execution.
	StagingDir string `json:"stagingDir"`

	// GateTimeoutSecs bounds the wait-plus-run time of a single gated
	// query execution.
	GateTimeoutSecs int `json:"gateTimeoutSecs"`

	Postgres   EngineConf    `json:"postgres"`
	PgxLower   EngineConf    `json:"pgxLower"`
	RateLimit  RateLimitConf `json:"rateLimit"`
	Analytics  AnalyticsConf `json:"analytics"`
	StatsLimit int           `json:"statsLimit"`
}

func (conf *Conf) GateTimeout() time.Duration {
	return time.Duration(conf.GateTimeoutSecs) * time.Second
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	var conf Conf
	conf.srcPath = path
	err = json.Unmarshal(rawData, &conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return &conf
}

func ValidateAndDefaults(conf *Conf) {
	if conf.ServerReadTimeoutSecs == 0 {
		conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
		log.Warn().Msgf(
			"serverReadTimeoutSecs not specified, using default: %d",
			dfltServerReadTimeoutSecs,
		)
	}
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}
	if conf.PublicURL == "" {
		conf.PublicURL = fmt.Sprintf("http://%s", conf.ListenAddress)
		log.Warn().Str("address", conf.PublicURL).Msg("publicUrl not set, using listenAddress")
	}
	if conf.WorkingDBPath == "" {
		log.Fatal().Msg("workingDbPath not specified")
	}
	if conf.StagingDir == "" {
		conf.StagingDir = dfltStagingDir
		log.Warn().Str("dir", dfltStagingDir).Msg("stagingDir not specified, using default")
	}
	if conf.GateTimeoutSecs == 0 {
		conf.GateTimeoutSecs = dfltGateTimeoutSecs
		log.Warn().Msgf(
			"gateTimeoutSecs not specified, using default: %d", dfltGateTimeoutSecs)
	}
	if conf.RateLimit.CachedPerMin == 0 {
		conf.RateLimit.CachedPerMin = dfltCachedLimitPerMin
	}
	if conf.RateLimit.UncachedPerMin == 0 {
		conf.RateLimit.UncachedPerMin = dfltUncachedLimitPerMin
	}
	if conf.StatsLimit == 0 {
		conf.StatsLimit = dfltStatsLimit
	}
	if conf.PgxLower.IsZero() {
		log.Fatal().Msg("pgxLower engine connection not specified")
	}
	if conf.Postgres.IsZero() {
		log.Warn().Msg("postgres engine connection not specified - comparison disabled")
	}
	if conf.TimeZone == "" {
		conf.TimeZone = dfltTimeZone
		log.Warn().
			Str("timeZone", dfltTimeZone).
			Msg("time zone not specified, using default")
	}
	if _, err := time.LoadLocation(conf.TimeZone); err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}
}
