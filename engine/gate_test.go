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

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateExclusivity(t *testing.T) {
	gate := NewGate(60 * time.Second)

	type span struct {
		start time.Time
		end   time.Time
	}
	spans := make([]span, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := gate.RunExclusive(
				context.Background(),
				func(ctx context.Context) ([]QueryOutput, error) {
					spans[i].start = time.Now()
					time.Sleep(50 * time.Millisecond)
					spans[i].end = time.Now()
					return nil, nil
				},
				0,
			)
			assert.NoError(t, err)
		}(i)
	}
	t0 := time.Now()
	wg.Wait()
	elapsed := time.Since(t0)

	first, second := spans[0], spans[1]
	if second.start.Before(first.start) {
		first, second = second, first
	}
	assert.False(t, second.start.Before(first.end),
		"second task started before the first one finished")
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestGateTimeoutWhileRunning(t *testing.T) {
	gate := NewGate(60 * time.Second)
	t0 := time.Now()
	_, err := gate.RunExclusive(
		context.Background(),
		func(ctx context.Context) ([]QueryOutput, error) {
			time.Sleep(300 * time.Millisecond)
			return nil, nil
		},
		50*time.Millisecond,
	)
	assert.True(t, errors.Is(err, ErrExecutionTimeout))
	assert.Less(t, time.Since(t0), 250*time.Millisecond,
		"caller blocked past the timeout")
}

func TestGateTimeoutWhileWaiting(t *testing.T) {
	gate := NewGate(60 * time.Second)
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		gate.RunExclusive(
			context.Background(),
			func(ctx context.Context) ([]QueryOutput, error) {
				close(started)
				<-release
				return nil, nil
			},
			0,
		)
	}()
	<-started

	_, err := gate.RunExclusive(
		context.Background(),
		func(ctx context.Context) ([]QueryOutput, error) {
			return nil, nil
		},
		30*time.Millisecond,
	)
	assert.True(t, errors.Is(err, ErrExecutionTimeout))
	close(release)
}

func TestGateReleasedAfterAbandonedTask(t *testing.T) {
	gate := NewGate(60 * time.Second)

	// first task outlives its timeout and is abandoned
	_, err := gate.RunExclusive(
		context.Background(),
		func(ctx context.Context) ([]QueryOutput, error) {
			time.Sleep(80 * time.Millisecond)
			return nil, nil
		},
		20*time.Millisecond,
	)
	assert.True(t, errors.Is(err, ErrExecutionTimeout))

	// once the abandoned task returns, the gate must admit new tasks
	outputs, err := gate.RunExclusive(
		context.Background(),
		func(ctx context.Context) ([]QueryOutput, error) {
			return []QueryOutput{{Title: "ok"}}, nil
		},
		500*time.Millisecond,
	)
	assert.NoError(t, err)
	assert.Len(t, outputs, 1)
}

func TestTotalLatencySkipsDiagnosticOutputs(t *testing.T) {
	lat1 := 10.5
	lat2 := 4.5
	outputs := []QueryOutput{
		{Title: "results", Latency: &lat1},
		{Title: "IR: RelAlg Lowering"},
		{Title: "plan", Latency: &lat2},
	}
	assert.Equal(t, 15.0, TotalLatency(outputs))
}
