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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyros-dev/pgx-lower-api/ir"
)

type fakeEngine struct {
	outputs  []QueryOutput
	execErr  error
	executed int

	versionErr     error
	versionStarted chan struct{}
	versionRelease chan struct{}
}

func (fe *fakeEngine) Name() string { return "fake" }

func (fe *fakeEngine) Connect(ctx context.Context) error { return nil }

func (fe *fakeEngine) Disconnect(ctx context.Context) error { return nil }

func (fe *fakeEngine) Version(ctx context.Context) (string, error) {
	if fe.versionStarted != nil {
		close(fe.versionStarted)
		fe.versionStarted = nil
	}
	if fe.versionRelease != nil {
		<-fe.versionRelease
	}
	if fe.versionErr != nil {
		return "", fe.versionErr
	}
	return "fake 1.0", nil
}

func (fe *fakeEngine) Execute(ctx context.Context, query string) ([]QueryOutput, error) {
	fe.executed++
	if fe.execErr != nil {
		return nil, fe.execErr
	}
	return fe.outputs, nil
}

type fakeIntroEngine struct {
	fakeEngine
	ensureErr  error
	enableErr  error
	stages     []ir.Stage
	collectErr error
	purges     int
}

func (fie *fakeIntroEngine) EnableIntrospection(ctx context.Context) error {
	return fie.enableErr
}

func (fie *fakeIntroEngine) EnsureStagingDir() error { return fie.ensureErr }

func (fie *fakeIntroEngine) PurgeStages() int {
	fie.purges++
	return 0
}

func (fie *fakeIntroEngine) CollectStages() ([]ir.Stage, error) {
	if fie.collectErr != nil {
		return nil, fie.collectErr
	}
	return fie.stages, nil
}

func testRunner() *Runner {
	runner := NewRunner(NewGate(time.Second))
	runner.FlushDelay = time.Millisecond
	return runner
}

func TestRunnerRejectsInvalidQueryBeforeExecution(t *testing.T) {
	eng := &fakeEngine{}
	_, err := testRunner().Run(context.Background(), eng, "DROP TABLE x")
	assert.True(t, errors.Is(err, ErrInvalidQuery))
	assert.Zero(t, eng.executed)
}

func TestRunnerAppendsStagesAsDiagnosticOutputs(t *testing.T) {
	lat := 12.5
	eng := &fakeIntroEngine{
		fakeEngine: fakeEngine{
			outputs: []QueryOutput{{Title: "Optimized Results", Content: "r", Latency: &lat}},
		},
		stages: []ir.Stage{
			{Label: "RelAlg Lowering", Content: "relalg"},
			{Label: "JIT Compilation", Content: "jit"},
		},
	}

	result, err := testRunner().Run(context.Background(), eng, "SELECT 1")
	require.NoError(t, err)
	require.Len(t, result.Outputs, 3)
	assert.Equal(t, "IR: RelAlg Lowering", result.Outputs[1].Title)
	assert.Equal(t, "IR: JIT Compilation", result.Outputs[2].Title)
	assert.Nil(t, result.Outputs[1].Latency)
	assert.Nil(t, result.Outputs[2].Latency)
	assert.Equal(t, 12.5, result.LatencyMs)
	assert.Equal(t, "fake 1.0", result.Version)
	assert.Equal(t, 2, eng.purges, "staging dir must be purged before and after the run")
}

func TestRunnerPurgesStagesOnExecuteFailure(t *testing.T) {
	eng := &fakeIntroEngine{
		fakeEngine: fakeEngine{execErr: errors.New("engine crashed")},
	}
	_, err := testRunner().Run(context.Background(), eng, "SELECT 1")
	assert.Error(t, err)
	assert.Equal(t, 2, eng.purges, "failed run must still purge its stage files")
}

func TestRunnerPurgesStagesOnIntrospectionFailure(t *testing.T) {
	eng := &fakeIntroEngine{enableErr: errors.New("extension missing")}
	_, err := testRunner().Run(context.Background(), eng, "SELECT 1")
	assert.Error(t, err)
	assert.Zero(t, eng.executed)
	assert.Equal(t, 2, eng.purges)
}

func TestRunnerStagingDirFailureAborts(t *testing.T) {
	eng := &fakeIntroEngine{ensureErr: errors.New("permission denied")}
	_, err := testRunner().Run(context.Background(), eng, "SELECT 1")
	assert.Error(t, err)
	assert.Zero(t, eng.executed)
}

func TestRunnerCollectFailureKeepsResults(t *testing.T) {
	eng := &fakeIntroEngine{
		fakeEngine: fakeEngine{
			outputs: []QueryOutput{{Title: "Optimized Results", Content: "r"}},
		},
		collectErr: errors.New("staging dir unreadable"),
	}
	result, err := testRunner().Run(context.Background(), eng, "SELECT 1")
	require.NoError(t, err)
	assert.Len(t, result.Outputs, 1)
}

func TestRunnerVersionFetchedUnderGate(t *testing.T) {
	gate := NewGate(time.Second)
	runner := NewRunner(gate)
	eng := &fakeEngine{
		versionStarted: make(chan struct{}),
		versionRelease: make(chan struct{}),
	}
	started := eng.versionStarted

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), eng, "SELECT 1")
		done <- err
	}()
	<-started

	// the version query is still in flight, so the gate must be held
	_, err := gate.RunExclusive(
		context.Background(),
		func(ctx context.Context) ([]QueryOutput, error) {
			return nil, nil
		},
		30*time.Millisecond,
	)
	assert.True(t, errors.Is(err, ErrExecutionTimeout))

	close(eng.versionRelease)
	require.NoError(t, <-done)
}
