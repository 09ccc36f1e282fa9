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
	"fmt"
	"time"
)

// Gate serializes query executions across all engines so that latency
// measurements are never skewed by a concurrent query sharing the
// execution path. A single Gate instance is constructed at startup and
// injected into every component which executes queries.
type Gate struct {
	slot        chan struct{}
	dfltTimeout time.Duration
}

func NewGate(timeout time.Duration) *Gate {
	g := &Gate{
		slot:        make(chan struct{}, 1),
		dfltTimeout: timeout,
	}
	return g
}

// RunExclusive runs fn with at most one task holding the gate at any
// instant. The timeout covers both the wait for the gate and the run of
// fn; zero means the gate's default. On timeout the caller is unblocked
// with ErrExecutionTimeout - fn, if already started, keeps running with
// a cancelled context and releases the gate when it returns, so an
// uninterruptible execution can never leave the gate held.
func (g *Gate) RunExclusive(
	ctx context.Context,
	fn func(ctx context.Context) ([]QueryOutput, error),
	timeout time.Duration,
) ([]QueryOutput, error) {
	if timeout == 0 {
		timeout = g.dfltTimeout
	}
	dlAt := time.Now().Add(timeout)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case g.slot <- struct{}{}:
	case <-deadline.C:
		return nil, fmt.Errorf("%w: waited %v for the execution gate", ErrExecutionTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type outcome struct {
		outputs []QueryOutput
		err     error
	}
	runCtx, cancel := context.WithDeadline(ctx, dlAt)
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-g.slot }()
		defer cancel()
		outputs, err := fn(runCtx)
		done <- outcome{outputs: outputs, err: err}
	}()

	select {
	case res := <-done:
		return res.outputs, res.err
	case <-deadline.C:
		cancel()
		return nil, fmt.Errorf("%w: execution exceeded %v", ErrExecutionTimeout, timeout)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}
