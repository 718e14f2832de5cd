// Copyright 2025 go-warplower Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestForEach(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	results := make([]int, n)
	var perWorker [4]int
	err := pool.ForEach(context.Background(), n, func(worker, i int) error {
		results[i] = i * 2
		perWorker[worker]++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	for i := range n {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
	total := 0
	for _, c := range perWorker {
		total += c
	}
	if total != n {
		t.Errorf("per-worker counts sum to %d, want %d", total, n)
	}
}

func TestForEachStopsOnError(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	boom := errors.New("boom")
	var calls atomic.Int32
	err := pool.ForEach(context.Background(), 10000, func(_, i int) error {
		calls.Add(1)
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ForEach error = %v, want boom", err)
	}
	if calls.Load() == 10000 {
		t.Errorf("ForEach did not stop after the error")
	}
}

func TestForEachCanceled(t *testing.T) {
	pool := New(2)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.ForEach(ctx, 10, func(_, _ int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ForEach error = %v, want context.Canceled", err)
	}
}

func TestForEachAfterClose(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close()

	sum := 0
	err := pool.ForEach(context.Background(), 10, func(worker, i int) error {
		if worker != 0 {
			t.Errorf("closed pool used worker %d", worker)
		}
		sum += i
		return nil
	})
	if err != nil || sum != 45 {
		t.Errorf("ForEach after Close: sum=%d err=%v", sum, err)
	}
}

func TestForEachEmpty(t *testing.T) {
	pool := New(2)
	defer pool.Close()

	called := false
	if err := pool.ForEach(context.Background(), 0, func(_, _ int) error {
		called = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("fn called for n=0")
	}
}
