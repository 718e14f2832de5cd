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

// Package interp executes IR on a simulated SIMT machine. It is the
// reference used to check that lowered code is mask-equivalent to the
// high-level operations it replaced.
//
// A launch runs a grid of programs; each program has NumWarps warps of
// target.WarpSize lanes that share per-program shared memory, and all
// programs share global Memory. Divergence is handled with a per-lane
// current block: the warp repeatedly executes the block that comes first in
// reverse post-order among unfinished lanes, with exactly the lanes waiting
// at that block active. Masked-off lanes never touch memory.
//
// Both high-level operations (masked_load, warp_shuffle, ...) and the
// target-level operations the lowering emits (shfl.sync, ds_bpermute,
// calls to __predicated_* intrinsics, ...) are executable, so a kernel can
// be run before and after lowering and the results compared.
package interp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-warplower/internal/workerpool"
	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/target"
)

var (
	// ErrOutOfBounds is returned when an active lane accesses memory outside
	// its address space.
	ErrOutOfBounds = errors.New("out of bounds access")

	// ErrUnknownCallee is returned for calls to symbols the machine does
	// not implement.
	ErrUnknownCallee = errors.New("unknown callee")

	// ErrUnsupported is returned for operations or operand widths the
	// machine does not implement.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrStepLimit is returned when a warp executes more blocks than
	// Launch.MaxSteps.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrBadLaunch is returned for malformed launch parameters.
	ErrBadLaunch = errors.New("invalid launch")
)

// ExecError locates a runtime failure.
type ExecError struct {
	Program [3]int
	Warp    int
	Loc     ir.Location
	Op      string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("program %v warp %d: %s at %s: %v", e.Program, e.Warp, e.Op, e.Loc, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// DefaultMaxSteps bounds the number of blocks one warp may execute.
const DefaultMaxSteps = 1 << 20

// Launch describes one kernel launch.
type Launch struct {
	// Grid is the number of programs along each axis; zero means one.
	Grid [3]int

	// NumWarps is the number of warps per program; zero means one.
	NumWarps int

	// SharedBytes is the size of each program's shared memory.
	SharedBytes int

	// Args holds one raw value per function parameter, broadcast to every
	// lane. Pointer arguments are byte addresses.
	Args []uint64

	// Workers bounds parallelism across programs; zero uses GOMAXPROCS.
	Workers int

	// MaxSteps overrides DefaultMaxSteps when positive.
	MaxSteps int
}

// Stats summarizes a launch.
type Stats struct {
	Programs   int64
	Blocks     int64
	LaneLoads  int64
	LaneStores int64
	Exchanges  int64
}

// counters are owned by one worker; padding keeps workers off each other's
// cache lines.
type counters struct {
	programs   int64
	blocks     int64
	laneLoads  int64
	laneStores int64
	exchanges  int64
	_          cpu.CacheLinePad
}

type config struct {
	logger *slog.Logger
}

// Option configures Run.
type Option func(*config)

// WithLogger sets the logger for Debug-level launch summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// executor is the immutable state shared by all warps of a launch.
type executor struct {
	tgt      target.Target
	fn       *ir.Func
	mem      *Memory
	rpo      map[*ir.Block]int
	args     []uint64
	maxSteps int
}

type program struct {
	coords [3]int
	shared []byte
}

// Run executes fn over the launch grid.
func Run(ctx context.Context, tgt target.Target, fn *ir.Func, launch Launch, mem *Memory, opts ...Option) (Stats, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := tgt.Validate(); err != nil {
		return Stats{}, err
	}
	if err := ir.Verify(fn); err != nil {
		return Stats{}, err
	}
	if len(launch.Args) != len(fn.Params()) {
		return Stats{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadLaunch, fn.Name, len(fn.Params()), len(launch.Args))
	}
	grid := launch.Grid
	for i := range grid {
		if grid[i] < 0 {
			return Stats{}, fmt.Errorf("%w: negative grid %v", ErrBadLaunch, launch.Grid)
		}
		grid[i] = max(grid[i], 1)
	}
	numWarps := max(launch.NumWarps, 1)
	if mem == nil {
		mem = NewMemory(0)
	}

	ex := &executor{
		tgt:      tgt,
		fn:       fn,
		mem:      mem,
		rpo:      reversePostOrder(fn),
		args:     launch.Args,
		maxSteps: DefaultMaxSteps,
	}
	if launch.MaxSteps > 0 {
		ex.maxSteps = launch.MaxSteps
	}

	pool := workerpool.New(launch.Workers)
	defer pool.Close()
	ctrs := make([]counters, pool.NumWorkers())

	numPrograms := grid[0] * grid[1] * grid[2]
	err := pool.ForEach(ctx, numPrograms, func(worker, i int) error {
		p := &program{
			coords: [3]int{i % grid[0], (i / grid[0]) % grid[1], i / (grid[0] * grid[1])},
			shared: make([]byte, launch.SharedBytes),
		}
		ctr := &ctrs[worker]
		for wi := range numWarps {
			w := newWarp(ex, p, wi, ctr)
			if err := w.run(ctx); err != nil {
				return err
			}
		}
		ctr.programs++
		return nil
	})

	var st Stats
	for i := range ctrs {
		st.Programs += ctrs[i].programs
		st.Blocks += ctrs[i].blocks
		st.LaneLoads += ctrs[i].laneLoads
		st.LaneStores += ctrs[i].laneStores
		st.Exchanges += ctrs[i].exchanges
	}
	cfg.logger.Debug("launch finished", "func", fn.Name, "target", tgt.Name,
		"programs", st.Programs, "blocks", st.Blocks, "err", err)
	return st, err
}

// reversePostOrder numbers the blocks reachable from the entry.
func reversePostOrder(f *ir.Func) map[*ir.Block]int {
	seen := make(map[*ir.Block]bool)
	var post []*ir.Block
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		seen[b] = true
		for _, s := range b.Succs() {
			if !seen[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(f.Entry())

	order := make(map[*ir.Block]int, len(post))
	for i, b := range post {
		order[b] = len(post) - 1 - i
	}
	return order
}
