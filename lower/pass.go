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

package lower

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/target"
)

// Module lowers every high-level operation of m for tgt.
func Module(ctx context.Context, m *ir.Module, tgt target.Target, opts ...Option) error {
	l, err := New(tgt, opts...)
	if err != nil {
		return err
	}
	return l.Module(ctx, m)
}

// Module lowers every function of m concurrently. Each function is
// rewritten by its own Builder; the first diagnostic cancels the rest.
func (l *Lowerer) Module(ctx context.Context, m *ir.Module) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range m.Funcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return l.Func(f)
		})
	}
	return g.Wait()
}

// Func lowers every high-level operation of f in block order and verifies
// the result.
func (l *Lowerer) Func(f *ir.Func) error {
	ops := f.Collect(func(op *ir.Op) bool { return op.Code.IsHighLevel() })
	b := ir.NewBuilder(f)
	for _, op := range ops {
		b.SetInsertionPointBefore(op)
		repl, err := l.lowerOp(b, op)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if err := b.Replace(op, repl); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	l.logger.Debug("lowered function", "func", f.Name, "ops", len(ops), "blocks", len(f.Blocks))
	return ir.VerifyLowered(f)
}

// checkShape rejects a high-level op whose operand count or result does not
// match its opcode.
func checkShape(op *ir.Op, name string, minOperands, maxOperands int, hasResult bool) error {
	if n := len(op.Operands); n < minOperands || n > maxOperands {
		if minOperands == maxOperands {
			return contractf(op.Loc, name, "has %d operands, want %d", n, minOperands)
		}
		return contractf(op.Loc, name, "has %d operands, want %d to %d", n, minOperands, maxOperands)
	}
	if (op.Result() != nil) != hasResult {
		return contractf(op.Loc, name, "result presence is %v, want %v", op.Result() != nil, hasResult)
	}
	return nil
}

func (l *Lowerer) lowerOp(b *ir.Builder, op *ir.Op) (*ir.Value, error) {
	switch op.Code {
	case ir.OpMaskedLoad:
		if err := checkShape(op, "load", 3, 3, true); err != nil {
			return nil, err
		}
		cm, err := ParseCacheModifier(op.Cache)
		if err != nil {
			return nil, contractf(op.Loc, "load", "%v", err)
		}
		ptr, pred, other := op.Operands[0], op.Operands[1], op.Operands[2]
		return l.Load(b, op.Loc, ptr, op.Result().Type, pred, other, cm)

	case ir.OpMaskedStore:
		if err := checkShape(op, "store", 3, 3, false); err != nil {
			return nil, err
		}
		cm, err := ParseCacheModifier(op.Cache)
		if err != nil {
			return nil, contractf(op.Loc, "store", "%v", err)
		}
		ptr, val, pred := op.Operands[0], op.Operands[1], op.Operands[2]
		return nil, l.Store(b, op.Loc, ptr, val, pred, cm)

	case ir.OpWarpShuffle:
		if err := checkShape(op, "shuffle", 1, 2, true); err != nil {
			return nil, err
		}
		kind, err := ParseShuffleKind(op.Shfl)
		if err != nil {
			return nil, contractf(op.Loc, "shuffle", "%v", err)
		}
		desc := Shuffle{Kind: kind, Imm: int(op.Imm)}
		if len(op.Operands) > 1 {
			desc.Index = op.Operands[1]
		}
		return l.Shuffle(b, op.Loc, op.Operands[0], desc)

	case ir.OpGetProgramID:
		return l.ProgramID(b, op.Loc, int(op.Imm))
	}
	return nil, contractf(op.Loc, op.Code.String(), "not a high-level operation")
}
