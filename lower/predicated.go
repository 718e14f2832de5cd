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
	"github.com/ajroetker/go-warplower/ir"
)

// Load emits a predicated load of elemTy from ptr. Lanes whose pred bit is
// clear yield falseVal and perform no memory access.
func (l *Lowerer) Load(b *ir.Builder, loc ir.Location, ptr *ir.Value, elemTy ir.Type, pred, falseVal *ir.Value, cm CacheModifier) (*ir.Value, error) {
	const op = "load"
	if err := checkAccess(loc, op, ptr, pred); err != nil {
		return nil, err
	}
	if elemTy.IsVoid() {
		return nil, contractf(loc, op, "element type is void")
	}
	if falseVal == nil {
		return nil, contractf(loc, op, "missing fallback value")
	}
	if falseVal.Type != elemTy {
		return nil, contractf(loc, op, "fallback is %s, want %s", falseVal.Type, elemTy)
	}
	if !cm.ValidForLoad() {
		return nil, contractf(loc, op, "cache modifier %s is not valid for loads", cm)
	}
	split, err := SplitWidth(elemTy, l.tgt.MaxAccessBits)
	if err != nil {
		return nil, contractf(loc, op, "%v", err)
	}

	if name, ok := LoadIntrinsic(cm); ok && l.tgt.NativePredicatedLoad(cm.String()) {
		decl, err := b.Module().LookupOrDeclare(name, true)
		if err != nil {
			return nil, contractf(loc, op, "%v", err)
		}
		l.logger.Debug("predicated load", "loc", loc, "path", "native", "symbol", name, "chunks", split.Count)
		return split.Apply(b, loc, falseVal, func(k int, other *ir.Value) (*ir.Value, error) {
			addr := chunkAddr(b, loc, ptr, k*split.ChunkBytes())
			return b.Call(loc, decl, other.Type, addr, pred, other).Result(), nil
		})
	}

	hint := l.CacheHint(cm, AccessLoad)
	l.logger.Debug("predicated load", "loc", loc, "path", "synthesized", "cache", cm, "hint", hint, "chunks", split.Count)
	then, merge := predicatedRegion(b, loc, pred, falseVal)
	b.SetInsertionPointToEnd(then)
	loaded, err := split.Assemble(b, loc, func(k int) (*ir.Value, error) {
		addr := chunkAddr(b, loc, ptr, k*split.ChunkBytes())
		return b.Load(loc, split.Chunk, addr, hint), nil
	})
	if err != nil {
		return nil, err
	}
	b.Br(loc, merge, loaded)
	b.SetInsertionPointToStart(merge)
	return merge.Args[0], nil
}

// Store emits a predicated store of val to ptr. Memory is written only for
// lanes whose pred bit is set; chunks are stored in address order.
func (l *Lowerer) Store(b *ir.Builder, loc ir.Location, ptr, val, pred *ir.Value, cm CacheModifier) error {
	const op = "store"
	if err := checkAccess(loc, op, ptr, pred); err != nil {
		return err
	}
	if val == nil || val.Type.IsVoid() {
		return contractf(loc, op, "missing value")
	}
	if !cm.ValidForStore() {
		return contractf(loc, op, "cache modifier %s is not valid for stores", cm)
	}
	split, err := SplitWidth(val.Type, l.tgt.MaxAccessBits)
	if err != nil {
		return contractf(loc, op, "%v", err)
	}

	if name, ok := StoreIntrinsic(cm); ok && l.tgt.NativePredicatedStore(cm.String()) {
		decl, err := b.Module().LookupOrDeclare(name, false)
		if err != nil {
			return contractf(loc, op, "%v", err)
		}
		l.logger.Debug("predicated store", "loc", loc, "path", "native", "symbol", name, "chunks", split.Count)
		return split.Each(b, loc, val, func(k int, chunk *ir.Value) error {
			addr := chunkAddr(b, loc, ptr, k*split.ChunkBytes())
			b.Call(loc, decl, ir.Void, addr, chunk, pred)
			return nil
		})
	}

	hint := l.CacheHint(cm, AccessStore)
	l.logger.Debug("predicated store", "loc", loc, "path", "synthesized", "cache", cm, "hint", hint, "chunks", split.Count)
	then, merge := predicatedRegion(b, loc, pred, nil)
	b.SetInsertionPointToEnd(then)
	err = split.Each(b, loc, val, func(k int, chunk *ir.Value) error {
		addr := chunkAddr(b, loc, ptr, k*split.ChunkBytes())
		b.Store(loc, addr, chunk, hint)
		return nil
	})
	if err != nil {
		return err
	}
	b.Br(loc, merge)
	b.SetInsertionPointToStart(merge)
	return nil
}

func checkAccess(loc ir.Location, op string, ptr, pred *ir.Value) error {
	if ptr == nil || !ptr.Type.IsPtr() {
		return contractf(loc, op, "address is not a pointer")
	}
	if ptr.Type.Space != ir.Global && ptr.Type.Space != ir.Shared {
		return contractf(loc, op, "address space %s is neither global nor shared", ptr.Type.Space)
	}
	if pred == nil || pred.Type != ir.I1 {
		return contractf(loc, op, "predicate must be i1")
	}
	return nil
}

// predicatedRegion splits the current block at the insertion point into
//
//	cur:   ... condbr pred, ^then, ^merge(fallback)
//	then:  (empty, caller fills and branches to merge)
//	merge: (fallback-typed argument) rest of cur
//
// fallback may be nil for regions without a merged value.
func predicatedRegion(b *ir.Builder, loc ir.Location, pred, fallback *ir.Value) (then, merge *ir.Block) {
	cur := b.Block()
	merge = b.SplitBlock()
	var fargs []*ir.Value
	if fallback != nil {
		merge.AddArg(fallback.Type)
		fargs = []*ir.Value{fallback}
	}
	then = b.CreateBlockAfter(cur)
	b.SetInsertionPointToEnd(cur)
	b.CondBr(loc, pred, then, nil, merge, fargs)
	return then, merge
}

// chunkAddr returns ptr advanced by offset bytes.
func chunkAddr(b *ir.Builder, loc ir.Location, ptr *ir.Value, offset int) *ir.Value {
	if offset == 0 {
		return ptr
	}
	return b.PtrAdd(loc, ptr, b.Const(loc, ir.I64, int64(offset)))
}
