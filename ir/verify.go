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

package ir

import (
	"errors"
	"fmt"
)

// Verify checks structural well-formedness of f: every block ends with
// exactly one terminator, successor arguments match block arguments, every
// operand is defined in f, and select/condbr conditions are i1.
func Verify(f *Func) error {
	defined := make(map[*Value]bool)
	inFunc := make(map[*Block]bool)
	for _, blk := range f.Blocks {
		inFunc[blk] = true
		for _, a := range blk.Args {
			defined[a] = true
		}
		for _, op := range blk.Ops {
			for _, r := range op.Results {
				defined[r] = true
			}
		}
	}

	var errs []error
	for _, blk := range f.Blocks {
		if blk.Terminator() == nil {
			errs = append(errs, fmt.Errorf("%s: ^%d has no terminator", f.Name, blk.ID))
		}
		for i, op := range blk.Ops {
			if op.Block != blk {
				errs = append(errs, fmt.Errorf("%s: %s has stale block link", f.Name, op))
			}
			if op.Code.IsTerminator() && i != len(blk.Ops)-1 {
				errs = append(errs, fmt.Errorf("%s: terminator %s in middle of block", f.Name, op))
			}
			for _, v := range op.Operands {
				if v == nil || !defined[v] {
					errs = append(errs, fmt.Errorf("%s: %s uses undefined value", f.Name, op))
				}
			}
			if (op.Code == OpCondBr || op.Code == OpSelect) && op.Operands[0].Type != I1 {
				errs = append(errs, fmt.Errorf("%s: %s condition is %s, want i1", f.Name, op, op.Operands[0].Type))
			}
			for _, s := range op.Succs {
				if !inFunc[s.Block] {
					errs = append(errs, fmt.Errorf("%s: %s branches outside function", f.Name, op))
					continue
				}
				if len(s.Args) != len(s.Block.Args) {
					errs = append(errs, fmt.Errorf("%s: %s passes %d args to block with %d",
						f.Name, op, len(s.Args), len(s.Block.Args)))
					continue
				}
				for j, a := range s.Args {
					if a.Type != s.Block.Args[j].Type {
						errs = append(errs, fmt.Errorf("%s: %s arg %d is %s, want %s",
							f.Name, op, j, a.Type, s.Block.Args[j].Type))
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

// VerifyLowered checks f with Verify and additionally rejects any remaining
// high-level operation.
func VerifyLowered(f *Func) error {
	if err := Verify(f); err != nil {
		return err
	}
	var errs []error
	f.Walk(func(op *Op) {
		if op.Code.IsHighLevel() {
			errs = append(errs, fmt.Errorf("%s: high-level op %s at %s not lowered", f.Name, op.Code, op.Loc))
		}
	})
	return errors.Join(errs...)
}
