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
	"errors"
	"fmt"

	"github.com/ajroetker/go-warplower/ir"
)

var (
	// ErrContractViolation marks malformed input: mismatched types, a
	// non-i1 predicate, a cache modifier invalid for the access direction.
	ErrContractViolation = errors.New("contract violation")

	// ErrUnsupportedTarget marks a well-formed request the target cannot
	// express, such as a shuffle lane mask outside the warp.
	ErrUnsupportedTarget = errors.New("unsupported target feature")
)

// Diagnostic identifies the operation that could not be lowered.
type Diagnostic struct {
	Loc ir.Location
	Op  string
	Msg string
	Err error
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s: %v", d.Loc, d.Op, d.Msg, d.Err)
}

func (d *Diagnostic) Unwrap() error { return d.Err }

func contractf(loc ir.Location, op, format string, args ...any) error {
	return &Diagnostic{Loc: loc, Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrContractViolation}
}

func unsupportedf(loc ir.Location, op, format string, args ...any) error {
	return &Diagnostic{Loc: loc, Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrUnsupportedTarget}
}
