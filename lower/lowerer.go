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
	"log/slog"

	"github.com/ajroetker/go-warplower/target"
)

// Lowerer lowers high-level operations for one target. It holds no mutable
// state, so a single Lowerer may be shared by concurrent per-function
// rewrites.
type Lowerer struct {
	tgt    target.Target
	logger *slog.Logger
}

// Option configures a Lowerer.
type Option func(*Lowerer)

// WithLogger sets the logger used for Debug-level lowering decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lowerer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Lowerer for tgt.
func New(tgt target.Target, opts ...Option) (*Lowerer, error) {
	if err := tgt.Validate(); err != nil {
		return nil, err
	}
	l := &Lowerer{
		tgt:    tgt.Clone(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Target returns the target description.
func (l *Lowerer) Target() target.Target {
	return l.tgt.Clone()
}

// CacheHint returns the hint the target attaches to an unpredicated access
// with modifier cm.
func (l *Lowerer) CacheHint(cm CacheModifier, access Access) string {
	if access == AccessStore {
		return l.tgt.StoreHint(cm.String())
	}
	return l.tgt.LoadHint(cm.String())
}
