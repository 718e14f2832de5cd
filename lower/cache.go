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

// Package lower rewrites predicated memory accesses, lane shuffles and
// program identifier reads into target-level IR.
//
// A Lowerer carries an explicit target.Target. Every operation inserts new
// IR at the builder's insertion point and returns the replacement value:
//
//	l, err := lower.New(target.GFX942())
//	v, err := l.Load(b, loc, ptr, ir.F32, pred, zero, lower.CacheCG)
//
// Loads and stores take the native predicated intrinsic when the target
// supports it for the cache modifier, and otherwise synthesize a branch on
// the predicate around an ordinary access. Either way the result is
// mask-equivalent: masked-off lanes observe the fallback value and never
// touch memory.
package lower

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// CacheModifier selects the cache behavior of a memory access.
type CacheModifier int

const (
	CacheNone CacheModifier = iota
	// CacheCA caches at all levels.
	CacheCA
	// CacheCG caches at the global level (bypasses L1).
	CacheCG
	// CacheWB is write-back.
	CacheWB
	// CacheCS is streaming, likely accessed once.
	CacheCS
	// CacheWT is write-through.
	CacheWT
	// CacheCV does not cache and fetches again.
	CacheCV
)

var cacheNames = [...]string{"none", "ca", "cg", "wb", "cs", "wt", "cv"}

// String returns the lower-case modifier name.
func (c CacheModifier) String() string {
	if c < 0 || int(c) >= len(cacheNames) {
		return fmt.Sprintf("CacheModifier(%d)", int(c))
	}
	return cacheNames[c]
}

// ParseCacheModifier parses a modifier name. The empty string is none.
func ParseCacheModifier(s string) (CacheModifier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CacheNone, nil
	}
	for i, name := range cacheNames {
		if name == s {
			return CacheModifier(i), nil
		}
	}
	return CacheNone, fmt.Errorf("unknown cache modifier %q (valid: %s)", s, strings.Join(cacheNames[:], ", "))
}

// Set implements pflag.Value.
func (c *CacheModifier) Set(s string) error {
	v, err := ParseCacheModifier(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Type implements pflag.Value.
func (c *CacheModifier) Type() string { return "cacheModifier" }

var _ pflag.Value = (*CacheModifier)(nil)

// ValidForLoad reports whether c may be attached to a load.
func (c CacheModifier) ValidForLoad() bool {
	switch c {
	case CacheNone, CacheCA, CacheCG, CacheCS, CacheCV:
		return true
	}
	return false
}

// ValidForStore reports whether c may be attached to a store.
func (c CacheModifier) ValidForStore() bool {
	switch c {
	case CacheNone, CacheCG, CacheWB, CacheCS, CacheWT:
		return true
	}
	return false
}

// Access distinguishes loads from stores in hint lookups.
type Access int

const (
	AccessLoad Access = iota
	AccessStore
)

// String returns "load" or "store".
func (a Access) String() string {
	if a == AccessStore {
		return "store"
	}
	return "load"
}

// Native predicated access symbols. The code generator recognizes these
// exact names.
const (
	PredicatedLoad    = "__predicated_load"
	PredicatedLoadCA  = "__predicated_load_CA"
	PredicatedLoadCG  = "__predicated_load_CG"
	PredicatedStore   = "__predicated_store"
	PredicatedStoreCG = "__predicated_store_CG"
	PredicatedStoreCS = "__predicated_store_CS"
	PredicatedStoreWT = "__predicated_store_WT"
)

// LoadIntrinsic returns the native predicated load symbol for c, if one
// exists.
func LoadIntrinsic(c CacheModifier) (string, bool) {
	switch c {
	case CacheNone:
		return PredicatedLoad, true
	case CacheCA:
		return PredicatedLoadCA, true
	case CacheCG:
		return PredicatedLoadCG, true
	}
	return "", false
}

// StoreIntrinsic returns the native predicated store symbol for c, if one
// exists.
func StoreIntrinsic(c CacheModifier) (string, bool) {
	switch c {
	case CacheNone:
		return PredicatedStore, true
	case CacheCG:
		return PredicatedStoreCG, true
	case CacheCS:
		return PredicatedStoreCS, true
	case CacheWT:
		return PredicatedStoreWT, true
	}
	return "", false
}

// IsPredicatedIntrinsic reports whether name is one of the native predicated
// access symbols, and whether it is a load.
func IsPredicatedIntrinsic(name string) (isLoad, ok bool) {
	switch name {
	case PredicatedLoad, PredicatedLoadCA, PredicatedLoadCG:
		return true, true
	case PredicatedStore, PredicatedStoreCG, PredicatedStoreCS, PredicatedStoreWT:
		return false, true
	}
	return false, false
}
