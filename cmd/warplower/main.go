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

// Command warplower lowers predicated memory accesses and lane shuffles of
// reference SIMT kernels for a GPU target, and runs them on a simulated
// warp to check the lowering.
//
// Usage:
//
//	warplower targets                      # list built-in targets
//	warplower targets gfx942               # print a target as YAML
//	warplower kernels                      # list reference kernels
//	warplower lower --kernel warp_sum --target sm80
//	warplower run --kernel all --target gfx90a -n 1000
//
// Setting WARPLOWER_NO_NATIVE=1 strips native predicated accesses from the
// selected target so the branch-synthesized lowering is used.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	cmd, opts := newRootCommand()
	if err := opts.Execute(context.Background(), cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}
