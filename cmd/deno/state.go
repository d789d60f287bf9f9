package deno

import "github.com/denoland/deno-sub011/internal/modgraph/prepare"

// globalCheckCache persists content-addressed type-check results across
// the subcommands a single process invocation runs (e.g. compile's
// check-then-emit passes), so an unchanged file is never rechecked twice
// in the same run.
var globalCheckCache = prepare.NewCheckCache()
