// Package dynamics infers the feedback structure behind a set of business
// metric time series.
//
// The pipeline is strictly linear:
//
//	time series -> causal links -> feedback loops -> leverage points -> Analysis
//
// Causal links come from pairwise Pearson correlation with a two-sided t-test
// and a lead/lag scan; feedback loops are cycles found by an iterative
// depth-first search over an index-addressed graph; leverage points map the
// loops onto levels 9, 6, 3 and 2 of the 12-level intervention hierarchy.
//
// An Engine holds only immutable configuration. Every call allocates its own
// working state, so one Engine may be shared by any number of goroutines.
// The engine never blocks and does no I/O; callers that serve requests on a
// shared goroutine should run AnalyzeSystem on a worker.
package dynamics
