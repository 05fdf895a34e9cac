// SPDX-License-Identifier: MPL-2.0

// Package pipeline sequences provisioning steps. A Runner executes a
// declared step list strictly in order, exactly once, evaluating each
// step's condition immediately before it would run: a false condition is
// a logged skip with no side effect. The first failure aborts the run
// with a StepError carrying the step name and a payload snapshot; there
// is no retry and no rollback. Run lifecycle is tracked through an atomic
// state machine (init, resolving, sequencing, staged, complete, failed).
package pipeline
