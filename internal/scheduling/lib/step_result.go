// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

type StepResult struct {
	// The activations calculated by this step, by host.
	// Hosts missing from the activations were filtered out.
	Activations map[string]float64
}
