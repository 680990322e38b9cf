// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrScenarioNotFound = errors.New("scenario not found")
var ErrStepNotFound = errors.New("step not found")
var ErrProductNotFound = errors.New("product not found")
var ErrNoEligibleSteps = errors.New("no steps have audio recordings")
var ErrAlreadyRunning = errors.New("scenario execution already in progress")
var ErrNotQueued = errors.New("scenario not in queue")

// ErrRateLimited tags transient quota-class failures from the model
// collaborator. The retry policy keys off this sentinel; the orchestrator
// never inspects provider error text itself.
var ErrRateLimited = errors.New("model rate limited")
