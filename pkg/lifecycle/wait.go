package lifecycle

import (
	"context"
	"errors"
	"net/url"

	"github.com/getgrowly/vault-lifecycle/pkg/logging"
	"github.com/getgrowly/vault-lifecycle/pkg/options"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

// Outcome is the terminal state of WaitFor.
type Outcome int

const (
	Satisfied Outcome = iota
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Satisfied:
		return "satisfied"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// WaitResult reports how WaitFor ended.
type WaitResult struct {
	Outcome  Outcome
	Attempts int
	// Last is the final health observation.
	Last vault.HealthState
}

// healthQuery makes standby, sealed and uninitialized nodes answer 200 so
// that their state can be observed.
var healthQuery = url.Values{
	"standbyok":   {"true"},
	"standbycode": {"200"},
	"sealedcode":  {"200"},
	"uninitcode":  {"200"},
}

// WaitLimit returns the number of observations WaitFor makes before giving
// up.
func (o *Orchestrator) WaitLimit() int {
	if o.MaxAttempts <= 0 {
		return MaxWaitAttempts
	}
	return o.MaxAttempts
}

// WaitFor polls the health endpoint until every key of target is reported
// with the same value. Keys other than initialized, sealed and standby are
// ignored. Extra keys in the observation do not matter.
//
// After MaxAttempts non-matching observations the result is Exhausted; this is
// not an error. A 5xx response whose body decodes is used as an observation.
// Any other failure is returned.
func (o *Orchestrator) WaitFor(ctx context.Context, target map[string]bool) (*WaitResult, error) {
	wanted := filterTarget(target)
	logging.Info(logSubsystem, "Waiting for health returning %v", wanted)

	sys, err := o.sys()
	if err != nil {
		return nil, err
	}

	maxAttempts := o.WaitLimit()

	count := 0
	for {
		observed, err := observe(ctx, sys)
		if err != nil {
			return nil, err
		}
		count++

		if o.OnAttempt != nil {
			o.OnAttempt(count, observed)
		}

		if matches(wanted, observed) {
			logging.Info(logSubsystem, "Health matched after %d attempt(s)", count)
			return &WaitResult{Outcome: Satisfied, Attempts: count, Last: observed}, nil
		}

		if count >= maxAttempts {
			logging.Warn(logSubsystem, "Failed after %d attempts", count)
			return &WaitResult{Outcome: Exhausted, Attempts: count, Last: observed}, nil
		}

		if err := sleep(ctx, o.Interval); err != nil {
			return nil, err
		}
	}
}

func observe(ctx context.Context, sys *vault.Sys) (vault.HealthState, error) {
	state, err := sys.Health(ctx, healthQuery)
	if err == nil {
		return state, nil
	}

	var verr *vault.Error
	if errors.As(err, &verr) && verr.Kind == vault.KindServer && verr.Response != nil {
		var degraded vault.HealthState
		if decodeErr := verr.Response.Decode(&degraded); decodeErr == nil {
			logging.Debug(logSubsystem, "Health returned %d, using body as observation", verr.StatusCode)
			return degraded, nil
		}
	}
	return nil, err
}

func filterTarget(target map[string]bool) map[string]bool {
	params := make(map[string]any, len(target))
	for k, v := range target {
		params[k] = v
	}

	wanted := make(map[string]bool)
	for k, v := range options.Resolve(params, "initialized", "sealed", "standby") {
		wanted[k] = v.(bool)
	}
	return wanted
}

func matches(wanted map[string]bool, observed vault.HealthState) bool {
	for k, v := range wanted {
		got, ok := observed.Bool(k)
		if !ok || got != v {
			return false
		}
	}
	return true
}
