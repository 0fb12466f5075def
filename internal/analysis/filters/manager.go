package filters

import (
	"fmt"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// Judgment log outcomes.
const (
	LogPassed   = "通过"
	LogFailed   = "未通过"
	LogDisabled = "已禁用"
	LogSkipped  = "跳过(短路)"
)

// WindowVerdict is the outcome of every filter on one window. Results only
// holds filters that were evaluated; Order lists them in evaluation order.
type WindowVerdict struct {
	Window  int               `json:"window"`
	Results map[string]Result `json:"results"`
	Order   []string          `json:"order"`
	Passed  bool              `json:"passed"`
	Log     []string          `json:"log"`
}

// Result returns the named filter's result if it was evaluated.
func (v WindowVerdict) Result(name string) (Result, bool) {
	r, ok := v.Results[name]
	return r, ok
}

// Reasons returns the reasons of the evaluated filters in evaluation order.
func (v WindowVerdict) Reasons() []string {
	out := make([]string, 0, len(v.Order))
	for _, name := range v.Order {
		if r := v.Results[name]; r.Reason != "" {
			out = append(out, r.Reason)
		}
	}
	return out
}

// Manager runs an ordered set of filters over a window. It keeps no state
// between calls and is safe for concurrent use.
type Manager struct {
	filters []Filter
}

// NewManager creates a pipeline evaluating filters in the given order.
func NewManager(filters ...Filter) *Manager {
	return &Manager{filters: filters}
}

// DefaultManager registers every filter in the standard order. peers feeds
// the fundamental filter and may be nil.
func DefaultManager(peers PeerUniverse) *Manager {
	return NewManager(
		NewPriceFilter(),
		NewVolumeFilter(),
		NewPositionFilter(),
		NewRapidDeclineFilter(),
		NewBoxFilter(),
		NewFundamentalFilter(peers),
		NewPredictionFilter(),
		NewConfirmationFilter(),
	)
}

// Filters returns the registered filters in order.
func (m *Manager) Filters() []Filter {
	return append([]Filter(nil), m.filters...)
}

// Run evaluates the window. A window longer than the series fails before any
// filter runs. Disabled filters count as passed. With ShortCircuit set,
// filters after the first failure are logged as skipped and not evaluated;
// the aggregate outcome is the same either way.
func (m *Manager) Run(w models.Window, cfg *config.ScanConfig) WindowVerdict {
	v := WindowVerdict{
		Window:  w.Size,
		Results: make(map[string]Result, len(m.filters)),
		Passed:  true,
	}
	if !w.Complete() {
		v.Passed = false
		v.Log = append(v.Log, insufficient(len(w.Candles), w.Size).Reason)
		return v
	}

	for _, f := range m.filters {
		if !f.Enabled(cfg) {
			v.Log = append(v.Log, fmt.Sprintf("%s: %s", f.Label(), LogDisabled))
			continue
		}
		if !v.Passed && cfg.ShortCircuit {
			v.Log = append(v.Log, fmt.Sprintf("%s: %s", f.Label(), LogSkipped))
			continue
		}

		res := f.Evaluate(w, cfg)
		v.Results[f.Name()] = res
		v.Order = append(v.Order, f.Name())
		v.Passed = v.Passed && res.Passed

		outcome := LogPassed
		if !res.Passed {
			outcome = LogFailed
		}
		if res.Reason != "" {
			v.Log = append(v.Log, fmt.Sprintf("%s: %s (%s)", f.Label(), outcome, res.Reason))
		} else {
			v.Log = append(v.Log, fmt.Sprintf("%s: %s", f.Label(), outcome))
		}
	}
	return v
}
