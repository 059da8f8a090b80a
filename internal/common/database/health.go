package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Pinger is any dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a health probe with another name, such as the Zeebe topology check.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// CheckAll pings every dependency concurrently, each bounded by timeout, and returns the results
// sorted by name. Nil entries are skipped so optional dependencies can be passed unconditionally.
func CheckAll(ctx context.Context, timeout time.Duration, deps map[string]Pinger) ([]CheckResult, bool) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []CheckResult
	)
	for name, p := range deps {
		if p == nil {
			continue
		}
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res := CheckResult{Name: name, Healthy: true}
			if err := p.Ping(pctx); err != nil {
				res.Healthy = false
				res.Error = err.Error()
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	healthy := true
	for _, r := range results {
		healthy = healthy && r.Healthy
	}
	return results, healthy
}
