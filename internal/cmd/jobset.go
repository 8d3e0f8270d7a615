package cmd

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/quantfabric/batchflow/pkg/job"
	"github.com/quantfabric/batchflow/pkg/manifest"
)

// loadJobSet builds the effective job set: built-in defaults amended by
// the manifest at path, if any.
func loadJobSet(path string) ([]job.Spec, error) {
	var m *manifest.Manifest
	if path != "" {
		loaded, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	return manifest.BuildJobSet(manifest.DefaultJobSet(), m)
}

// selectJobs filters specs by --only and --skip glob patterns.
//
// A job is kept when it matches at least one only pattern (or only is
// empty) and matches no skip pattern. A pattern that matches nothing is
// an error so typos fail loudly.
func selectJobs(specs []job.Spec, only, skip []string) ([]job.Spec, error) {
	matched := make(map[string]bool, len(only)+len(skip))

	keep := make([]job.Spec, 0, len(specs))
	for _, spec := range specs {
		ok := len(only) == 0
		for _, pat := range only {
			hit, err := doublestar.Match(pat, spec.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid --only pattern %q: %w", pat, err)
			}
			if hit {
				matched[pat] = true
				ok = true
			}
		}

		for _, pat := range skip {
			hit, err := doublestar.Match(pat, spec.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid --skip pattern %q: %w", pat, err)
			}
			if hit {
				matched[pat] = true
				ok = false
			}
		}

		if ok {
			keep = append(keep, spec)
		}
	}

	for _, pat := range only {
		if !matched[pat] {
			return nil, fmt.Errorf("--only pattern %q matches no job", pat)
		}
	}
	for _, pat := range skip {
		if !matched[pat] {
			return nil, fmt.Errorf("--skip pattern %q matches no job", pat)
		}
	}

	return keep, nil
}

// filterMarketHours drops jobs that require market hours when the market
// is closed. Returns the kept specs and the names of the skipped ones.
func filterMarketHours(specs []job.Spec, now time.Time) ([]job.Spec, []string) {
	if marketOpen(now) {
		return specs, nil
	}

	keep := make([]job.Spec, 0, len(specs))
	var skipped []string
	for _, spec := range specs {
		if spec.RequiresMarketHours {
			skipped = append(skipped, spec.Name)
			continue
		}
		keep = append(keep, spec)
	}
	return keep, skipped
}

// marketOpen reports whether US equity markets are in their regular
// session (09:30-16:00 America/New_York, weekdays). Falls back to open
// if the tz database is unavailable so jobs are never silently dropped.
func marketOpen(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return true
	}
	t := now.In(loc)

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
