package usage

import (
	"strings"
	"time"
)

// Filter returns the records of ds newer than the window ending at now.
//
// Groups whose API key does not contain apiFilter (case-insensitive) are
// dropped; an empty filter keeps every group. The lower bound is inclusive
// and there is no upper bound, so future-dated records are kept. Records
// with unparsable timestamps are dropped, as are models and groups left
// empty. Record order is preserved and ds is never modified. A nil ds
// yields nil.
func Filter(ds *Dataset, window Window, apiFilter string, now time.Time) *Dataset {
	if ds == nil {
		return nil
	}
	cutoff := window.Cutoff(now)
	needle := strings.ToLower(apiFilter)

	out := NewDataset()
	for key, api := range ds.APIs {
		if needle != "" && !strings.Contains(strings.ToLower(key), needle) {
			continue
		}
		models := make(map[string]Model, len(api.Models))
		for name, m := range api.Models {
			var kept []Detail
			for _, d := range m.Details {
				t, ok := d.Time()
				if !ok || t.Before(cutoff) {
					continue
				}
				kept = append(kept, d)
			}
			if len(kept) > 0 {
				models[name] = Model{Details: kept}
			}
		}
		if len(models) > 0 {
			out.APIs[key] = API{Models: models}
		}
	}
	return out
}

// FilterNow is Filter evaluated at the current time.
func FilterNow(ds *Dataset, window Window, apiFilter string) *Dataset {
	return Filter(ds, window, apiFilter, time.Now())
}
