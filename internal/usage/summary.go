package usage

import (
	"sort"

	"github.com/samber/lo"
)

// AggregatedStats are the totals of a dataset.
type AggregatedStats struct {
	TotalRequests int64      `json:"total_requests"`
	SuccessCount  int64      `json:"success_count"`
	FailureCount  int64      `json:"failure_count"`
	Tokens        TokenStats `json:"tokens"`
}

func (a *AggregatedStats) add(d Detail) {
	a.TotalRequests++
	if d.Failed {
		a.FailureCount++
	} else {
		a.SuccessCount++
	}
	a.Tokens.InputTokens += d.Tokens.InputTokens
	a.Tokens.OutputTokens += d.Tokens.OutputTokens
	a.Tokens.ReasoningTokens += d.Tokens.ReasoningTokens
	a.Tokens.CachedTokens += d.Tokens.CachedTokens
	a.Tokens.TotalTokens += d.Tokens.TotalTokens
}

// Aggregate totals a list of records.
func Aggregate(details []Detail) AggregatedStats {
	var a AggregatedStats
	for _, d := range details {
		a.add(d)
	}
	return a
}

// DailyStats represents aggregated metrics for a single UTC day.
type DailyStats struct {
	Day      string `json:"day"` // Format: "2006-01-02"
	Requests int64  `json:"requests"`
	Tokens   int64  `json:"tokens"`
}

// HourlyStats represents aggregated metrics for an hour of the day (UTC).
type HourlyStats struct {
	Hour     int   `json:"hour"` // 0-23
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
}

// APIStats represents aggregated metrics per API key.
type APIStats struct {
	APIKey string `json:"api_key"`
	AggregatedStats
	Models []string `json:"models"`
}

// ModelStats represents aggregated metrics per model across API keys.
type ModelStats struct {
	Model string `json:"model"`
	AggregatedStats
}

// AuthStats represents aggregated metrics per auth index.
type AuthStats struct {
	AuthIndex string `json:"auth_index"`
	AggregatedStats
}

// Summary is the aggregate view of a dataset.
type Summary struct {
	Totals AggregatedStats `json:"totals"`
	APIs   []APIStats      `json:"apis"`
	Models []ModelStats    `json:"models"`
	Auths  []AuthStats     `json:"auths"`
	Daily  []DailyStats    `json:"daily"`
	Hourly []HourlyStats   `json:"hourly"`
	// Undated counts records whose timestamp could not be parsed. They are
	// part of the totals but not of the daily and hourly buckets.
	Undated int64 `json:"undated,omitempty"`
}

// Summarize aggregates every record in ds. Rows are ordered by request count,
// descending, then by key; daily and hourly buckets are chronological.
func Summarize(ds *Dataset) Summary {
	s := Summary{
		APIs:   []APIStats{},
		Models: []ModelStats{},
		Auths:  []AuthStats{},
		Daily:  []DailyStats{},
		Hourly: []HourlyStats{},
	}
	if ds == nil {
		return s
	}

	models := map[string]*ModelStats{}
	auths := map[string]*AuthStats{}
	days := map[string]*DailyStats{}
	hours := map[int]*HourlyStats{}

	for key, api := range ds.APIs {
		row := APIStats{APIKey: key, Models: lo.Keys(api.Models)}
		sort.Strings(row.Models)
		for name, m := range api.Models {
			ms, ok := models[name]
			if !ok {
				ms = &ModelStats{Model: name}
				models[name] = ms
			}
			for _, d := range m.Details {
				s.Totals.add(d)
				row.add(d)
				ms.add(d)
				if d.AuthIndex != "" {
					as, ok := auths[d.AuthIndex]
					if !ok {
						as = &AuthStats{AuthIndex: d.AuthIndex}
						auths[d.AuthIndex] = as
					}
					as.add(d)
				}

				t, ok := d.Time()
				if !ok {
					s.Undated++
					continue
				}
				t = t.UTC()
				day := t.Format("2006-01-02")
				db, ok := days[day]
				if !ok {
					db = &DailyStats{Day: day}
					days[day] = db
				}
				db.Requests++
				db.Tokens += d.Tokens.TotalTokens
				hs, ok := hours[t.Hour()]
				if !ok {
					hs = &HourlyStats{Hour: t.Hour()}
					hours[t.Hour()] = hs
				}
				hs.Requests++
				hs.Tokens += d.Tokens.TotalTokens
			}
		}
		s.APIs = append(s.APIs, row)
	}

	sort.Slice(s.APIs, func(i, j int) bool {
		return byRequests(s.APIs[i].TotalRequests, s.APIs[j].TotalRequests, s.APIs[i].APIKey, s.APIs[j].APIKey)
	})
	for _, ms := range models {
		s.Models = append(s.Models, *ms)
	}
	sort.Slice(s.Models, func(i, j int) bool {
		return byRequests(s.Models[i].TotalRequests, s.Models[j].TotalRequests, s.Models[i].Model, s.Models[j].Model)
	})
	for _, as := range auths {
		s.Auths = append(s.Auths, *as)
	}
	sort.Slice(s.Auths, func(i, j int) bool {
		return byRequests(s.Auths[i].TotalRequests, s.Auths[j].TotalRequests, s.Auths[i].AuthIndex, s.Auths[j].AuthIndex)
	})
	for _, d := range days {
		s.Daily = append(s.Daily, *d)
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Day < s.Daily[j].Day })
	for _, h := range hours {
		s.Hourly = append(s.Hourly, *h)
	}
	sort.Slice(s.Hourly, func(i, j int) bool { return s.Hourly[i].Hour < s.Hourly[j].Hour })
	return s
}

func byRequests(a, b int64, ka, kb string) bool {
	if a != b {
		return a > b
	}
	return ka < kb
}
