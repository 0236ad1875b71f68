package monitor

import (
	"sort"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
	"github.com/samber/lo"
)

// ReportOptions selects what a Report contains.
type ReportOptions struct {
	Window  usage.Window
	Filter  string
	Details bool
	// RevealKeys leaves API keys readable; otherwise they are masked.
	RevealKeys bool
}

// Report is a filtered dataset joined with the identity map, ready to print
// or serialise.
type Report struct {
	Window     string                `json:"window"`
	Label      string                `json:"label"`
	Filter     string                `json:"filter,omitempty"`
	Generation uint64                `json:"generation"`
	LoadedAt   time.Time             `json:"loaded_at,omitzero"`
	Loading    bool                  `json:"loading"`
	Error      string                `json:"error,omitempty"`
	Totals     usage.AggregatedStats `json:"totals"`
	APIs       []APIReport           `json:"apis"`
	Models     []usage.ModelStats    `json:"models"`
	Auths      []AuthReport          `json:"auths"`
	Daily      []usage.DailyStats    `json:"daily"`
	Hourly     []usage.HourlyStats   `json:"hourly"`
	Undated    int64                 `json:"undated,omitempty"`
}

type APIReport struct {
	APIKey   string `json:"api_key"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Resolved bool   `json:"resolved"`
	usage.AggregatedStats
	Models []ModelReport `json:"models"`
}

type ModelReport struct {
	Model string `json:"model"`
	// Allowed is false when the key has a model list that does not name
	// this model.
	Allowed bool `json:"allowed"`
	usage.AggregatedStats
	Details []DetailReport `json:"details,omitempty"`
}

type DetailReport struct {
	usage.Detail
	Account string `json:"account,omitempty"`
}

type AuthReport struct {
	AuthIndex string `json:"auth_index"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Resolved  bool   `json:"resolved"`
	usage.AggregatedStats
}

// BuildReport joins filtered with the identity map of snap. filtered is
// normally View.Filtered(snap.Dataset, ...).
func BuildReport(snap Snapshot, filtered *usage.Dataset, opts ReportOptions) Report {
	sum := usage.Summarize(filtered)
	ids := snap.Identity
	if ids == nil {
		ids = identity.Empty()
	}
	r := Report{
		Window:     opts.Window.String(),
		Label:      opts.Window.Label(),
		Filter:     opts.Filter,
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt,
		Loading:    snap.Loading,
		Error:      snap.Err,
		Totals:     sum.Totals,
		APIs:       []APIReport{},
		Models:     sum.Models,
		Auths:      make([]AuthReport, 0, len(sum.Auths)),
		Daily:      sum.Daily,
		Hourly:     sum.Hourly,
		Undated:    sum.Undated,
	}

	for _, row := range sum.APIs {
		api := filtered.APIs[row.APIKey]
		id := ids.Lookup(row.APIKey, "")
		ar := APIReport{
			APIKey:          row.APIKey,
			Name:            id.Name,
			Type:            id.Type,
			Resolved:        id.Resolved,
			AggregatedStats: row.AggregatedStats,
		}
		if !opts.RevealKeys {
			ar.APIKey = identity.MaskKey(row.APIKey)
		}
		names := lo.Keys(api.Models)
		sort.Strings(names)
		for _, name := range names {
			details := api.Models[name].Details
			mr := ModelReport{
				Model:           name,
				Allowed:         ids.Allows(row.APIKey, name),
				AggregatedStats: usage.Aggregate(details),
			}
			if opts.Details {
				mr.Details = make([]DetailReport, len(details))
				for i, d := range details {
					mr.Details[i] = DetailReport{Detail: d}
					if info, ok := ids.Auth(d.AuthIndex); ok {
						mr.Details[i].Account = info.Name
					}
				}
			}
			ar.Models = append(ar.Models, mr)
		}
		r.APIs = append(r.APIs, ar)
	}

	for _, row := range sum.Auths {
		ar := AuthReport{AuthIndex: row.AuthIndex, Type: identity.UnknownType, Name: row.AuthIndex, AggregatedStats: row.AggregatedStats}
		if info, ok := ids.Auth(row.AuthIndex); ok {
			ar.Name, ar.Type, ar.Resolved = info.Name, info.Type, true
		}
		r.Auths = append(r.Auths, ar)
	}
	return r
}
