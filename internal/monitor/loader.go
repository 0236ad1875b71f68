package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/source"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
	"golang.org/x/sync/errgroup"
)

// Result describes one settled load.
type Result struct {
	Generation uint64
	Dataset    *usage.Dataset
	Identity   *identity.Map
	// Err is the usage fetch error; identity fetch errors are only logged.
	Err error
	// Stale is set when a newer load started before this one settled; the
	// result was not published.
	Stale bool
	// Degraded lists the identity sources that failed and were replaced by
	// an empty list.
	Degraded []string
}

// Loader fetches usage and the six identity sources as one batch.
type Loader struct {
	providers source.ProviderSource
	usage     source.UsageSource
	state     *State
	gen       atomic.Uint64
	now       func() time.Time
}

// NewLoader creates a loader publishing into a fresh State.
func NewLoader(providers source.ProviderSource, usageSource source.UsageSource) *Loader {
	if providers == nil {
		providers = noProviders{}
	}
	return &Loader{
		providers: providers,
		usage:     usageSource,
		state:     NewState(),
		now:       time.Now,
	}
}

// State returns the state the loader publishes into.
func (l *Loader) State() *State { return l.state }

// Load runs one load cycle. Overlapping calls are allowed; only the most
// recently started one is published.
func (l *Loader) Load(ctx context.Context) Result {
	gen := l.gen.Add(1)
	l.state.begin(gen)

	var (
		g         errgroup.Group
		ds        *usage.Dataset
		usageErr  error
		src       identity.Sources
		lists     = make([][]identity.ProviderRecord, len(source.ProviderKinds))
		failures  = make([]string, len(source.ProviderKinds)+1)
		providers = []func(context.Context) ([]identity.ProviderRecord, error){
			l.providers.OpenAICompat,
			l.providers.GeminiKeys,
			l.providers.ClaudeKeys,
			l.providers.CodexKeys,
			l.providers.VertexKeys,
		}
	)

	g.Go(func() error {
		ds, usageErr = fetchUsage(ctx, l.usage)
		return nil
	})
	for i, fetch := range providers {
		name, family := source.ProviderKinds[i].Endpoint, source.ProviderKinds[i].Family
		g.Go(func() error {
			recs, err := guard(ctx, fetch)
			if err != nil {
				log.WithError(err).Warnf("identity source %s unavailable, using an empty list", name)
				failures[i] = name
				return nil
			}
			// The resolver dispatches on Family, so tag records with the
			// list they came from.
			tagged := make([]identity.ProviderRecord, len(recs))
			for j, rec := range recs {
				rec.Family = family
				tagged[j] = rec
			}
			lists[i] = tagged
			return nil
		})
	}
	g.Go(func() error {
		files, err := guard(ctx, l.providers.AuthFiles)
		if err != nil {
			log.WithError(err).Warn("identity source auth-files unavailable, using an empty list")
			failures[len(failures)-1] = "auth-files"
			return nil
		}
		src.AuthFiles = files
		return nil
	})
	_ = g.Wait()

	for _, recs := range lists {
		src.Providers = append(src.Providers, recs...)
	}
	ids := identity.Resolve(src)

	res := Result{Generation: gen, Dataset: ds, Identity: ids, Err: usageErr}
	for _, f := range failures {
		if f != "" {
			res.Degraded = append(res.Degraded, f)
		}
	}
	if usageErr != nil {
		log.Errorf("usage load failed: %v", usageErr)
	}
	if !l.state.publish(gen, ds, ids, usageErr, l.now()) {
		res.Stale = true
		log.Debugf("load %d superseded, discarding its result", gen)
	}
	return res
}

// fetchUsage is the one unguarded fetch: its error is returned as is, and a
// panic is converted into an error so it never reaches consumers.
func fetchUsage(ctx context.Context, src source.UsageSource) (ds *usage.Dataset, err error) {
	if src == nil {
		return nil, errors.New("no usage source configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("usage source panicked: %v", r)
		}
	}()
	ds, err = src.Usage(ctx)
	if err == nil && ds == nil {
		ds = usage.NewDataset()
	}
	return ds, err
}

// guard runs an identity fetch, turning a panic into an error.
func guard[T any](ctx context.Context, fetch func(context.Context) ([]T, error)) (out []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fetch(ctx)
}

// Run loads immediately, then on every tick of interval and on every
// trigger, until ctx is done. A zero interval disables the ticker.
func (l *Loader) Run(ctx context.Context, interval time.Duration, trigger <-chan struct{}) {
	l.Load(ctx)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			l.Load(ctx)
		case <-trigger:
			l.Load(ctx)
		}
	}
}

// noProviders stands in for a missing provider source.
type noProviders struct{}

func (noProviders) OpenAICompat(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (noProviders) GeminiKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (noProviders) ClaudeKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (noProviders) CodexKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (noProviders) VertexKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (noProviders) AuthFiles(context.Context) ([]identity.AuthFileRecord, error) { return nil, nil }
