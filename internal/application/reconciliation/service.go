// Package reconciliation provides the application service that runs the
// prediction pipeline: post-processing raw model output, reconciling the
// resulting sets under an ensemble policy, applying span extension rules and
// persisting the outcome.  CLI, HTTP and worker entry points all go through it.
package reconciliation

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/NERRecon/internal/config"
	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/codec"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NERRecon/internal/infrastructure/search/opensearch"
	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
	"github.com/turtacn/NERRecon/internal/intelligence/postprocess"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// Pipeline stage names used in logs and metrics.
const (
	StagePostprocess = "postprocess"
	StageReconcile   = "reconcile"
	StageRules       = "rules"
	StagePersist     = "persist"
	StageIndex       = "index"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// Locker guards an output key against concurrent runs.
type Locker interface {
	Acquire(ctx context.Context, output string) (release func(context.Context) error, err error)
}

// Cache is the subset of the Redis cache the service reads thresholds through.
type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// EntityIndexer exports a finished run to the search index.
type EntityIndexer interface {
	IndexRun(ctx context.Context, run *annotation.Run, set annotation.DocumentSet) (*opensearch.BulkResult, error)
}

// Dependencies wires the service.  Store is required; every other
// collaborator is optional and skipped when nil.
type Dependencies struct {
	Store   annotation.SetStore
	Runs    annotation.RunRepository
	Locker  Locker
	Cache   Cache
	Indexer EntityIndexer
	Metrics *prometheus.AppMetrics
	Logger  logging.Logger
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Options tunes the pipeline.
type Options struct {
	Postprocess postprocess.Options
	// Thresholds is used when a request names no thresholds key.
	Thresholds    *postprocess.Thresholds
	ThresholdsKey string
	CacheTTL      time.Duration

	RulesEnabled    bool
	RecheckOverlaps bool
	Lookahead       int

	Workers       int
	Policy        string
	StripMetadata bool
	Timeout       time.Duration

	Registry *ensemble.Registry
	Codec    *codec.Codec
}

// OptionsFromConfig maps the configuration onto Options.  Extra policies
// loaded from reconcile.policy_file are registered next to the built-ins.
func OptionsFromConfig(cfg *config.Config, extra ...*ensemble.Policy) Options {
	return Options{
		Postprocess: postprocess.Options{
			Adjacency: postprocess.Adjacency(cfg.Postprocess.Adjacency),
			EndShift:  cfg.Postprocess.EndShift,
		},
		ThresholdsKey:   cfg.Postprocess.ThresholdsFile,
		CacheTTL:        cfg.Redis.CacheTTL,
		RulesEnabled:    cfg.Rules.Enabled,
		RecheckOverlaps: cfg.Rules.RecheckOverlaps,
		Lookahead:       cfg.Rules.Window,
		Workers:         cfg.Reconcile.Workers,
		Policy:          cfg.Reconcile.Policy,
		StripMetadata:   cfg.Reconcile.StripMetadata,
		Timeout:         cfg.Reconcile.Timeout,
		Registry:        ensemble.NewRegistry(extra...),
		Codec:           codec.New(codec.Options{IncludeScores: cfg.Output.IncludeScores, Indent: cfg.Output.Indent}),
	}
}

func (o *Options) applyDefaults() {
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.Postprocess.Adjacency == "" {
		o.Postprocess = postprocess.DefaultOptions()
	}
	if o.Registry == nil {
		o.Registry = ensemble.NewRegistry()
	}
	if o.Codec == nil {
		o.Codec = codec.New(codec.Options{})
	}
	if o.Policy == "" {
		o.Policy = ensemble.PolicyEnsemble1
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Service runs the pipeline stages individually or end to end.
type Service struct {
	deps       Dependencies
	opts       Options
	rules      *postprocess.RuleEngine
	reconciler *ensemble.Reconciler
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
}

// NewService validates deps and returns a Service.
func NewService(deps Dependencies, opts Options) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New(errors.ErrCodeValidation, "document store is required")
	}
	opts.applyDefaults()
	logger := logging.OrNop(deps.Logger).Named("reconciliation")
	metrics := deps.Metrics
	if metrics == nil {
		metrics = prometheus.NewNoopMetrics()
	}
	return &Service{
		deps: deps,
		opts: opts,
		rules: postprocess.NewRuleEngine(nil,
			postprocess.WithLookahead(opts.Lookahead),
			postprocess.WithOverlapRecheck(opts.RecheckOverlaps),
		),
		reconciler: ensemble.NewReconciler(logger),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Codec returns the codec used for every document set the service reads and
// writes.
func (s *Service) Codec() *codec.Codec { return s.opts.Codec }

// Policies returns every registered policy in name order.
func (s *Service) Policies() []*ensemble.Policy {
	names := s.opts.Registry.Names()
	out := make([]*ensemble.Policy, 0, len(names))
	for _, n := range names {
		p, _ := s.opts.Registry.Get(n)
		out = append(out, p)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Thresholds
// ─────────────────────────────────────────────────────────────────────────────

// LoadThresholds reads the threshold table stored under key, through the
// cache when one is configured.  An empty key returns the default table.
func (s *Service) LoadThresholds(ctx context.Context, key string) (*postprocess.Thresholds, error) {
	if key == "" {
		key = s.opts.ThresholdsKey
	}
	if key == "" {
		if s.opts.Thresholds == nil {
			return nil, errors.New(errors.ErrCodeInvalidThreshold, "no thresholds configured")
		}
		return s.opts.Thresholds, nil
	}

	load := func(ctx context.Context) (interface{}, error) {
		data, err := s.deps.Store.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		t, err := postprocess.ParseThresholds(data)
		if err != nil {
			return nil, err
		}
		return t.Map(), nil
	}

	if s.deps.Cache == nil {
		m, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return postprocess.NewThresholds(m.(map[string]float64))
	}

	hit := true
	var m map[string]float64
	err := s.deps.Cache.GetOrSet(ctx, "thresholds:"+key, &m, s.opts.CacheTTL, func(ctx context.Context) (interface{}, error) {
		hit = false
		return load(ctx)
	})
	s.metrics.RecordCacheAccess("thresholds", hit)
	if err != nil {
		return nil, err
	}
	return postprocess.NewThresholds(m)
}

// ─────────────────────────────────────────────────────────────────────────────
// Stages
// ─────────────────────────────────────────────────────────────────────────────

// PostprocessResult is the output of Postprocess.
type PostprocessResult struct {
	Set   annotation.DocumentSet `json:"-"`
	Stats postprocess.Stats      `json:"stats"`
}

// Postprocess converts raw articles into canonical documents, one worker per
// article up to the configured limit.  A single worker runs in the caller's
// goroutine.
func (s *Service) Postprocess(ctx context.Context, articles annotation.ArticleSet, thresholds *postprocess.Thresholds) (*PostprocessResult, error) {
	start := time.Now()
	proc, err := postprocess.NewProcessor(thresholds, s.opts.Postprocess)
	if err != nil {
		return nil, err
	}

	res := &PostprocessResult{}
	if s.opts.Workers == 1 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "pipeline cancelled")
		}
		res.Set, res.Stats = proc.ProcessSet(articles)
	} else {
		ids := articleIDs(articles)
		docs := make([]*annotation.Document, len(ids))
		stats := make([]postprocess.Stats, len(ids))
		err = s.fanOut(ctx, len(ids), func(i int) {
			docs[i], stats[i] = proc.Process(articles[ids[i]])
		})
		if err != nil {
			return nil, err
		}

		res.Set = make(annotation.DocumentSet, len(ids))
		for i, id := range ids {
			res.Set[id] = docs[i]
			res.Stats = res.Stats.Add(stats[i])
		}
	}
	s.metrics.RecordStage(StagePostprocess, time.Since(start))
	s.metrics.RecordStageStats(StagePostprocess, res.Stats.Flatten())
	s.logger.Info("predictions post-processed",
		logging.Int("documents", len(res.Set)),
		logging.Int("kept", res.Stats.Filter.Kept),
		logging.Int("dropped", res.Stats.Filter.Dropped),
		logging.Int("merged", res.Stats.Merge.Merged),
		logging.Duration(logging.FieldDuration, time.Since(start)),
	)
	return res, nil
}

// ApplyRules runs the span extension rules over every document.
func (s *Service) ApplyRules(ctx context.Context, set annotation.DocumentSet) (annotation.DocumentSet, postprocess.RuleReport, error) {
	start := time.Now()
	out, total, err := s.applyRules(ctx, set)
	if err != nil {
		return nil, nil, err
	}
	totals := total.Totals()
	s.metrics.RecordStage(StageRules, time.Since(start))
	s.metrics.RecordStageStats(StageRules, map[string]int{
		"rules_extended": totals.Extended,
		"rules_reverted": totals.Reverted,
	})
	s.logger.Debug("rules applied",
		logging.Int("candidates", totals.Total),
		logging.Int("extended", totals.Extended),
		logging.Int("reverted", totals.Reverted),
	)
	return out, total, nil
}

func (s *Service) applyRules(ctx context.Context, set annotation.DocumentSet) (annotation.DocumentSet, postprocess.RuleReport, error) {
	if s.opts.Workers == 1 {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeTimeout, "pipeline cancelled")
		}
		out, total := s.rules.ApplySet(set)
		return out, total, nil
	}

	ids := set.IDs()
	docs := make([]*annotation.Document, len(ids))
	reports := make([]postprocess.RuleReport, len(ids))
	err := s.fanOut(ctx, len(ids), func(i int) {
		if d := set[ids[i]]; d != nil {
			docs[i], reports[i] = s.rules.Apply(d)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	out := make(annotation.DocumentSet, len(ids))
	total := postprocess.RuleReport{}
	for i, id := range ids {
		if docs[i] == nil {
			continue
		}
		out[id] = docs[i]
		total = total.Add(reports[i])
	}
	return out, total, nil
}

// Combine reconciles sources under the named policies in dependency order
// and returns the set produced by the last one.
func (s *Service) Combine(ctx context.Context, sources map[string]annotation.DocumentSet, policies ...string) (annotation.DocumentSet, []*ensemble.Report, error) {
	if len(policies) == 0 {
		policies = []string{s.opts.Policy}
	}
	plan, err := s.opts.Registry.Plan(policies...)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	results, reports, err := s.reconciler.RunPlan(ctx, plan, sources)
	if err != nil {
		return nil, nil, err
	}
	for _, rep := range reports {
		for _, st := range rep.Steps {
			s.metrics.RecordStep(rep.Policy, string(st.Op), st.Before, st.After)
		}
	}
	s.metrics.RecordStage(StageReconcile, time.Since(start))
	return results[plan[len(plan)-1].OutputName()], reports, nil
}

// fanOut calls fn for every index in [0, n) on at most Workers goroutines.
// It stops scheduling once ctx is done.
func (s *Service) fanOut(ctx context.Context, n int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, errors.ErrCodeTimeout, "pipeline cancelled")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeTimeout, "pipeline cancelled")
	}
	return nil
}

func articleIDs(set annotation.ArticleSet) []string {
	ids := make([]string, 0, len(set))
	for id, a := range set {
		if a != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

//Personal.AI order the ending
