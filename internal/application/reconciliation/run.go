package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/codec"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/search/opensearch"
	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
	"github.com/turtacn/NERRecon/internal/intelligence/postprocess"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// RunInput describes one end-to-end run over stored document sets.
type RunInput struct {
	// Policies defaults to the configured policy.
	Policies []string
	// Sources maps source names to keys of canonical document sets.
	Sources map[string]string
	// RawSources maps source names to keys of raw prediction files, which are
	// post-processed before reconciliation.
	RawSources    map[string]string
	ThresholdsKey string
	// Output is the key the reconciled set is written under.
	Output string
	// StripMetadata overrides the configured default when set.
	StripMetadata *bool
}

// RunResult reports what a run did.
type RunResult struct {
	Run         *annotation.Run               `json:"run"`
	Reports     []*ensemble.Report            `json:"reports"`
	Postprocess postprocess.Stats             `json:"postprocess"`
	Rules       postprocess.RuleReport        `json:"rules,omitempty"`
	Decode      map[string]codec.DecodeReport `json:"decode,omitempty"`
	Indexed     *opensearch.BulkResult        `json:"indexed,omitempty"`
	Set         annotation.DocumentSet        `json:"-"`
}

func (in *RunInput) validate() error {
	if in.Output == "" {
		return errors.New(errors.ErrCodeValidation, "output key is required")
	}
	if len(in.Sources)+len(in.RawSources) == 0 {
		return errors.New(errors.ErrCodeMissingSource, "at least one source is required")
	}
	for name := range in.RawSources {
		if _, dup := in.Sources[name]; dup {
			return errors.Newf(errors.ErrCodeValidation, "source %q given as both raw and canonical", name)
		}
	}
	return nil
}

// Run loads the sources, reconciles them, applies rules when enabled and
// writes the result under in.Output.  The output key is locked for the
// duration of the run.  The run record is persisted whether or not the
// pipeline succeeds.
func (s *Service) Run(ctx context.Context, in *RunInput) (*RunResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	policies := in.Policies
	if len(policies) == 0 {
		policies = []string{s.opts.Policy}
	}
	policyLabel := policies[len(policies)-1]

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if s.deps.Locker != nil {
		release, err := s.deps.Locker.Acquire(ctx, in.Output)
		if err != nil {
			return nil, err
		}
		defer func() {
			// The run context may already be done.
			if err := release(context.Background()); err != nil {
				s.logger.Warn("failed to release output lock", logging.String("output", in.Output), logging.Err(err))
			}
		}()
	}

	run := annotation.NewRun(policyLabel, in.Output)
	log := s.logger.With(logging.String(logging.FieldRunID, run.ID.String()), logging.String(logging.FieldPolicy, policyLabel))
	s.metrics.RunsActive.WithLabelValues(policyLabel).Inc()
	defer s.metrics.RunsActive.WithLabelValues(policyLabel).Dec()
	s.saveRun(ctx, run, log)

	start := time.Now()
	res, err := s.execute(ctx, in, policies, log)
	if res == nil {
		res = &RunResult{}
	}
	res.Run = run

	stats := map[string]int{}
	if err == nil {
		stats = runStats(res)
	}
	run.Finish(res.Set, stats, err)
	s.metrics.RecordRun(policyLabel, err, time.Since(start))

	if err == nil {
		err = s.persist(ctx, run, res, log)
		if err != nil {
			run.Finish(nil, stats, err)
		}
	}
	s.saveRun(context.WithoutCancel(ctx), run, log)

	if err != nil {
		log.Error("run failed", logging.Err(err))
		s.metrics.RecordError("reconciliation", string(errors.GetCode(err)))
		return res, err
	}
	log.Info("run finished",
		logging.String("output", in.Output),
		logging.Int("documents", run.Documents),
		logging.Int("entities", run.Entities),
		logging.Duration(logging.FieldDuration, time.Since(start)),
	)
	return res, nil
}

func (s *Service) execute(ctx context.Context, in *RunInput, policies []string, log logging.Logger) (*RunResult, error) {
	res := &RunResult{Decode: make(map[string]codec.DecodeReport)}

	sources, err := s.loadSources(ctx, in, res, log)
	if err != nil {
		return res, err
	}

	set, reports, err := s.Combine(ctx, sources, policies...)
	if err != nil {
		return res, err
	}
	res.Reports = reports

	if s.opts.RulesEnabled {
		set, res.Rules, err = s.ApplyRules(ctx, set)
		if err != nil {
			return res, err
		}
	}

	strip := s.opts.StripMetadata
	if in.StripMetadata != nil {
		strip = *in.StripMetadata
	}
	if strip {
		set = annotation.StripMetadata(set)
	}
	res.Set = set
	return res, nil
}

// loadSources reads every source concurrently.  Raw sources are decoded and
// post-processed with the run's threshold table.
func (s *Service) loadSources(ctx context.Context, in *RunInput, res *RunResult, log logging.Logger) (map[string]annotation.DocumentSet, error) {
	var thresholds *postprocess.Thresholds
	if len(in.RawSources) > 0 {
		t, err := s.LoadThresholds(ctx, in.ThresholdsKey)
		if err != nil {
			return nil, err
		}
		thresholds = t
	}

	type loaded struct {
		name   string
		set    annotation.DocumentSet
		report codec.DecodeReport
		stats  postprocess.Stats
	}
	names := make([]string, 0, len(in.Sources)+len(in.RawSources))
	keys := make(map[string]string, cap(names))
	raw := make(map[string]bool, len(in.RawSources))
	for n, k := range in.Sources {
		names = append(names, n)
		keys[n] = k
	}
	for n, k := range in.RawSources {
		names = append(names, n)
		keys[n] = k
		raw[n] = true
	}

	out := make([]loaded, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			data, err := s.deps.Store.Read(gctx, keys[name])
			if err != nil {
				return err
			}
			l := loaded{name: name}
			if raw[name] {
				articles, rep, err := s.opts.Codec.DecodeRaw(data)
				if err != nil {
					return err
				}
				pp, err := s.Postprocess(gctx, articles, thresholds)
				if err != nil {
					return err
				}
				l.set, l.report, l.stats = pp.Set, rep, pp.Stats
			} else {
				l.set, l.report, err = s.opts.Codec.DecodeDocuments(data)
				if err != nil {
					return err
				}
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make(map[string]annotation.DocumentSet, len(out))
	for _, l := range out {
		sources[l.name] = l.set
		res.Decode[l.name] = l.report
		res.Postprocess = res.Postprocess.Add(l.stats)
		s.metrics.RecordDecodeSkipped(l.name, l.report.Skipped)
		if l.report.Skipped > 0 {
			log.Warn("records skipped while decoding",
				logging.String(logging.FieldSource, l.name),
				logging.Int("skipped", l.report.Skipped),
				logging.Strings("ids", l.report.SkippedIDs()),
			)
		}
	}
	return sources, nil
}

// persist writes the output set, then records and indexes it when those
// backends are configured.  Index failures are logged, not returned.
func (s *Service) persist(ctx context.Context, run *annotation.Run, res *RunResult, log logging.Logger) error {
	start := time.Now()
	data, err := s.opts.Codec.EncodeDocuments(res.Set)
	if err != nil {
		return err
	}
	if err := s.deps.Store.Write(ctx, run.Output, data); err != nil {
		return err
	}
	if s.deps.Runs != nil {
		if _, err := s.deps.Runs.SaveDocuments(ctx, run.ID, res.Set); err != nil {
			return err
		}
	}
	s.metrics.RecordStage(StagePersist, time.Since(start))
	s.metrics.RecordEntities(res.Set.LabelCounts())

	if s.deps.Indexer != nil {
		start = time.Now()
		br, err := s.deps.Indexer.IndexRun(ctx, run, res.Set)
		if err != nil {
			log.Warn("search export failed", logging.Err(err))
		} else {
			res.Indexed = br
			s.metrics.RecordIndexed(br.Succeeded, br.Failed)
		}
		s.metrics.RecordStage(StageIndex, time.Since(start))
	}
	return nil
}

func (s *Service) saveRun(ctx context.Context, run *annotation.Run, log logging.Logger) {
	if s.deps.Runs == nil {
		return
	}
	if err := s.deps.Runs.SaveRun(ctx, run); err != nil {
		log.Warn("failed to record run", logging.Err(err))
	}
}

func runStats(res *RunResult) map[string]int {
	stats := res.Postprocess.Flatten()
	totals := res.Rules.Totals()
	stats["rules_extended"] = totals.Extended
	stats["rules_reverted"] = totals.Reverted
	for _, rep := range res.Reports {
		stats["steps"] += len(rep.Steps)
	}
	skipped := 0
	for _, d := range res.Decode {
		skipped += d.Skipped
	}
	stats["decode_skipped"] = skipped
	return stats
}

// ─────────────────────────────────────────────────────────────────────────────
// Run records
// ─────────────────────────────────────────────────────────────────────────────

// GetRun loads a run record.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*annotation.Run, error) {
	if s.deps.Runs == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "run history is not configured")
	}
	return s.deps.Runs.GetRun(ctx, id)
}

// ListRuns returns the most recent run records.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*annotation.Run, error) {
	if s.deps.Runs == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "run history is not configured")
	}
	return s.deps.Runs.ListRuns(ctx, limit)
}

//Personal.AI order the ending
