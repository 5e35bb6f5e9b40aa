package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/crateindex/pkg/ingest"
	cio "github.com/matzehuels/crateindex/pkg/io"
	"github.com/matzehuels/crateindex/pkg/observability"
	"github.com/matzehuels/crateindex/pkg/rank"
)

// Runner executes pipeline runs. It holds no run state, so one Runner may
// serve several runs in sequence or concurrently.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. If logger is nil, log.Default() is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// Run executes load → rank → encode → publish.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{RunID: uuid.NewString()}
	logger := opts.Logger.With("run", result.RunID)
	hooks := observability.Pipeline()

	// Stage 1: Load
	loadStart := time.Now()
	hooks.OnLoadStart(ctx, opts.Source.Name())
	in := ingest.New()
	err := opts.Source.Load(ctx, in)
	snap := in.Snapshot()
	result.Stats.Rows = snap.Stats.Rows()
	result.Stats.LoadTime = time.Since(loadStart)
	hooks.OnLoadComplete(ctx, opts.Source.Name(), result.Stats.Rows, result.Stats.LoadTime, err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("loaded snapshot",
		"source", opts.Source.Name(),
		"rows", result.Stats.Rows,
		"crates", len(snap.Crates),
		"edges", len(snap.Edges),
		"duration", result.Stats.LoadTime)

	// Stage 2: Rank
	rankStart := time.Now()
	hooks.OnRankStart(ctx, len(snap.HasLib))
	counts := rank.Reduce(snap)
	result.Packages = rank.Rank(snap, counts)
	result.Keywords = snap.KeywordNames
	result.Categories = snap.CategoryNames
	result.Stats.Libraries = len(snap.HasLib)
	result.Stats.Packages = len(result.Packages)
	result.Stats.RankTime = time.Since(rankStart)
	hooks.OnRankComplete(ctx, result.Stats.Packages, result.Stats.RankTime)

	logger.Info("ranked packages",
		"libraries", result.Stats.Libraries,
		"packages", result.Stats.Packages,
		"duration", result.Stats.RankTime)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: Encode and publish
	publishStart := time.Now()
	hooks.OnPublishStart(ctx, len(opts.Sinks))
	result.Artifacts = cio.Encode(result.Packages, result.Keywords, result.Categories)
	result.Artifacts.LastUpdated = opts.LastUpdated
	result.Stats.Bytes = result.Artifacts.Size()

	err = publish(ctx, opts.Sinks, result.Artifacts)
	result.Stats.PublishTime = time.Since(publishStart)
	hooks.OnPublishComplete(ctx, result.Stats.Bytes, result.Stats.PublishTime, err)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	logger.Info("published artifacts",
		"sinks", len(opts.Sinks),
		"bytes", result.Stats.Bytes,
		"duration", result.Stats.PublishTime)

	return result, nil
}

func publish(ctx context.Context, sinks []cio.Sink, a cio.Artifacts) error {
	for _, s := range sinks {
		if err := s.Write(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
