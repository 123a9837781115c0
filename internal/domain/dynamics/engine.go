package dynamics

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/loopwise/pkg/logger"
)

// Engine runs the analysis pipeline. It is immutable after NewEngine.
type Engine struct {
	minCorrelation  float64
	minConfidence   float64
	significance    float64
	maxLag          int
	maxCycles       int
	maxInfoFlow     int
	strongLoop      float64
	canonicalCycles bool
	logger          logger.Logger
}

// NewEngine creates an Engine with the provided options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		minCorrelation:  DefaultMinCorrelation,
		minConfidence:   DefaultMinConfidence,
		significance:    DefaultSignificanceLevel,
		maxLag:          DefaultMaxLag,
		maxCycles:       DefaultMaxCycles,
		maxInfoFlow:     DefaultMaxInformationFlowPoints,
		strongLoop:      DefaultStrongLoopThreshold,
		canonicalCycles: true,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeSystem runs link inference, loop detection and leverage ranking over
// series and assembles the result. Both series and metricNames must be
// non-empty; otherwise ErrInvalidInput is returned and no result is built.
func (e *Engine) AnalyzeSystem(ctx context.Context, series map[string][]float64, metricNames []string, entityName, domainLabel string) (*Analysis, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: time series is empty", ErrInvalidInput)
	}
	if len(metricNames) == 0 {
		return nil, fmt.Errorf("%w: metric names are empty", ErrInvalidInput)
	}
	start := time.Now()

	metrics := presentMetrics(series, metricNames)
	links := e.InferLinks(ctx, series, metrics)
	reinforcing, balancing := e.DetectLoops(ctx, links, metrics)

	a := &Analysis{
		EntityName:          entityName,
		DomainLabel:         domainLabel,
		CausalLinks:         links,
		ReinforcingLoops:    reinforcing,
		BalancingLoops:      balancing,
		MetricsAnalyzed:     len(metrics),
		AverageSeriesLength: averageLength(series, metrics),
	}
	loops := a.Loops()
	a.LeveragePoints = e.RankLeveragePoints(ctx, loops, entityName, domainLabel)

	dominant := dominantLoop(loops)
	if dominant != nil {
		a.DominantLoopID = dominant.ID
	}
	a.KeyVariables = keyVariables(links, metrics)
	a.SystemArchetype = archetype(len(reinforcing), len(balancing), dominant)
	a.CurrentBehavior = currentBehavior(len(reinforcing), len(balancing), dominant)
	a.StructuralIssues = structuralIssues(links, loops, metrics)
	a.UnintendedConsequences = unintendedConsequences(reinforcing, balancing)
	a.NarrativeHooks = narrativeHooks(a)
	a.ConfidenceScore = confidence(a.AverageSeriesLength, len(links), len(loops))

	e.logger.Info(ctx, "system analysed",
		logger.String("entity", entityName),
		logger.Int("metrics", a.MetricsAnalyzed),
		logger.Int("links", len(links)),
		logger.Int("reinforcing", len(reinforcing)),
		logger.Int("balancing", len(balancing)),
		logger.Float64("confidence", a.ConfidenceScore),
		logger.Duration("took", time.Since(start)),
	)
	return a, nil
}
