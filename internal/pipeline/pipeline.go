package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/politeguard/internal/engine/dedup"
	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/output"
)

const maxLineSize = 1024 * 1024

// AnalyzeFunc analyzes one text. Index is filled in by the pipeline.
type AnalyzeFunc func(ctx context.Context, text string) (model.Record, error)

// Summary counts the records a run produced.
type Summary struct {
	Total      int
	Duplicates int // inputs served from an identical earlier text
	ByLevel    map[model.Level]int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDedup analyzes each distinct text once and reuses its record for
// repeats.
func WithDedup() Option {
	return func(p *Pipeline) { p.dedup = true }
}

// Pipeline fans texts out to an analyzer and writes the records in input
// order.
type Pipeline struct {
	analyze AnalyzeFunc
	output  output.Output
	workers int
	dedup   bool
}

// New creates a Pipeline running at most workers analyses at once.
func New(analyze AnalyzeFunc, out output.Output, workers int, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyze: analyze,
		output:  out,
		workers: max(workers, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run analyzes every text and writes the results. The first analysis error
// cancels the remaining work and nothing is written.
func (p *Pipeline) Run(ctx context.Context, texts []string) (Summary, error) {
	sum := Summary{ByLevel: make(map[model.Level]int)}

	var records []model.Record
	if p.dedup {
		batch := dedup.Collapse(texts)
		unique, err := p.analyzeAll(ctx, batch.Unique)
		if err != nil {
			return Summary{}, err
		}
		records = dedup.Expand(batch, unique)
		sum.Duplicates = batch.Duplicates()
	} else {
		var err error
		if records, err = p.analyzeAll(ctx, texts); err != nil {
			return Summary{}, err
		}
	}

	for i, rec := range records {
		rec.Index = i
		rec.Text = texts[i]
		if err := p.output.Write(ctx, rec); err != nil {
			return sum, fmt.Errorf("pipeline output: %w", err)
		}
		sum.Total++
		sum.ByLevel[rec.Level]++
	}
	return sum, nil
}

func (p *Pipeline) analyzeAll(ctx context.Context, texts []string) ([]model.Record, error) {
	records := make([]model.Record, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, text := range texts {
		g.Go(func() error {
			rec, err := p.analyze(gctx, text)
			if err != nil {
				return fmt.Errorf("pipeline analyze #%d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}

// ReadLines returns every line of r, blank lines included, so record indexes
// match input line numbers.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pipeline read: %w", err)
	}
	return lines, nil
}
