// ABOUTME: Drives a Generator through the linear stage machine and emits generation events.
// ABOUTME: Every failure, including panics and cancellation, becomes exactly one terminal error event.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/2389-research/sitegen/genevent"
)

// Runner executes generation runs against a Generator.
type Runner struct {
	gen    Generator
	buffer int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBuffer sets the event channel capacity.
func WithBuffer(n int) RunnerOption {
	return func(r *Runner) { r.buffer = n }
}

// NewRunner creates a Runner for gen.
func NewRunner(gen Generator, opts ...RunnerOption) *Runner {
	r := &Runner{gen: gen, buffer: 64}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts a generation and returns its event sequence. The channel is
// closed after the terminal event. Callers must drain it to the end.
func (r *Runner) Run(ctx context.Context, cfg Config) <-chan genevent.Event {
	out := make(chan genevent.Event, r.buffer)
	go func() {
		defer close(out)
		rn := &run{gen: r.gen, out: out, started: time.Now()}
		defer func() {
			if p := recover(); p != nil {
				log.Printf("component=pipeline action=panic stage=%s err=%v", rn.stage, p)
				rn.fail(fmt.Errorf("internal error: %v", p))
			}
		}()
		if err := rn.execute(ctx, cfg); err != nil {
			rn.fail(err)
		}
	}()
	return out
}

// run holds the state of one execution.
type run struct {
	gen        Generator
	out        chan<- genevent.Event
	stage      genevent.Stage
	terminated bool
	started    time.Time
}

func (rn *run) emit(e genevent.Event) {
	if rn.terminated {
		return
	}
	rn.terminated = genevent.IsTerminal(e)
	rn.out <- e
}

func (rn *run) fail(err error) {
	if rn.terminated {
		return
	}
	stage := rn.stage
	if stage == "" {
		stage = genevent.StageConfigAssembly
	}
	log.Printf("component=pipeline action=failed stage=%s elapsed=%s err=%v", stage, time.Since(rn.started).Round(time.Millisecond), err)
	rn.emit(genevent.Error{Stage: stage, Message: err.Error()})
}

// step runs fn bracketed by stage-start and stage-complete.
func (rn *run) step(ctx context.Context, st genevent.Stage, total *int, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("generation cancelled: %w", err)
	}
	rn.stage = st
	rn.emit(genevent.StageStart{Stage: st, TotalFiles: total})
	if err := fn(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("generation cancelled: %w", err)
	}
	rn.emit(genevent.StageComplete{Stage: st})
	return nil
}

func (rn *run) execute(ctx context.Context, raw Config) error {
	var (
		cfg   Config
		ds    DesignSystem
		bp    Blueprint
		files []genevent.File
	)

	if err := rn.step(ctx, genevent.StageConfigAssembly, nil, func() (err error) {
		cfg, err = raw.Assemble()
		return err
	}); err != nil {
		return err
	}

	if err := rn.step(ctx, genevent.StageDesignSystem, nil, func() (err error) {
		ds, err = rn.gen.DesignSystem(ctx, cfg)
		if err != nil {
			return fmt.Errorf("design system: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := rn.step(ctx, genevent.StageBlueprint, nil, func() (err error) {
		bp, err = rn.gen.Blueprint(ctx, cfg, ds)
		if err != nil {
			return fmt.Errorf("blueprint: %w", err)
		}
		bp, err = bp.Normalize()
		return err
	}); err != nil {
		return err
	}

	total := len(bp.Components)
	if err := rn.step(ctx, genevent.StageComponents, genevent.IntPtr(total), func() error {
		for i, spec := range bp.Components {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("generation cancelled: %w", err)
			}
			f, err := rn.component(ctx, ComponentRequest{
				Config:    cfg,
				Design:    ds,
				Blueprint: bp,
				Spec:      spec,
				Index:     i,
				Previous:  append([]genevent.File(nil), files...),
			})
			if err != nil {
				return fmt.Errorf("component %s: %w", spec.Name, err)
			}
			files = append(files, f)
			rn.emit(genevent.ComponentComplete{
				ComponentName:  spec.Name,
				File:           f,
				CompletedFiles: i + 1,
				TotalFiles:     total,
			})
		}
		return nil
	}); err != nil {
		return err
	}

	if err := rn.step(ctx, genevent.StageAssembly, nil, func() error {
		return assemble(bp, files)
	}); err != nil {
		return err
	}

	log.Printf("component=pipeline action=complete files=%d elapsed=%s", len(files), time.Since(rn.started).Round(time.Millisecond))
	rn.emit(genevent.GenerationComplete{TotalFiles: len(files)})
	return nil
}

// component generates one file. Chunks emitted after the generator returns
// are discarded so they cannot follow component-complete.
func (rn *run) component(ctx context.Context, req ComponentRequest) (genevent.File, error) {
	name := req.Spec.Name
	rn.emit(genevent.ComponentStart{ComponentName: name})

	var mu sync.Mutex
	open := true
	emit := func(chunk string) {
		if chunk == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if open {
			rn.emit(genevent.ComponentChunk{ComponentName: name, Chunk: chunk})
		}
	}

	f, err := rn.gen.Component(ctx, req, emit)
	mu.Lock()
	open = false
	mu.Unlock()
	if err != nil {
		return genevent.File{}, err
	}
	if f.Path == "" {
		f.Path = req.Spec.Path
	}
	return f, nil
}

// assemble checks that every planned component produced a distinct file.
func assemble(bp Blueprint, files []genevent.File) error {
	if len(files) != len(bp.Components) {
		return fmt.Errorf("assembly: planned %d files, produced %d", len(bp.Components), len(files))
	}
	seen := make(map[string]string, len(files))
	for i, f := range files {
		name := bp.Components[i].Name
		if f.Path == "" {
			return fmt.Errorf("assembly: %s produced a file without a path", name)
		}
		if prev, dup := seen[f.Path]; dup {
			return fmt.Errorf("assembly: %s and %s both wrote %s", prev, name, f.Path)
		}
		seen[f.Path] = name
	}
	return nil
}
