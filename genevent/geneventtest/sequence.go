// ABOUTME: Builders for well-formed generation event sequences used across package tests.
// ABOUTME: Produces the exact stage and component ordering the pipeline runner emits.
package geneventtest

import "github.com/2389-research/sitegen/genevent"

// Prelude returns the events emitted before the components stage starts.
func Prelude() []genevent.Event {
	var out []genevent.Event
	for _, st := range []genevent.Stage{
		genevent.StageConfigAssembly,
		genevent.StageDesignSystem,
		genevent.StageBlueprint,
	} {
		out = append(out, genevent.StageStart{Stage: st}, genevent.StageComplete{Stage: st})
	}
	return out
}

// Component returns the start, chunks and complete events for one file.
func Component(name string, f genevent.File, done, total int, chunks ...string) []genevent.Event {
	out := []genevent.Event{genevent.ComponentStart{ComponentName: name}}
	for _, c := range chunks {
		out = append(out, genevent.ComponentChunk{ComponentName: name, Chunk: c})
	}
	return append(out, genevent.ComponentComplete{
		ComponentName:  name,
		File:           f,
		CompletedFiles: done,
		TotalFiles:     total,
	})
}

// Success returns a complete successful run producing files, one component per file
// named after the file's base name without extension.
func Success(files ...genevent.File) []genevent.Event {
	out := Prelude()
	out = append(out, genevent.StageStart{Stage: genevent.StageComponents, TotalFiles: genevent.IntPtr(len(files))})
	for i, f := range files {
		out = append(out, Component(Name(f.Path), f, i+1, len(files), f.Content)...)
	}
	out = append(out,
		genevent.StageComplete{Stage: genevent.StageComponents},
		genevent.StageStart{Stage: genevent.StageAssembly},
		genevent.StageComplete{Stage: genevent.StageAssembly},
		genevent.GenerationComplete{TotalFiles: len(files)},
	)
	return out
}

// FailAfter returns a run that completes the first n files and then fails in the
// components stage.
func FailAfter(n int, msg string, files ...genevent.File) []genevent.Event {
	out := Prelude()
	out = append(out, genevent.StageStart{Stage: genevent.StageComponents, TotalFiles: genevent.IntPtr(len(files))})
	for i, f := range files[:n] {
		out = append(out, Component(Name(f.Path), f, i+1, len(files))...)
	}
	return append(out, genevent.Error{Stage: genevent.StageComponents, Message: msg})
}

// Name derives a component name from a file path.
func Name(path string) string {
	base := path
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i > 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}

// Feed sends events on a fresh buffered channel and closes it.
func Feed(events []genevent.Event) <-chan genevent.Event {
	ch := make(chan genevent.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

// Drain collects every event from ch until it closes.
func Drain(ch <-chan genevent.Event) []genevent.Event {
	var out []genevent.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}
