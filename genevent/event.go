// ABOUTME: GenerationEvent tagged union describing pipeline progress, one struct per variant.
// ABOUTME: JSON wire form is a flat object with a "type" discriminator and camelCase fields.
package genevent

import (
	"encoding/json"
	"fmt"
)

// Type is the wire discriminator for an Event.
type Type string

const (
	TypeStageStart         Type = "stage-start"
	TypeStageComplete      Type = "stage-complete"
	TypeComponentStart     Type = "component-start"
	TypeComponentChunk     Type = "component-chunk"
	TypeComponentComplete  Type = "component-complete"
	TypeGenerationComplete Type = "generation-complete"
	TypeError              Type = "error"
)

// Event is one message of a generation run. The set of variants is closed.
type Event interface {
	EventType() Type
	eventSeal()
}

// File is a generated file as carried by a component-complete event.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// StageStart marks the beginning of a stage. TotalFiles is set only for the
// components stage.
type StageStart struct {
	Stage      Stage `json:"stage"`
	TotalFiles *int  `json:"totalFiles,omitempty"`
}

func (StageStart) EventType() Type { return TypeStageStart }
func (StageStart) eventSeal()      {}

// StageComplete marks the end of a stage.
type StageComplete struct {
	Stage Stage `json:"stage"`
}

func (StageComplete) EventType() Type { return TypeStageComplete }
func (StageComplete) eventSeal()      {}

// ComponentStart precedes all chunks of one output file.
type ComponentStart struct {
	ComponentName string `json:"componentName"`
}

func (ComponentStart) EventType() Type { return TypeComponentStart }
func (ComponentStart) eventSeal()      {}

// ComponentChunk carries incremental partial output for a component.
type ComponentChunk struct {
	ComponentName string `json:"componentName"`
	Chunk         string `json:"chunk"`
}

func (ComponentChunk) EventType() Type { return TypeComponentChunk }
func (ComponentChunk) eventSeal()      {}

// ComponentComplete carries the finished file for a component.
type ComponentComplete struct {
	ComponentName  string `json:"componentName"`
	File           File   `json:"file"`
	CompletedFiles int    `json:"completedFiles"`
	TotalFiles     int    `json:"totalFiles"`
}

func (ComponentComplete) EventType() Type { return TypeComponentComplete }
func (ComponentComplete) eventSeal()      {}

// GenerationComplete is the successful terminal event.
type GenerationComplete struct {
	TotalFiles int `json:"totalFiles"`
}

func (GenerationComplete) EventType() Type { return TypeGenerationComplete }
func (GenerationComplete) eventSeal()      {}

// Error is the failing terminal event. Stage is where the failure happened.
type Error struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"error"`
}

func (Error) EventType() Type { return TypeError }
func (Error) eventSeal()      {}

// IsTerminal reports whether no further events may follow e.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case GenerationComplete, Error:
		return true
	}
	return false
}

// Marshal serializes an Event with its "type" discriminator inlined.
func Marshal(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot marshal nil event")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.EventType(), err)
	}
	tag, _ := json.Marshal(string(e.EventType()))

	// Splice "type" in front of the struct's own fields.
	out := make([]byte, 0, len(body)+len(tag)+9)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Unmarshal deserializes an Event from its tagged JSON form.
func Unmarshal(data []byte) (Event, error) {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal event type: %w", err)
	}

	switch envelope.Type {
	case TypeStageStart:
		return decode[StageStart](data)
	case TypeStageComplete:
		return decode[StageComplete](data)
	case TypeComponentStart:
		return decode[ComponentStart](data)
	case TypeComponentChunk:
		return decode[ComponentChunk](data)
	case TypeComponentComplete:
		return decode[ComponentComplete](data)
	case TypeGenerationComplete:
		return decode[GenerationComplete](data)
	case TypeError:
		return decode[Error](data)
	default:
		return nil, fmt.Errorf("unknown event type: %q", envelope.Type)
	}
}

func decode[T Event](data []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", e.EventType(), err)
	}
	return e, nil
}

// IntPtr is a convenience for StageStart.TotalFiles.
func IntPtr(n int) *int {
	return &n
}
