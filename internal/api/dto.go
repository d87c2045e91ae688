package api

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/bake"
	"github.com/starford/sway/internal/preset"
	"github.com/starford/sway/internal/swayservice"
)

// Vec is a 2D value on the wire.
type Vec struct {
	X float64 `json:"x" example:"12.5"`
	Y float64 `json:"y" example:"-3"`
}

func vecOf(v r2.Vec) Vec { return Vec{X: v.X, Y: v.Y} }

// ApplyRequest is the request body of POST /apply.
type ApplyRequest struct {
	Layer       string         `json:"layer" example:"Hair" validate:"required"`
	Pins        []string       `json:"pins,omitempty" example:"Pin 1,Pin 2"`
	Preset      string         `json:"preset,omitempty" example:"hair"`
	Params      map[string]any `json:"params,omitempty"`
	Order       []string       `json:"order,omitempty"`
	Root        string         `json:"root,omitempty" example:"topmost" enums:"topmost,first-selected"`
	ControlName string         `json:"control_name,omitempty" example:"Sway_Control"`
}

// SelectionRequest is the request body of POST /remove and POST /bake.
type SelectionRequest struct {
	Layer string   `json:"layer" example:"Hair" validate:"required"`
	Pins  []string `json:"pins,omitempty"`
}

func (r SelectionRequest) selection() swayservice.Selection {
	return swayservice.Selection{Layer: r.Layer, Pins: r.Pins}
}

// CommandResponse wraps the outcome of apply, remove and bake.
type CommandResponse struct {
	Message string `json:"message" example:"Applied to 3 pins" validate:"required"`
	Result  any    `json:"result" validate:"required"`
}

// PresetListResponse wraps the preset table.
type PresetListResponse struct {
	Presets []preset.Preset `json:"presets" validate:"required"`
}

// PinDTO is one pin of a layer with its live binding.
type PinDTO struct {
	Name       string `json:"name" example:"Pin 1" validate:"required"`
	Position   Vec    `json:"position" validate:"required"`
	Selected   bool   `json:"selected"`
	Control    string `json:"control,omitempty" example:"Sway_Control"`
	ChainIndex *int   `json:"chain_index,omitempty"`
}

// PinListResponse wraps the pins of a layer.
type PinListResponse struct {
	Layer string   `json:"layer" validate:"required"`
	Pins  []PinDTO `json:"pins" validate:"required"`
}

// EvaluateResponse is one evaluated pin value.
type EvaluateResponse struct {
	Layer string  `json:"layer" validate:"required"`
	Pin   string  `json:"pin" validate:"required"`
	T     float64 `json:"t"`
	Value Vec     `json:"value" validate:"required"`
}

// TimelineResponse is the document timeline.
type TimelineResponse = bake.Timeline

// SceneResponse reports an imported scene.
type SceneResponse struct {
	Layers []string `json:"layers" validate:"required"`
}
