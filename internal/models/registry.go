// Package models knows which segmentation models are supported, what input size
// and normalization each was trained with, and where their files live.
package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/matte"
)

// Registered model names.
const (
	Silueta      = "silueta"
	U2Net        = "u2net"
	U2NetP       = "u2netp"
	ISNetGeneral = "isnet-general-use"
)

// DefaultModel is used when no model is configured.
const DefaultModel = Silueta

// Preset describes a segmentation model. Mean and Std are per RGB channel on
// inputs scaled to [0,1]. Loading a model with another model's constants does
// not crash, it silently degrades the mask.
type Preset struct {
	Name        string
	Filename    string
	TargetSize  int
	Mean        [3]float32
	Std         [3]float32
	Description string
}

var registry = map[string]Preset{
	Silueta: {
		Name:        Silueta,
		Filename:    "silueta.onnx",
		TargetSize:  320,
		Mean:        matte.ImageNetMean,
		Std:         matte.ImageNetStd,
		Description: "Compact U2-Net variant for general foreground cutout",
	},
	U2Net: {
		Name:        U2Net,
		Filename:    "u2net.onnx",
		TargetSize:  320,
		Mean:        matte.ImageNetMean,
		Std:         matte.ImageNetStd,
		Description: "Full U2-Net salient object model",
	},
	U2NetP: {
		Name:        U2NetP,
		Filename:    "u2netp.onnx",
		TargetSize:  320,
		Mean:        matte.ImageNetMean,
		Std:         matte.ImageNetStd,
		Description: "Lightweight U2-Net",
	},
	ISNetGeneral: {
		Name:        ISNetGeneral,
		Filename:    "isnet-general-use.onnx",
		TargetSize:  1024,
		Mean:        [3]float32{0.5, 0.5, 0.5},
		Std:         [3]float32{1, 1, 1},
		Description: "IS-Net dichotomous segmentation, higher resolution",
	},
}

// Lookup returns the preset registered under name (case-insensitive).
func Lookup(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultModel
	}
	p, ok := registry[key]
	if !ok {
		return Preset{}, fmt.Errorf("unknown model %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists registered models in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every preset sorted by name.
func All() []Preset {
	out := make([]Preset, 0, len(registry))
	for _, n := range Names() {
		out = append(out, registry[n])
	}
	return out
}
