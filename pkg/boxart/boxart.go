// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

// Package boxart implements 2D box-art generation (spec §12.1,
// supplemented feature): compositing a logo over a gameplay screenshot
// into a single cover image via ImageMagick's convert binary, run through
// pkg/exectool so tests can substitute a fake executor.
package boxart

import (
	"context"
	"fmt"

	"github.com/aderumier/gamemanager-core/pkg/exectool"
	"github.com/go-playground/validator/v10"
)

// Params mirrors the teacher's original Python BoxGenerator parameter
// set (original_source/box_generator.py), narrowed to the subset this
// module exposes for configuration.
type Params struct {
	Width           int    `validate:"required,gt=0"`
	Height          int    `validate:"required,gt=0"`
	LogoPosition    string `validate:"required"`
	GradientHeight  int    `validate:"gte=0"`
	BorderSize      int    `validate:"gte=0"`
	BorderColor     string `validate:"required"`
	UseBlurredBG    bool
	BlurIntensity   int    `validate:"gte=0"`
	BackgroundColor string `validate:"required"`
}

// DefaultParams matches the Python generator's own defaults.
var DefaultParams = Params{
	Width:           600,
	Height:          800,
	LogoPosition:    "north",
	GradientHeight:  400,
	BorderSize:      2,
	BorderColor:     "#333333",
	UseBlurredBG:    true,
	BlurIntensity:   30,
	BackgroundColor: "black",
}

// Request is one 2D box-art generation job (the payload a
// "2d_box_generation" Task submission carries).
type Request struct {
	TitlescreenPath string `validate:"required"`
	GameplayPath    string `validate:"required"`
	LogoPath        string `validate:"required"`
	OutputPath      string `validate:"required"`
	Params          Params `validate:"required"`
}

// Generator drives ImageMagick's convert binary to produce a single
// composited box image from a Request.
type Generator struct {
	Executor exectool.Executor
	ToolDir  string
	validate *validator.Validate
}

// NewGenerator builds a Generator using the real exectool.RealExecutor.
func NewGenerator(toolDir string) *Generator {
	return &Generator{Executor: exectool.RealExecutor{}, ToolDir: toolDir, validate: validator.New()}
}

// Generate validates req and shells out to convert, composing the
// gameplay screenshot and logo into OutputPath: the gameplay capture is
// cropped to the requested size (and blurred when UseBlurredBG is set) to
// form the background, the logo is composited at LogoPosition, and the
// border is added around the result. TitlescreenPath is validated but not
// used, and GradientHeight and BackgroundColor do not affect the output.
func (g *Generator) Generate(ctx context.Context, binary string, req Request) error {
	if err := g.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid box-art request: %w", err)
	}

	args := g.buildArgs(req)
	res, err := g.Executor.Run(ctx, binary, exectool.Options{Kind: exectool.KindComposite, Args: args})
	if err != nil {
		return fmt.Errorf("box-art generation failed: %w (stderr: %s)", err, res.Stderr)
	}
	return nil
}

// buildArgs constructs the convert invocation for compositing the logo
// over the gameplay screenshot at the configured size and border.
func (g *Generator) buildArgs(req Request) []string {
	p := req.Params
	args := []string{
		req.GameplayPath,
		"-resize", fmt.Sprintf("%dx%d^", p.Width, p.Height),
		"-gravity", "center",
		"-extent", fmt.Sprintf("%dx%d", p.Width, p.Height),
	}

	if p.UseBlurredBG {
		args = append(args, "-blur", fmt.Sprintf("0x%d", p.BlurIntensity))
	}

	args = append(args,
		req.LogoPath,
		"-gravity", p.LogoPosition,
		"-geometry", fmt.Sprintf("%d%%x%%", 80),
		"-composite",
	)

	if p.BorderSize > 0 {
		args = append(args, "-bordercolor", p.BorderColor, "-border", fmt.Sprintf("%d", p.BorderSize))
	}

	args = append(args, req.OutputPath)
	return args
}
