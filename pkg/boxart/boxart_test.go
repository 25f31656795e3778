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

package boxart

import (
	"context"
	"testing"

	"github.com/aderumier/gamemanager-core/pkg/exectool"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	gotBinary string
	gotArgs   []string
	result    exectool.Result
	err       error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, opts exectool.Options) (exectool.Result, error) {
	f.gotBinary = binary
	f.gotArgs = opts.Args
	return f.result, f.err
}

func validRequest() Request {
	return Request{
		TitlescreenPath: "/in/title.png",
		GameplayPath:    "/in/gameplay.png",
		LogoPath:        "/in/logo.png",
		OutputPath:      "/out/box.png",
		Params:          DefaultParams,
	}
}

func TestGenerateInvokesExecutorWithComposedArgs(t *testing.T) {
	t.Parallel()
	fake := &fakeExecutor{}
	g := &Generator{Executor: fake, validate: validator.New()}

	err := g.Generate(context.Background(), "convert", validRequest())
	require.NoError(t, err)

	assert.Equal(t, "convert", fake.gotBinary)
	assert.Contains(t, fake.gotArgs, "/in/gameplay.png")
	assert.Contains(t, fake.gotArgs, "/in/logo.png")
	assert.Contains(t, fake.gotArgs, "/out/box.png")
	assert.Contains(t, fake.gotArgs, "-composite")
}

func TestGenerateOmitsBlurWhenDisabled(t *testing.T) {
	t.Parallel()
	fake := &fakeExecutor{}
	g := &Generator{Executor: fake, validate: validator.New()}

	req := validRequest()
	req.Params.UseBlurredBG = false

	require.NoError(t, g.Generate(context.Background(), "convert", req))
	assert.NotContains(t, fake.gotArgs, "-blur")
}

func TestGenerateOmitsBorderWhenZero(t *testing.T) {
	t.Parallel()
	fake := &fakeExecutor{}
	g := &Generator{Executor: fake, validate: validator.New()}

	req := validRequest()
	req.Params.BorderSize = 0

	require.NoError(t, g.Generate(context.Background(), "convert", req))
	assert.NotContains(t, fake.gotArgs, "-border")
}

func TestGenerateRejectsMissingFields(t *testing.T) {
	t.Parallel()
	fake := &fakeExecutor{}
	g := &Generator{Executor: fake, validate: validator.New()}

	req := validRequest()
	req.OutputPath = ""

	err := g.Generate(context.Background(), "convert", req)
	assert.Error(t, err)
}

func TestGenerateWrapsExecutorFailure(t *testing.T) {
	t.Parallel()
	fake := &fakeExecutor{
		result: exectool.Result{Stderr: "convert: bad image"},
		err:    assert.AnError,
	}
	g := &Generator{Executor: fake, validate: validator.New()}

	err := g.Generate(context.Background(), "convert", validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad image")
}
