// Copyright 2025 the ProtectedVM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd provides the pvmfwtool CLI command abstractions.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/protectedvm/pvmfw/console"
	"github.com/spf13/cobra"
)

// RootCmd is the canonical root cobra command for the pvmfwtool CLI.
var RootCmd *cobra.Command

var errNoBackend = errors.New("no backend in context")

// Backend provides implementations for file access and output destinations.
type Backend struct {
	IO     IO
	Out    io.Writer
	Sink   *console.Sink
	Output *Options
}

type backendKeyType struct{}

var backendKey backendKeyType

// NewBackendContext returns ctx extended with the given backend.
func NewBackendContext(ctx context.Context, b *Backend) context.Context {
	return context.WithValue(ctx, backendKey, b)
}

func backendFrom(ctx context.Context) (*Backend, error) {
	b, ok := ctx.Value(backendKey).(*Backend)
	if !ok {
		return nil, errNoBackend
	}
	return b, nil
}

// MakeRoot returns a new root cobra command for the pvmfwtool CLI.
func MakeRoot(ctx0 context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pvmfwtool",
		Long:          `Command line tool for inspecting protected VM boot artifacts.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := backendFrom(ctx0)
			if err != nil {
				return err
			}
			return backend.Output.Validate(cmd)
		},
	}
	if backend, err := backendFrom(ctx0); err == nil {
		backend.Output.AddFlags(cmd)
	}
	cmd.AddCommand(makeInspect(ctx0))
	cmd.AddCommand(makeVerify(ctx0))
	cmd.AddCommand(makeConfig(ctx0))
	cmd.SetContext(ctx0)
	return cmd
}

func init() {
	RootCmd = MakeRoot(NewBackendContext(context.Background(), &Backend{
		IO:     OSIO{},
		Out:    os.Stdout,
		Sink:   console.Default(),
		Output: &Options{},
	}))
}
