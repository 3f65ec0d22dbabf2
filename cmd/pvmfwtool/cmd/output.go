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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Options controls the meaning of output modalities.
type Options struct {
	Quiet   bool
	Verbose bool
	UseLogs bool
}

// AddFlags adds flags specific to the Options object to the given command.
func (opts *Options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&opts.Quiet, "quiet", false,
		"Print nothing if command is successful")
	cmd.PersistentFlags().BoolVar(&opts.Verbose, "verbose", false,
		"Print additional info about each step")
	cmd.PersistentFlags().BoolVar(&opts.UseLogs, "use_logs", false,
		"Print verbose messages to log instead of stdout")
}

// Validate returns an error if the Options values are incompatible.
func (opts *Options) Validate(cmd *cobra.Command) error {
	if opts.Quiet && opts.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}
	cmd.SilenceUsage = true
	return nil
}

// Resultf writes primary command output, dropped under --quiet.
func (b *Backend) Resultf(format string, args ...any) {
	if b.Output.Quiet {
		return
	}
	fmt.Fprintf(b.Out, format, args...)
}

// Infof writes step-by-step detail. Only emitted under --verbose; routed
// through the log sink instead of the output writer when --use_logs is set.
func (b *Backend) Infof(format string, args ...any) {
	if !b.Output.Verbose {
		return
	}
	if b.Output.UseLogs {
		b.Sink.Infof(format, args...)
		return
	}
	fmt.Fprintf(b.Out, format+"\n", args...)
}
