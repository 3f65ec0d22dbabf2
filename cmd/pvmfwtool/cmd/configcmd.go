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
	"context"
	"fmt"

	"github.com/protectedvm/pvmfw/config"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func makeConfig(ctx0 context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "config IMAGE",
		Short: "List the payloads appended to a firmware image",
		Long: `Walks the GUID-entry table at the end of a firmware image and prints the
payloads it locates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd.Context())
			if err != nil {
				return err
			}
			image, err := backend.IO.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read firmware image %q: %v", args[0], err)
			}
			backend.Infof("read %d byte firmware image from %q", len(image), args[0])
			entries, err := config.ParseEntries(image)
			if err != nil {
				return err
			}
			printBlock := func(name string, block []byte) {
				if block == nil {
					backend.Resultf("%s: absent\n", name)
					return
				}
				backend.Resultf("%s: %d bytes\n", name, len(block))
			}
			printBlock("vbmeta", entries.VBMeta)
			printBlock("debug policy", entries.DebugPolicy)
			printBlock("dice handover", entries.DiceHandover)

			guids := make([]string, 0, len(entries.Unknown))
			for guid := range entries.Unknown {
				guids = append(guids, guid)
			}
			slices.Sort(guids)
			for _, guid := range guids {
				backend.Resultf("unknown %s: %d bytes\n", guid, len(entries.Unknown[guid]))
			}
			return nil
		},
	}
}
