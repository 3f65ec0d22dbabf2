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

	"github.com/protectedvm/pvmfw/avb"
	"github.com/spf13/cobra"
)

func makeInspect(ctx0 context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect BLOB",
		Short: "Print the hash descriptors of a boot metadata blob",
		Long: `Builds the verified descriptor store from a metadata blob and prints one
line per known partition. Fails on the same metadata the firmware would
reject at boot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFrom(cmd.Context())
			if err != nil {
				return err
			}
			blob, err := backend.IO.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read metadata blob %q: %v", args[0], err)
			}
			backend.Infof("read %d byte metadata blob from %q", len(blob), args[0])
			ds, err := avb.BuildDescriptors(blob)
			if err != nil {
				return err
			}
			for _, p := range avb.KnownPartitions() {
				d, err := ds.FindHashDescriptor(p)
				if err != nil {
					backend.Resultf("%s: no hash descriptor\n", p)
					continue
				}
				backend.Resultf("%s: digest=%x image_size=%d flags=%#x\n",
					p, d.Digest, d.ImageSize, d.Flags)
			}
			backend.Resultf("%d hash descriptors\n", ds.NumHashDescriptor())
			return nil
		},
	}
}
