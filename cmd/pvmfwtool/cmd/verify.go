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
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/protectedvm/pvmfw/avb"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type verifyCommand struct {
	partition  string
	image      string
	requireAll bool
}

func mustBeNonempty(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s must not be empty", name)
	}
	return nil
}

func (v *verifyCommand) validate() error {
	return multierr.Combine(
		mustBeNonempty("partition", v.partition),
		mustBeNonempty("image", v.image),
	)
}

func (v *verifyCommand) runE(cmd *cobra.Command, args []string) error {
	backend, err := backendFrom(cmd.Context())
	if err != nil {
		return err
	}
	if err := v.validate(); err != nil {
		return err
	}
	partition, err := avb.PartitionNameFromString(v.partition)
	if err != nil {
		return err
	}
	blob, err := backend.IO.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read metadata blob %q: %v", args[0], err)
	}
	ds, err := avb.BuildDescriptors(blob)
	if err != nil {
		return err
	}
	if v.requireAll {
		if err := ds.RequireAll(avb.KnownPartitions()...); err != nil {
			return err
		}
	}
	d, err := ds.FindHashDescriptor(partition)
	if err != nil {
		return err
	}

	image, err := backend.IO.ReadFile(v.image)
	if err != nil {
		return fmt.Errorf("failed to read image %q: %v", v.image, err)
	}
	if uint64(len(image)) < d.ImageSize {
		return fmt.Errorf("image %q is %d bytes, descriptor covers %d", v.image, len(image), d.ImageSize)
	}
	backend.Infof("hashing %d of %d bytes of %q", d.ImageSize, len(image), v.image)
	digest := sha256.Sum256(image[:d.ImageSize])
	if !bytes.Equal(digest[:], d.Digest[:]) {
		return fmt.Errorf("image digest mismatch for partition %q: got %x, want %x",
			partition, digest, d.Digest)
	}
	backend.Resultf("%s: OK\n", partition)
	return nil
}

func makeVerify(ctx0 context.Context) *cobra.Command {
	v := &verifyCommand{}
	cmd := &cobra.Command{
		Use:   "verify BLOB [options]",
		Short: "Check a boot image against its hash descriptor",
		Long: `Hashes the first image_size bytes of the given image with SHA-256 and
compares the result against the partition's descriptor in the metadata blob.
A mismatch, a missing descriptor, or rejected metadata is a hard failure.`,
		Args: cobra.ExactArgs(1),
		RunE: v.runE,
	}
	cmd.Flags().StringVar(&v.partition, "partition", "", "Name of the partition the image belongs to.")
	cmd.Flags().StringVar(&v.image, "image", "", "Path to the boot image to verify.")
	cmd.Flags().BoolVar(&v.requireAll, "require_all", false,
		"Fail if any known partition has no descriptor in the blob.")
	return cmd
}
