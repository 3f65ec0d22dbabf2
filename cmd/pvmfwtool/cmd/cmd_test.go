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
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/protectedvm/pvmfw/abi"
	"github.com/protectedvm/pvmfw/config"
	"github.com/protectedvm/pvmfw/console"
	"github.com/protectedvm/pvmfw/testing/fakeavb"
	"github.com/protectedvm/pvmfw/testing/match"
)

type testIO struct {
	files map[string][]byte
}

func (t *testIO) ReadFile(path string) ([]byte, error) {
	b, ok := t.files[path]
	if !ok {
		return nil, fmt.Errorf("file %q not found", path)
	}
	return b, nil
}

// run executes the CLI against in-memory files and returns its output.
func run(t *testing.T, files map[string][]byte, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithLogs(t, files, args...)
	return out, err
}

// runWithLogs is run with the log sink's writes returned separately, so tests
// can tell output routed through the sink apart from command output.
func runWithLogs(t *testing.T, files map[string][]byte, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	sink := console.New(logs)
	t.Cleanup(sink.Close)
	ctx := NewBackendContext(context.Background(), &Backend{
		IO:     &testIO{files: files},
		Out:    out,
		Sink:   sink,
		Output: &Options{},
	})
	root := MakeRoot(ctx)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	err := root.Execute()
	return out.String(), logs.String(), err
}

// imageRecord encodes a hash record whose digest matches image's content.
func imageRecord(t *testing.T, partition string, image []byte) []byte {
	t.Helper()
	d := &abi.HashDescriptor{
		ImageSize:     uint64(len(image)),
		PartitionName: partition,
		Digest:        sha256.Sum256(image),
	}
	b, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes() = %v, want nil", err)
	}
	return b
}

func TestInspectCleanBlob(t *testing.T) {
	got, err := run(t, map[string][]byte{"vbmeta.img": fakeavb.CleanExample(t)},
		"inspect", "vbmeta.img")
	if err != nil {
		t.Fatalf("inspect = %v, want nil", err)
	}
	for _, want := range []string{"boot: digest=", "initrd_normal: digest=", "3 hash descriptors"} {
		if !strings.Contains(got, want) {
			t.Errorf("inspect output %q missing %q", got, want)
		}
	}
}

func TestInspectRejectsBadMetadata(t *testing.T) {
	blob := fakeavb.Blob(t,
		fakeavb.HashRecord(t, "boot", 0x1000, 0),
		fakeavb.HashRecord(t, "boot", 0x1000, 0),
	)
	_, err := run(t, map[string][]byte{"vbmeta.img": blob}, "inspect", "vbmeta.img")
	if !match.Error(err, "duplicate hash descriptor") {
		t.Errorf("inspect = %v, want duplicate rejection", err)
	}
}

func TestInspectMissingFile(t *testing.T) {
	_, err := run(t, nil, "inspect", "vbmeta.img")
	if !match.Error(err, "failed to read metadata blob") {
		t.Errorf("inspect = %v, want read error", err)
	}
}

func TestVerifySuccess(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB}, 4096)
	files := map[string][]byte{
		"vbmeta.img": fakeavb.Blob(t, imageRecord(t, "boot", image)),
		"kernel.img": image,
	}
	got, err := run(t, files, "verify", "vbmeta.img", "--partition", "boot", "--image", "kernel.img")
	if err != nil {
		t.Fatalf("verify = %v, want nil", err)
	}
	if !strings.Contains(got, "boot: OK") {
		t.Errorf("verify output %q missing success line", got)
	}
}

func TestVerifyDigestMismatch(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB}, 4096)
	tampered := bytes.Repeat([]byte{0xAC}, 4096)
	files := map[string][]byte{
		"vbmeta.img": fakeavb.Blob(t, imageRecord(t, "boot", image)),
		"kernel.img": tampered,
	}
	_, err := run(t, files, "verify", "vbmeta.img", "--partition", "boot", "--image", "kernel.img")
	if !match.Error(err, "image digest mismatch") {
		t.Errorf("verify = %v, want digest mismatch", err)
	}
}

func TestVerifyFlagValidation(t *testing.T) {
	_, err := run(t, map[string][]byte{"vbmeta.img": fakeavb.CleanExample(t)},
		"verify", "vbmeta.img")
	for _, want := range []string{"--partition must not be empty", "--image must not be empty"} {
		if !match.Error(err, want) {
			t.Errorf("verify without flags = %v, want %q", err, want)
		}
	}
}

func TestVerifyRequireAll(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB}, 64)
	files := map[string][]byte{
		"vbmeta.img": fakeavb.Blob(t, imageRecord(t, "boot", image)),
		"kernel.img": image,
	}
	_, err := run(t, files, "verify", "vbmeta.img",
		"--partition", "boot", "--image", "kernel.img", "--require_all")
	for _, want := range []string{"initrd_normal", "initrd_debug"} {
		if !match.Error(err, want) {
			t.Errorf("verify --require_all = %v, want missing %q reported", err, want)
		}
	}
}

func configImage(t *testing.T) []byte {
	t.Helper()
	appendBlock := func(image []byte, guid string, content []byte) []byte {
		entry := config.Entry{GUID: uuid.MustParse(guid), Size: uint16(config.SizeofEntry + len(content))}
		buf := make([]byte, config.SizeofEntry)
		if err := entry.Put(buf); err != nil {
			t.Fatalf("Put() = %v, want nil", err)
		}
		return append(append(image, content...), buf...)
	}
	image := []byte("firmware body")
	prefix := len(image)
	image = appendBlock(image, config.VBMetaBlobGUID, []byte("metadata"))
	footer := config.Entry{GUID: uuid.MustParse(config.FooterGUID), Size: uint16(len(image) - prefix + config.SizeofEntry)}
	buf := make([]byte, config.SizeofEntry)
	if err := footer.Put(buf); err != nil {
		t.Fatalf("Put() = %v, want nil", err)
	}
	return append(image, buf...)
}

func TestConfigListsPayloads(t *testing.T) {
	got, err := run(t, map[string][]byte{"pvmfw.bin": configImage(t)}, "config", "pvmfw.bin")
	if err != nil {
		t.Fatalf("config = %v, want nil", err)
	}
	for _, want := range []string{"vbmeta: 8 bytes", "debug policy: absent", "dice handover: absent"} {
		if !strings.Contains(got, want) {
			t.Errorf("config output %q missing %q", got, want)
		}
	}
}

func TestQuietSuppressesOutput(t *testing.T) {
	got, err := run(t, map[string][]byte{"vbmeta.img": fakeavb.CleanExample(t)},
		"inspect", "--quiet", "vbmeta.img")
	if err != nil {
		t.Fatalf("inspect --quiet = %v, want nil", err)
	}
	if got != "" {
		t.Errorf("inspect --quiet wrote %q, want no output", got)
	}
}

func TestQuietVerboseConflict(t *testing.T) {
	_, err := run(t, map[string][]byte{"vbmeta.img": fakeavb.CleanExample(t)},
		"inspect", "--quiet", "--verbose", "vbmeta.img")
	if !match.Error(err, "cannot specify both --quiet and --verbose") {
		t.Errorf("inspect --quiet --verbose = %v, want conflict rejection", err)
	}
}

func TestVerboseWritesSteps(t *testing.T) {
	got, err := run(t, map[string][]byte{"vbmeta.img": fakeavb.CleanExample(t)},
		"inspect", "--verbose", "vbmeta.img")
	if err != nil {
		t.Fatalf("inspect --verbose = %v, want nil", err)
	}
	if !strings.Contains(got, "metadata blob from \"vbmeta.img\"") {
		t.Errorf("inspect --verbose output %q missing step detail", got)
	}
}

func TestVerboseUseLogsRoutesToSink(t *testing.T) {
	got, logs, err := runWithLogs(t, map[string][]byte{"vbmeta.img": fakeavb.CleanExample(t)},
		"inspect", "--verbose", "--use_logs", "vbmeta.img")
	if err != nil {
		t.Fatalf("inspect --verbose --use_logs = %v, want nil", err)
	}
	if strings.Contains(got, "metadata blob from") {
		t.Errorf("step detail leaked into command output %q", got)
	}
	if !strings.Contains(logs, "metadata blob from \"vbmeta.img\"") {
		t.Errorf("log sink output %q missing step detail", logs)
	}
	if !strings.Contains(got, "3 hash descriptors") {
		t.Errorf("command output %q missing result line", got)
	}
}
