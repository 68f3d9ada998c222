/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package registry

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"filippo.io/age"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
)

const (
	archiveFile          = "definitions.tar"
	encryptedArchiveFile = "definitions.tar.age"
)

// Push packages the definitions directory as a single layer artifact and
// uploads it to the registry. The archive is encrypted when recipients are given.
// It returns the artifact metadata including the published digest.
func Push(ctx context.Context, url string, dir string, version string, recipients []age.Recipient) (*Metadata, error) {
	ref, err := name.ParseReference(url)
	if err != nil {
		return nil, fmt.Errorf("parsing reference failed: %w", err)
	}

	data, count, err := archiveDir(dir)
	if err != nil {
		return nil, fmt.Errorf("packaging %s failed: %w", dir, err)
	}

	meta := &Metadata{
		Version:     version,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(data)),
		Created:     time.Now().UTC().Format(time.RFC3339),
		Definitions: strconv.Itoa(count),
	}

	tmpDir, err := os.MkdirTemp("", "oci")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	tarFile := filepath.Join(tmpDir, "layer.tar")
	dataFile := archiveFile

	if len(recipients) > 0 {
		meta.Encrypted = AgeEncryptionVersion
		encData, err := encrypt(data, recipients)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt data with age: %w", err)
		}

		dataFile = encryptedArchiveFile
		data = encData
	}

	if err := tarContent(tarFile, dataFile, data); err != nil {
		return nil, err
	}

	img, err := crane.Append(empty.Image, tarFile)
	if err != nil {
		return nil, fmt.Errorf("appending content failed: %w", err)
	}

	img = mutate.Annotations(img, meta.ToAnnotations()).(gcrv1.Image)

	if err := crane.Push(img, url, craneOptions(ctx)...); err != nil {
		return nil, fmt.Errorf("pushing image failed: %w", err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("parsing digest failed: %w", err)
	}
	meta.Digest = ref.Context().Digest(digest.String()).String()

	return meta, nil
}
