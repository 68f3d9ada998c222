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

	"filippo.io/age"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
)

// Pull downloads the definitions artifact, verifies its checksum and
// extracts the manifests into dir. Encrypted artifacts require identities.
func Pull(ctx context.Context, url string, dir string, identities []age.Identity) (*Metadata, []string, error) {
	ref, err := name.ParseReference(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing reference failed: %w", err)
	}

	img, err := crane.Pull(url, craneOptions(ctx)...)
	if err != nil {
		return nil, nil, err
	}

	manifest, err := img.Manifest()
	if err != nil {
		return nil, nil, err
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing digest failed: %w", err)
	}

	meta, err := GetMetadata(manifest.Annotations)
	if err != nil {
		return nil, nil, err
	}
	meta.Digest = ref.Context().Digest(digest.String()).String()

	if meta.Encrypted != "" && len(identities) < 1 {
		return meta, nil, fmt.Errorf("encrypted artifact, you need to supply a private key for decryption")
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, nil, err
	}

	if len(layers) < 1 {
		return nil, nil, fmt.Errorf("no layers found in image")
	}

	blob, err := layers[0].Uncompressed()
	if err != nil {
		return nil, nil, err
	}
	defer blob.Close()

	content, err := untarContent(blob)
	if err != nil {
		return nil, nil, err
	}

	if meta.Encrypted == AgeEncryptionVersion {
		content, err = decrypt(content, identities)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decrypt content: %w", err)
		}
	}

	if meta.Checksum != fmt.Sprintf("%x", sha256.Sum256(content)) {
		return nil, nil, fmt.Errorf("checksum mismatch")
	}

	files, err := extractArchive(content, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting to %s failed: %w", dir, err)
	}

	return meta, files, nil
}
