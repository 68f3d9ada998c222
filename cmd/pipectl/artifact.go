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

package main

import (
	"context"
	"fmt"

	"github.com/tekton-cd/pipectl/pkg/registry"
)

type artifactSource struct {
	url           string
	semverExp     string
	ageIdentities string
}

// fetch pulls the artifact into dir. With a semver constraint the URL is a
// repository and the newest matching tag is pulled.
func (a artifactSource) fetch(ctx context.Context, dir string) (*registry.Metadata, error) {
	var url string
	var err error
	if a.semverExp != "" {
		repo, err := registry.ParseRepositoryURL(a.url)
		if err != nil {
			return nil, err
		}
		url, err = registry.ResolveSemver(ctx, repo, a.semverExp)
		if err != nil {
			return nil, err
		}
	} else {
		url, err = registry.ParseURL(a.url)
		if err != nil {
			return nil, err
		}
	}

	identities, err := registry.ParseAgeIdentities(a.ageIdentities)
	if err != nil {
		return nil, fmt.Errorf("reading age identities failed: %w", err)
	}

	logger.Actionf("pulling %s", url)
	meta, files, err := registry.Pull(ctx, url, dir, identities)
	if err != nil {
		return nil, fmt.Errorf("pulling %s failed: %w", url, err)
	}
	logger.Successf("pulled %s (%d files)", meta.Digest, len(files))

	return meta, nil
}
