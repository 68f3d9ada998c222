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
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-containerregistry/pkg/crane"
)

// List returns the tags of the artifact repository.
func List(ctx context.Context, repoURL string) ([]string, error) {
	return crane.ListTags(repoURL, craneOptions(ctx)...)
}

// ResolveSemver returns the artifact reference of the newest tag
// matching the semver constraint. Tags that are not valid versions are ignored.
func ResolveSemver(ctx context.Context, repoURL string, constraint string) (string, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", fmt.Errorf("semver '%s' parse error: %w", constraint, err)
	}

	tags, err := List(ctx, repoURL)
	if err != nil {
		return "", fmt.Errorf("listing tags of %s failed: %w", repoURL, err)
	}

	var matchingVersions []*semver.Version
	for _, t := range tags {
		v, err := semver.NewVersion(t)
		if err != nil {
			continue
		}

		if !c.Check(v) {
			continue
		}

		matchingVersions = append(matchingVersions, v)
	}

	if len(matchingVersions) == 0 {
		return "", fmt.Errorf("no tag of %s matches '%s'", repoURL, constraint)
	}

	sort.Sort(sort.Reverse(semver.Collection(matchingVersions)))

	return fmt.Sprintf("%s:%s", repoURL, matchingVersions[0].Original()), nil
}
