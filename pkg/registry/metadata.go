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
	"fmt"
)

const (
	VersionAnnotation     = "pipectl.dev/version"
	ChecksumAnnotation    = "pipectl.dev/checksum"
	CreatedAnnotation     = "pipectl.dev/created"
	EncryptedAnnotation   = "pipectl.dev/encrypted"
	DefinitionsAnnotation = "pipectl.dev/definitions"
	AgeEncryptionVersion  = "age-encryption.org/v1"
)

// Metadata is stored as manifest annotations on the definitions artifact.
type Metadata struct {
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
	Created  string `json:"created"`
	// Definitions is the number of manifest files in the archive.
	Definitions string `json:"definitions,omitempty"`
	Encrypted   string `json:"encrypted,omitempty"`
	Digest      string `json:"digest,omitempty"`
}

func (m *Metadata) ToAnnotations() map[string]string {
	annotations := map[string]string{
		VersionAnnotation:  m.Version,
		ChecksumAnnotation: m.Checksum,
		CreatedAnnotation:  m.Created,
	}

	if m.Definitions != "" {
		annotations[DefinitionsAnnotation] = m.Definitions
	}
	if m.Encrypted != "" {
		annotations[EncryptedAnnotation] = m.Encrypted
	}
	return annotations
}

func GetMetadata(annotations map[string]string) (*Metadata, error) {
	m := Metadata{}
	for _, a := range []struct {
		key   string
		value *string
	}{
		{VersionAnnotation, &m.Version},
		{ChecksumAnnotation, &m.Checksum},
		{CreatedAnnotation, &m.Created},
	} {
		v, ok := annotations[a.key]
		if !ok {
			return nil, fmt.Errorf("'%s' annotation not found", a.key)
		}
		*a.value = v
	}

	m.Definitions = annotations[DefinitionsAnnotation]
	m.Encrypted = annotations[EncryptedAnnotation]

	return &m, nil
}
