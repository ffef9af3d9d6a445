/*
Copyright 2025 Stefan Prodan

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
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestWatchConfig(t *testing.T) {
	t.Run("requires a path or a config file", func(t *testing.T) {
		g := NewWithT(t)
		_, err := executeCommand("watch --server http://example.internal")
		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("at least one stream path"))
	})

	t.Run("reads stream paths from the config file", func(t *testing.T) {
		g := NewWithT(t)
		configPath := filepath.Join(t.TempDir(), "watch.yaml")
		err := os.WriteFile(configPath, []byte(`
streams:
  - name: pods
    path: /api/v1/pods?watch=true
  - path: /apis/example.com/v1/widgets?watch=true
`), 0o644)
		g.Expect(err).ToNot(HaveOccurred())

		paths, err := readWatchConfig(configPath)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(paths).To(Equal([]string{
			"/api/v1/pods?watch=true",
			"/apis/example.com/v1/widgets?watch=true",
		}))
	})

	t.Run("rejects streams without a path", func(t *testing.T) {
		g := NewWithT(t)
		configPath := filepath.Join(t.TempDir(), "watch.yaml")
		err := os.WriteFile(configPath, []byte(`
streams:
  - name: nameless
`), 0o644)
		g.Expect(err).ToNot(HaveOccurred())

		_, err = readWatchConfig(configPath)
		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("has no path"))
	})
}
