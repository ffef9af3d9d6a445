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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
)

func TestResources(t *testing.T) {
	t.Run("prints a table of the collection", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"kind": "PodList",
				"items": [
					{"metadata": {"name": "pod-a", "namespace": "default", "uid": "uid-1"}},
					{"metadata": {"name": "pod-b", "namespace": "default", "uid": "uid-2"}}
				]
			}`)
		}))
		defer server.Close()

		output, err := executeCommand(fmt.Sprintf("resources --server %s /api/v1/pods", server.URL))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(output).To(ContainSubstring("pod-a"))
		g.Expect(output).To(ContainSubstring("pod-b"))
		g.Expect(output).To(ContainSubstring("uid-2"))
		g.Expect(output).To(ContainSubstring("Pod"))
	})

	t.Run("fails when the response is not a collection", func(t *testing.T) {
		g := NewWithT(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"kind":"Pod","metadata":{"name":"solo"}}`)
		}))
		defer server.Close()

		_, err := executeCommand(fmt.Sprintf("resources --server %s /api/v1/pods/solo", server.URL))
		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("not a collection"))
	})
}
