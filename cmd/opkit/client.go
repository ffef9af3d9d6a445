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

	"github.com/go-logr/logr"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/stefanprodan/opkit/pkg/client"
)

// newAPIClient builds the transport client from the root flags.
// An explicit --server wins; otherwise the server URL, credentials
// and TLS settings come from the kubeconfig.
func newAPIClient(logger logr.Logger) (*client.Client, error) {
	if rootArgs.server != "" {
		return client.NewClient(client.Config{
			Server: rootArgs.server.String(),
			Logger: logger,
		})
	}

	restConfig, err := newRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("kubeconfig load failed: %w", err)
	}

	// rest.HTTPClientFor returns a client whose transport already
	// injects the kubeconfig credentials and TLS settings.
	httpClient, err := rest.HTTPClientFor(restConfig)
	if err != nil {
		return nil, fmt.Errorf("client init failed: %w", err)
	}

	return client.NewClient(client.Config{
		Server:     restConfig.Host,
		HTTPClient: httpClient,
		Logger:     logger,
	})
}

func newRESTConfig() (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if rootArgs.kubeconfig != "" {
		loadingRules.ExplicitPath = rootArgs.kubeconfig
	}

	overrides := &clientcmd.ConfigOverrides{
		CurrentContext: rootArgs.kubecontext,
	}

	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}
