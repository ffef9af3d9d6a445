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
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stefanprodan/opkit/pkg/client"
)

var getCmd = &cobra.Command{
	Use:   "get [PATH]",
	Short: "Fetches an API path and prints the response",
	Example: `  # Fetch a resource as formatted JSON
  opkit get /api/v1/namespaces/default/pods/my-pod

  # Fetch against an explicit server
  opkit get --server https://127.0.0.1:6443 /api/v1/nodes

  # Print the unparsed response body
  opkit get --raw /healthz
`,
	Args: cobra.ExactArgs(1),
	RunE: runGetCmd,
}

type getFlags struct {
	raw bool
}

var getArgs getFlags

func init() {
	getCmd.Flags().BoolVar(&getArgs.raw, "raw", false,
		"print the response body without parsing it as JSON.")

	rootCmd.AddCommand(getCmd)
}

func runGetCmd(cmd *cobra.Command, args []string) error {
	apiClient, err := newAPIClient(LoggerFrom(cmd.Context()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	path := args[0]

	if getArgs.raw {
		response, err := apiClient.Do(ctx, "GET", path, client.RequestOptions{})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(response.Body))
		return nil
	}

	result, err := apiClient.Get(ctx, path, client.RequestOptions{})
	if err != nil {
		return err
	}

	formatted, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}
