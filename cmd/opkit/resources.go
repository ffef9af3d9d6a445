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
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/opkit/pkg/client"
)

var resourcesCmd = &cobra.Command{
	Use:   "resources [PATH]",
	Short: "Prints a table of the resources in a collection",
	Example: `  # List the pods in a namespace
  opkit resources /api/v1/namespaces/default/pods

  # List the custom resources of a kind
  opkit resources /apis/example.com/v1/widgets
`,
	Args: cobra.ExactArgs(1),
	RunE: runResourcesCmd,
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
}

func runResourcesCmd(cmd *cobra.Command, args []string) error {
	apiClient, err := newAPIClient(LoggerFrom(cmd.Context()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	result, err := apiClient.Get(ctx, args[0], client.RequestOptions{})
	if err != nil {
		return err
	}

	collection, ok := result.(map[string]any)
	if !ok {
		return fmt.Errorf("response of %s is not a collection", args[0])
	}
	items, ok := collection["items"].([]any)
	if !ok {
		return fmt.Errorf("response of %s is not a collection", args[0])
	}

	kind, _ := collection["kind"].(string)

	var rows [][]string
	for _, item := range items {
		object, ok := item.(map[string]any)
		if !ok {
			continue
		}
		u := &unstructured.Unstructured{Object: object}
		itemKind := u.GetKind()
		if itemKind == "" {
			// List items commonly omit their kind; derive it from
			// the collection kind, e.g. "PodList" -> "Pod".
			itemKind = collectionItemKind(kind)
		}
		rows = append(rows, []string{
			u.GetName(),
			u.GetNamespace(),
			itemKind,
			string(u.GetUID()),
		})
	}

	printTable(rootCmd.OutOrStdout(), []string{"name", "namespace", "kind", "uid"}, rows)
	return nil
}

func collectionItemKind(listKind string) string {
	const suffix = "List"
	if len(listKind) > len(suffix) && listKind[len(listKind)-len(suffix):] == suffix {
		return listKind[:len(listKind)-len(suffix)]
	}
	return listKind
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
