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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/stefanprodan/opkit/internal/logger"
	"github.com/stefanprodan/opkit/pkg/memories"
	"github.com/stefanprodan/opkit/pkg/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [PATH]...",
	Short: "Watches change streams and logs every event",
	Long: `The watch command opens one change stream per given API path and keeps
per-resource memory across events until interrupted with SIGINT or SIGTERM.`,
	Example: `  # Watch the pods in a namespace
  opkit watch /api/v1/namespaces/default/pods?watch=true

  # Watch several resource kinds defined in a config file
  opkit watch --config watch.yaml
`,
	RunE: runWatchCmd,
}

type watchFlags struct {
	configFile    string
	streamTimeout time.Duration
}

var watchArgs watchFlags

// watchConfig is the schema of the --config file.
type watchConfig struct {
	Streams []struct {
		Name string `json:"name,omitempty"`
		Path string `json:"path"`
	} `json:"streams"`
}

func init() {
	watchCmd.Flags().StringVarP(&watchArgs.configFile, "config", "f", "",
		"path to a YAML file listing the streams to watch.")
	watchCmd.Flags().DurationVar(&watchArgs.streamTimeout, "stream-timeout", 0,
		"the length of time after which a stream is re-opened. (zero means server-side)")

	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	paths := args
	if watchArgs.configFile != "" {
		configPaths, err := readWatchConfig(watchArgs.configFile)
		if err != nil {
			return err
		}
		paths = append(paths, configPaths...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("at least one stream path or a --config file is required")
	}

	log := LoggerFrom(cmd.Context())
	apiClient, err := newAPIClient(log)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{
		Client:        apiClient,
		Handler:       logEvents(log),
		MemoTemplate:  memories.Memo{},
		StreamTimeout: watchArgs.streamTimeout,
		Logger:        log,
	}, paths...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("watching streams", "server", apiClient.Server(), "streams", len(paths))
	w.Run(ctx)
	log.Info("stopped watching", "resources_seen", w.Memories().Len())
	return nil
}

// logEvents returns a handler that counts the events per resource in
// its memo and logs every event.
func logEvents(log logr.Logger) watcher.Handler {
	return func(ctx context.Context, event watcher.Event, memory *memories.ResourceMemory) error {
		memo, ok := memory.Memo.(memories.Memo)
		if !ok {
			return fmt.Errorf("unexpected memo type %T", memory.Memo)
		}
		seen, _ := memo["seen"].(int)
		seen++
		memo["seen"] = seen

		if rootArgs.prettyLog {
			log.Info(logger.ColorizeJoin(event.Type, event.Object), "seen", seen)
			return nil
		}
		log.Info("event received",
			"type", string(event.Type),
			"kind", event.Object.GetKind(),
			"name", event.Object.GetName(),
			"namespace", event.Object.GetNamespace(),
			"uid", string(event.Object.GetUID()),
			"seen", seen)
		return nil
	}
}

func readWatchConfig(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading watch config: %w", err)
	}

	var config watchConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing watch config %s: %w", path, err)
	}

	var paths []string
	for _, stream := range config.Streams {
		if stream.Path == "" {
			return nil, fmt.Errorf("watch config %s: stream %q has no path", path, stream.Name)
		}
		paths = append(paths, stream.Path)
	}
	return paths, nil
}
