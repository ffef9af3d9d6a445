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

package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/opkit/pkg/watcher"
)

// NewConsoleLogger returns a human-friendly Logger.
// Pretty print adds timestamp, log level and colorized output to the logs.
func NewConsoleLogger(colorize, prettify bool) logr.Logger {
	color.NoColor = !colorize
	zconfig := zerolog.ConsoleWriter{Out: color.Error, NoColor: !colorize}
	if !prettify {
		zconfig.PartsExclude = []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
		}
	}

	zlog := zerolog.New(zconfig).With().Timestamp().Logger()

	zerologr.VerbosityFieldName = ""
	return zerologr.New(&zlog)
}

var (
	colorError    = color.New(color.FgHiRed)
	colorPerEvent = map[watcher.EventType]*color.Color{
		watcher.EventAdded:    color.New(color.FgHiGreen),
		watcher.EventModified: color.New(color.FgHiCyan),
		watcher.EventDeleted:  color.New(color.FgRed),
		watcher.EventBookmark: color.New(color.FgHiBlack),
		watcher.EventError:    color.New(color.FgYellow, color.Italic),
	}
)

func ColorizeJoin(values ...any) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(ColorizeAny(v))
	}
	return sb.String()
}

func ColorizeAny(v any) string {
	switch v := v.(type) {
	case *unstructured.Unstructured:
		return ColorizeUnstructured(v)
	case watcher.EventType:
		return ColorizeEvent(v)
	case error:
		return ColorizeError(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func ColorizeSubject(subject string) string {
	return color.CyanString(subject)
}

func ColorizeUnstructured(object *unstructured.Unstructured) string {
	subject := fmt.Sprintf("%s/%s", object.GetKind(), object.GetName())
	if ns := object.GetNamespace(); ns != "" {
		subject = fmt.Sprintf("%s/%s/%s", object.GetKind(), ns, object.GetName())
	}
	return ColorizeSubject(subject)
}

func ColorizeEvent(eventType watcher.EventType) string {
	if c, ok := colorPerEvent[eventType]; ok {
		return c.Sprint(string(eventType))
	}
	return string(eventType)
}

func ColorizeError(err error) string {
	return colorError.Sprint(err.Error())
}
