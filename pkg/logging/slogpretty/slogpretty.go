// Package slogpretty provides a colorized slog.Handler for local
// development, the handler cmd/omnifsd and cmd/omnifsctl install in
// place of the default JSON handler.
package slogpretty

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
)

type PrettyHandlerOptions struct {
	SlogOpts *slog.HandlerOptions
}

type PrettyHandler struct {
	slog.Handler
	out    io.Writer
	attrs  []slog.Attr
	groups []string
}

func (o PrettyHandlerOptions) NewPrettyHandler(out io.Writer) *PrettyHandler {
	opts := o.SlogOpts
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	h := &PrettyHandler{
		Handler: slog.NewJSONHandler(out, opts),
		out:     out,
	}
	return h
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	var fieldsJSON []byte
	if len(fields) > 0 {
		var err error
		fieldsJSON, err = json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
	}

	timeStr := r.Time.Format(time.Kitchen)
	msg := color.CyanString(r.Message)

	_, err := fmt.Fprintf(h.out, "%s %s %s %s\n", timeStr, level, msg, string(fieldsJSON))
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithAttrs(attrs),
		out:     h.out,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups:  h.groups,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithGroup(name),
		out:     h.out,
		attrs:   h.attrs,
		groups:  append(append([]string{}, h.groups...), name),
	}
}
