package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/interchange"
	"github.com/mbuck21/BOM-Manager/pkg/result"
)

// emit prints a backend result. With --json the envelope is printed
// unchanged; otherwise human renders the data and warnings follow it.
// A failed result yields [ErrReported].
func emit[T any](c *CLI, res result.Result[T], human func(T)) error {
	if c.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if !res.OK {
			return ErrReported
		}
		return nil
	}
	if !res.OK {
		for _, e := range res.Errors {
			printError("%s", e)
		}
		printWarnings(res.Warnings)
		return ErrReported
	}
	human(res.Data)
	printWarnings(res.Warnings)
	return nil
}

func printWarnings(ws []string) {
	for _, w := range ws {
		printWarning("%s", w)
	}
}

// parseAttrs turns repeated key=value flags into attributes. Values are
// typed like CSV cells: true/false, numbers, otherwise text.
func parseAttrs(pairs []string) (bom.Attributes, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(bom.Attributes, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New(errors.ErrCodeValidation, "invalid --attr %q (want key=value)", p)
		}
		attrs[k] = interchange.ParseValue(v)
	}
	return attrs, nil
}

func formatAttrs(a bom.Attributes) string {
	if len(a) == 0 {
		return "—"
	}
	parts := make([]string, 0, len(a))
	for _, k := range a.Keys() {
		parts = append(parts, k+"="+a[k].String())
	}
	return strings.Join(parts, " ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatRelativeTime renders t relative to now for recent times.
func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
