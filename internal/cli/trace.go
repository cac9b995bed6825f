package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Limit     int
	RequestID string // optional - show a single request
	Interface string // optional - filter to "Resource.interface"
}

// TraceEvent is one journaled request with its outcome.
type TraceEvent struct {
	Seq       int64          `json:"seq"`
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Interface string         `json:"interface,omitempty"`
	Target    string         `json:"target"`
	ActorID   string         `json:"actor_id,omitempty"`
	Tenant    string         `json:"tenant,omitempty"`
	Args      map[string]any `json:"args"`
	Outcome   *TraceOutcome  `json:"outcome,omitempty"`
}

// TraceOutcome is the journaled outcome of a request.
type TraceOutcome struct {
	Seq          int64  `json:"seq"`
	ID           string `json:"id"`
	Case         string `json:"case"`
	Value        any    `json:"value,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Requests int            `json:"requests"`
	Pending  int            `json:"pending"`
	Cases    map[string]int `json:"cases"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the request journal",
		Long: `Show the request journal of the configured store.

Every executed request is listed in seq order with its outcome.
Requests refused before execution (binding errors, authorization
denials) are never journaled.

Examples:
  resgate trace --db ./resgate.db
  resgate trace --db ./resgate.db --limit 20
  resgate trace --db ./resgate.db --interface User.get_user
  resgate trace --db ./resgate.db --request 3f2a... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runTrace(ctx, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many requests (0 = all)")
	cmd.Flags().StringVar(&opts.RequestID, "request", "", "show a single request by id")
	cmd.Flags().StringVar(&opts.Interface, "interface", "", "filter to Resource.interface")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	path := opts.Database
	if opts.Config != nil {
		path = opts.Config.Store.Path
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set RESGATE_DB")
	}

	st, err := store.Open(path, store.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var entries []store.JournalEntry
	if opts.RequestID != "" {
		entry, err := st.ReadJournalEntry(ctx, opts.RequestID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("request not found: %s", opts.RequestID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		entries = []store.JournalEntry{entry}
	} else {
		// The interface filter applies after the limit is taken from the
		// store, so read everything when filtering.
		limit := opts.Limit
		if opts.Interface != "" {
			limit = 0
		}
		if entries, err = st.ReadJournal(ctx, limit); err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
	}

	result := buildTrace(entries, opts.Interface, opts.Limit)

	if opts.Format == "json" {
		return outputTraceJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTrace converts journal entries to timeline events.
// When filter is set, only requests for that "Resource.interface" are kept.
func buildTrace(entries []store.JournalEntry, filter string, limit int) TraceResult {
	result := TraceResult{
		Timeline: []TraceEvent{},
		Stats:    TraceStats{Cases: map[string]int{}},
	}

	for _, e := range entries {
		req := e.Request
		iface := ""
		if req.Interface != "" {
			iface = req.Resource + "." + req.Interface
		}
		if filter != "" && iface != filter {
			continue
		}
		if limit > 0 && len(result.Timeline) >= limit {
			break
		}

		event := TraceEvent{
			Seq:       req.Seq,
			ID:        req.ID,
			Kind:      req.Kind,
			Interface: iface,
			Target:    req.Resource + "." + req.Target,
			ActorID:   req.ActorID,
			Tenant:    req.Tenant,
			Args:      map[string]any{},
		}
		if req.Args != nil {
			event.Args = ir.ToGo(req.Args).(map[string]any)
		}

		result.Stats.Requests++
		if out := e.Outcome; out != nil {
			event.Outcome = &TraceOutcome{
				Seq:          out.Seq,
				ID:           out.ID,
				Case:         out.Case,
				Value:        ir.ToGo(out.Value),
				ErrorCode:    string(out.ErrorCode),
				ErrorMessage: out.ErrorMessage,
			}
			result.Stats.Cases[out.Case]++
		} else {
			result.Stats.Pending++
		}

		result.Timeline = append(result.Timeline, event)
	}

	return result
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(w io.Writer, result TraceResult) error {
	return writeJSON(w, CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintln(w, "=== Journal ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no requests)")
	}
	for _, event := range result.Timeline {
		formatTraceEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Requests: %d\n", result.Stats.Requests)
	fmt.Fprintf(w, "  Pending:  %d\n", result.Stats.Pending)
	cases := make([]string, 0, len(result.Stats.Cases))
	for c := range result.Stats.Cases {
		cases = append(cases, c)
	}
	sort.Strings(cases)
	for _, c := range cases {
		fmt.Fprintf(w, "  %s: %d\n", c, result.Stats.Cases[c])
	}

	return nil
}

// formatTraceEvent formats a single request and its outcome for text output.
func formatTraceEvent(w io.Writer, event TraceEvent, verbose bool) {
	name := event.Interface
	if name == "" {
		name = event.Target
	}
	fmt.Fprintf(w, "  [%d] %s %s %s\n", event.Seq, strings.ToUpper(event.Kind), name, formatArgs(event.Args))
	if verbose {
		fmt.Fprintf(w, "       ID: %s  Target: %s", truncateID(event.ID), event.Target)
		if event.ActorID != "" {
			fmt.Fprintf(w, "  Actor: %s", event.ActorID)
		}
		fmt.Fprintln(w)
	}

	out := event.Outcome
	if out == nil {
		fmt.Fprintln(w, "       -> (pending)")
		return
	}
	switch {
	case out.ErrorCode != "":
		fmt.Fprintf(w, "  [%d] -> %s %s\n", out.Seq, out.Case, out.ErrorCode)
		if verbose && out.ErrorMessage != "" {
			fmt.Fprintf(w, "       %s\n", out.ErrorMessage)
		}
	case verbose:
		fmt.Fprintf(w, "  [%d] -> %s %s\n", out.Seq, out.Case, formatValue(out.Value))
	default:
		fmt.Fprintf(w, "  [%d] -> %s\n", out.Seq, out.Case)
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
