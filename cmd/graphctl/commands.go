package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/nodegraph/internal/archive"
	"github.com/gyaneshwarpardhi/nodegraph/internal/calculator"
	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/dag"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

var errInvalid = errors.New("document is not valid")

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "graphctl",
		Short:        "Inspect, validate and run node graph documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log load and execution details to stderr")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelError
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(newTypesCmd(), newValidateCmd(logger), newRunCmd(logger), newConvertCmd())
	return root
}

func newController(logger *slog.Logger) *controller.Controller {
	reg := registry.New()
	calculator.Register(reg)
	return controller.New("graphctl", reg, logger)
}

// load reads path into a fresh controller without running a pass.
func load(path string, logger *slog.Logger) (*controller.Controller, *archive.Report, error) {
	c := newController(logger)
	rep, err := archive.LoadFile(c, path, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, rep, nil
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered node and edge kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.New()
			calculator.Register(reg)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "NODE KINDS")
			for _, nt := range reg.NodeTypes() {
				n := nt.New()
				fmt.Fprintf(out, "  %-16s %-10s in:%s out:%s\n", nt.Name, nt.Category,
					socketList(n.Inputs()), socketList(n.Outputs()))
			}
			fmt.Fprintln(out, "EDGE KINDS")
			for _, et := range reg.EdgeTypes() {
				dt := et.DataType
				if dt == "" {
					dt = "any"
				}
				fmt.Fprintf(out, "  %-16s %s\n", et.Name, dt)
			}
			return nil
		},
	}
}

func newValidateCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that every record resolves and the graph has no cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, rep, err := load(args[0], logger(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d nodes, %d edges\n", args[0], rep.Nodes, rep.Edges)
			for _, s := range rep.Skipped {
				fmt.Fprintf(out, "  skipped: %v\n", s)
			}
			order, orderErr := c.Graph().Order()
			if orderErr != nil {
				fmt.Fprintf(out, "  %v\n", orderErr)
			} else {
				fmt.Fprintf(out, "  order: %s\n", strings.Join(order, " -> "))
			}
			if len(rep.Skipped) > 0 || orderErr != nil {
				return errInvalid
			}
			return nil
		},
	}
}

func newRunCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var (
		sets   []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a document and print the value of every output node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := load(args[0], logger(cmd))
			if err != nil {
				return err
			}
			for _, s := range sets {
				nodeID, name, value, err := parseSet(s)
				if err != nil {
					return err
				}
				if err := c.SetAttribute(nodeID, name, value); err != nil {
					return fmt.Errorf("--set %s: %w", s, err)
				}
			}
			runErr := c.Execute()
			var cyclic *dag.CyclicGraphError
			if errors.As(runErr, &cyclic) {
				return runErr
			}
			printOutputs(cmd.OutOrStdout(), c)
			if output != "" {
				if _, err := archive.SaveFile(c, output); err != nil {
					return err
				}
			}
			// Node failures leave previous results in place; report them after the values.
			return runErr
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Override an attribute before running, as node.attribute=value")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Save the executed graph to this file")
	return cmd
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Re-encode a document; the format follows each file's extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := archive.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := archive.WriteFile(doc, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", args[0], args[1], archive.FormatFor(args[1]))
			return nil
		},
	}
}

// parseSet splits node.attribute=value. The value is read as YAML so numbers
// and booleans keep their kind.
func parseSet(s string) (nodeID, name string, value any, err error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", nil, fmt.Errorf("--set %q: want node.attribute=value", s)
	}
	nodeID, name, ok = strings.Cut(key, ".")
	if !ok || nodeID == "" || name == "" {
		return "", "", nil, fmt.Errorf("--set %q: want node.attribute=value", s)
	}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return "", "", nil, fmt.Errorf("--set %q: %w", s, err)
	}
	return nodeID, name, value, nil
}

func printOutputs(w io.Writer, c *controller.Controller) {
	snap := c.Snapshot()
	var lines []string
	for _, n := range snap.Nodes {
		if n.Category != calculator.CategoryOutput {
			continue
		}
		key := "value"
		if _, ok := n.Attributes[key]; !ok {
			key = "values"
		}
		lines = append(lines, fmt.Sprintf("%s\t%v", n.ID, n.Attributes[key]))
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func socketList(sockets []*model.Socket) string {
	if len(sockets) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(sockets))
	for _, s := range sockets {
		parts = append(parts, s.Name()+":"+s.DataType())
	}
	return strings.Join(parts, ",")
}
