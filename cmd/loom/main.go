// Package main provides the loom CLI: convert ONNX models to IR text and
// inspect model metadata.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loom-ml/loom/importer"
	"github.com/loom-ml/loom/onnx"
)

const version = "v0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:           "loom",
		Short:         "loom converts ONNX models into compiler IR",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConvertCmd(), newInfoCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newConvertCmd() *cobra.Command {
	var (
		output                string
		expansionLists        string
		keepInitializedInputs bool
	)
	cmd := &cobra.Command{
		Use:   "convert <model.onnx>",
		Short: "Convert an ONNX model to IR text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := onnx.ParseFile(args[0])
			if err != nil {
				return err
			}

			config := importer.DefaultConfig()
			config.ElideInitializedInputs = !keepInitializedInputs
			if expansionLists != "" {
				data, err := os.ReadFile(expansionLists)
				if err != nil {
					return err
				}
				if err := config.LoadExpansionLists(data); err != nil {
					return err
				}
			}

			module, err := importer.Import(model, config)
			if err != nil {
				return err
			}
			if err := module.Verify(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			_, err = fmt.Fprintln(out, module)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write IR to a file instead of stdout")
	cmd.Flags().StringVar(&expansionLists, "expansion-lists", "",
		"YAML file overriding the operator-function expansion allow/deny lists")
	cmd.Flags().BoolVar(&keepInitializedInputs, "keep-initialized-inputs", false,
		"keep declared inputs that carry initial values as true inputs")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model.onnx>",
		Short: "Print ONNX model metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := onnx.ParseFile(args[0])
			if err != nil {
				return err
			}
			info := onnx.Summarize(model)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "graph:            %s\n", info.GraphName)
			fmt.Fprintf(out, "producer:         %s %s\n", info.ProducerName, info.ProducerVersion)
			fmt.Fprintf(out, "ir version:       %d\n", info.IRVersion)
			domains := make([]string, 0, len(info.OpsetImports))
			for domain := range info.OpsetImports {
				domains = append(domains, domain)
			}
			sort.Strings(domains)
			for _, domain := range domains {
				label := domain
				if label == "" {
					label = "(default)"
				}
				fmt.Fprintf(out, "opset:            %s %d\n", label, info.OpsetImports[domain])
			}
			fmt.Fprintf(out, "inputs:           %v\n", info.InputNames)
			fmt.Fprintf(out, "outputs:          %v\n", info.OutputNames)
			fmt.Fprintf(out, "initializers:     %d\n", info.InitializerCnt)
			if len(info.FunctionNames) > 0 {
				fmt.Fprintf(out, "local functions:  %v\n", info.FunctionNames)
			}
			fmt.Fprintf(out, "operators:        %v\n", info.Operators)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "loom %s\n", version)
		},
	}
}
