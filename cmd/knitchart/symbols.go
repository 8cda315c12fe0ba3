/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"knitchart/internal/config"
	"knitchart/internal/symbol"
	"knitchart/internal/symbolpack"
)

func newSymbolsCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the symbol catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			var syms []symbol.Symbol
			if category != "" {
				syms = cat.ByCategory(category)
			} else {
				syms = cat.Symbols()
			}
			out := cmd.OutOrStdout()
			if len(syms) == 0 {
				fmt.Fprintln(out, "no symbols")
				return nil
			}
			printSymbols(out, syms)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list this category")
	return cmd
}

func printSymbols(out io.Writer, syms []symbol.Symbol) {
	tw := newTable(out)
	tw.AppendHeader(table.Row{"Symbol", "Width", "Instructions"})
	for _, s := range syms {
		tw.AppendRow(table.Row{s.Ref().String(), s.Width, s.Instructions})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 60}})
	tw.Render()
}

func newPackCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Share custom symbols as zip packs",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Symbol directory (default: the per-user symbol directory)")
	symbolDir := func() (string, error) {
		if dir != "" {
			return dir, nil
		}
		return config.UserSymbolDir()
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <pack.zip>",
		Short: "Write every valid symbol of the directory into a pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := symbolDir()
			if err != nil {
				return err
			}
			n, err := symbolpack.Export(root, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d symbols into %s\n", n, args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "install <pack.zip>",
		Short: "Install the symbols of a pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := symbolDir()
			if err != nil {
				return err
			}
			res, err := symbolpack.Install(root, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "installed %d symbols into %s\n", len(res.Installed), root)
			if len(res.Skipped) > 0 {
				fmt.Fprintf(out, "skipped: %s\n", strings.Join(res.Skipped, ", "))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <pack.zip>",
		Short: "List the symbols of a pack without installing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syms, err := symbolpack.Inspect(args[0])
			if err != nil {
				return err
			}
			if len(syms) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no symbols")
				return nil
			}
			printSymbols(cmd.OutOrStdout(), syms)
			return nil
		},
	})
	return cmd
}
