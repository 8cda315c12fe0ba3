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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"knitchart/internal/crash"
	"knitchart/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	var format, preset, outDir, title string
	var scale float64
	cmd := &cobra.Command{
		Use:   "export <chart.kcp> [out-file]",
		Short: "Export a chart as image, SVG, PDF or spreadsheet",
		Long: strings.TrimSpace(`
With an output file the chart is written in the format given by --format or
the file extension. Without one every format of the preset is written to
exports/<preset>/ beside the chart (or --out-dir).

Formats: png, jpg, bmp, tiff, svg, pdf, xlsx. Presets: web, print, sheet.`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			if !cmd.Flags().Changed("scale") {
				scale = a.cfg.Export.Scale
			}
			out := cmd.OutOrStdout()

			if len(args) == 2 {
				opt := export.Options{Scale: scale, Title: title}
				if format != "" {
					if opt.Format, err = export.ParseFormat(format); err != nil {
						return err
					}
				}
				if err := export.File(sess.Document(), sess.Layout(), args[1], opt); err != nil {
					return err
				}
				a.log.Info("exported", "path", args[1])
				fmt.Fprintf(out, "wrote %s\n", args[1])
				return nil
			}

			if preset == "" {
				preset = a.cfg.Export.Preset
			}
			p, err := export.ParsePreset(preset)
			if err != nil {
				return err
			}
			bo := export.BatchOptions{Preset: p, OutDir: outDir, Title: title}
			if outDir == "" {
				bo.OutDir = a.cfg.Export.OutDir
			}
			if cmd.Flags().Changed("scale") {
				bo.Scale = scale
			}
			if format != "" {
				for _, s := range strings.Split(format, ",") {
					f, err := export.ParseFormat(s)
					if err != nil {
						return err
					}
					bo.Formats = append(bo.Formats, f)
				}
			}
			paths, err := export.BatchExport(sess.Document(), sess.Layout(), sess.Path(), bo)
			for _, p := range paths {
				fmt.Fprintf(out, "wrote %s\n", filepath.ToSlash(p))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format; a comma separated list for preset exports")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Raster scale factor")
	cmd.Flags().StringVar(&preset, "preset", "", "Preset for exports without an output file (default from config)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for preset exports")
	cmd.Flags().StringVar(&title, "title", "", "Title for PDF headers (default: file name)")
	return cmd
}
