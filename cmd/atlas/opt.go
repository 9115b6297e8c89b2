package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlas-lang/atlas/optimizer"
)

func newOptCommand() *cobra.Command {
	var (
		outPath   string
		optLevel  int
		stripInfo bool
	)

	cmd := &cobra.Command{
		Use:   "opt <file.atb>",
		Short: "Optimize compiled Atlas bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := loadBytecode(args[0])
			if err != nil {
				return err
			}

			optimized, stats := optimizer.New(
				optimizer.WithLevel(optimizer.Level(optLevel)),
				optimizer.WithLogger(logger()),
			).Optimize(code)

			fmt.Fprintf(cmd.OutOrStdout(),
				"folded %d, removed %d dead, applied %d peephole rewrites; %d -> %d bytes\n",
				stats.ConstantsFolded,
				stats.DeadInstructionsRemoved,
				stats.PeepholePatternsApplied,
				stats.BytecodeSizeBefore,
				stats.BytecodeSizeAfter,
			)

			if outPath == "" {
				return nil
			}
			data, err := optimized.MarshalBinary(!stripInfo)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", outPath, err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write optimized bytecode to this path")
	cmd.Flags().IntVarP(&optLevel, "optimize", "O", int(optimizer.Level3), "optimization level (0-3)")
	cmd.Flags().BoolVar(&stripInfo, "strip-debug", false, "omit the debug span table from the output")
	return cmd
}
