package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atlas-lang/atlas/dis"
	"github.com/atlas-lang/atlas/object"
)

func newDisCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "dis <file.atb>",
		Short: "Disassemble compiled Atlas bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			code, err := loadBytecode(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d instructions, %d constants\n\n",
				args[0], len(code.Instructions), len(code.Constants))

			for i, c := range code.Constants {
				fmt.Fprintf(out, "const %d: %s\n", i, c.Inspect())
				if fn, ok := c.(*object.Function); ok {
					fmt.Fprintf(out, "  entry %d, arity %d, locals %d\n",
						fn.BytecodeOffset, fn.Arity, fn.LocalCount)
				}
			}
			fmt.Fprintln(out)
			return dis.Fprint(code, out)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}
