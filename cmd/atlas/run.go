package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/optimizer"
	"github.com/atlas-lang/atlas/security"
	"github.com/atlas-lang/atlas/vm"
)

func newRunCommand() *cobra.Command {
	var (
		optLevel  int
		allowAll  bool
		allowFS   []string
		allowNet  []string
		allowEnv  []string
		allowProc []string
		printLast bool
	)

	cmd := &cobra.Command{
		Use:   "run <file.atb>",
		Short: "Execute compiled Atlas bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := loadBytecode(args[0])
			if err != nil {
				return err
			}
			if optLevel > 0 {
				code, _ = optimizer.New(
					optimizer.WithLevel(optimizer.Level(optLevel)),
					optimizer.WithLogger(logger()),
				).Optimize(code)
			}

			sec := security.New()
			if allowAll {
				sec = security.AllowAll()
			} else {
				for _, path := range allowFS {
					sec.GrantFilesystem(path)
				}
				for _, host := range allowNet {
					sec.GrantNetwork(host)
				}
				for _, name := range allowEnv {
					sec.GrantEnvironment(name)
				}
				for _, command := range allowProc {
					sec.GrantProcess(command)
				}
			}

			machine := vm.New(
				vm.WithSecurityContext(sec),
				vm.WithOutput(cmd.OutOrStdout()),
				vm.WithLogger(logger()),
			)
			result, err := machine.Run(cmd.Context(), code)
			if err != nil {
				var rt *errz.RuntimeError
				if errors.As(err, &rt) {
					fmt.Fprintln(cmd.ErrOrStderr(), rt.StackTrace())
				}
				return err
			}
			if printLast && result != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result.Inspect())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&optLevel, "optimize", "O", 0, "optimization level (0-3)")
	cmd.Flags().BoolVar(&allowAll, "allow-all", false, "grant all capabilities")
	cmd.Flags().StringSliceVar(&allowFS, "allow-fs", nil, "grant filesystem access under a path prefix")
	cmd.Flags().StringSliceVar(&allowNet, "allow-net", nil, "grant network access to a host")
	cmd.Flags().StringSliceVar(&allowEnv, "allow-env", nil, "grant access to an environment variable")
	cmd.Flags().StringSliceVar(&allowProc, "allow-run", nil, "grant permission to run a command")
	cmd.Flags().BoolVar(&printLast, "print-result", true, "print the program's final value")
	return cmd
}

func loadBytecode(path string) (*bytecode.Bytecode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	code, err := bytecode.UnmarshalBinary(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := bytecode.Validate(code); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return code, nil
}
