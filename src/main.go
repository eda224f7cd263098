package main

import (
	"context"
	"fmt"
	"os"

	"c1gen/src/backend"
	"c1gen/src/util"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// newRootCommand returns the command compiling the method descriptions given as arguments.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "c1gen [OPTIONS] METHOD.toml...",
		Short:         "Generate x86-32 code for methods, one method at a time.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := util.ResolveOptions(cmd.Flags(), args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opt)
		},
	}
	util.BindFlags(cmd.Flags())
	return cmd
}

// run compiles the methods of opt and writes their listings.
func run(ctx context.Context, opt util.Options) error {
	level := "info"
	if opt.Verbose || opt.TraceRegAlloc || opt.TraceLoops {
		level = "debug"
	}
	if err := log.SetLevel(level); err != nil {
		return err
	}
	if len(opt.Src) == 0 {
		opt.Src = []string{"-"}
	}
	logger := log.G(ctx).WithField("threads", opt.Threads)
	logger.WithField("methods", len(opt.Src)).Debug("compiling")

	// Initiate output writer.
	var out *os.File
	if len(opt.Out) > 0 {
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrap(err, "opening output file")
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.WithError(err).Error("closing output file")
			}
		}()
		out = f
	}
	util.ListenWrite(opt.Threads, out)

	// Generate assembler. Methods that failed are reported after the others are written.
	st, err := backend.GenerateAssembler(ctx, opt)
	util.Close()
	if err != nil {
		return err
	}
	if opt.Statistics {
		return st.Print(os.Stderr)
	}
	return nil
}

func main() {
	log.L.Logger.SetOutput(os.Stderr)
	cmd := newRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
