package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cochaviz/exactiso/internal/artifacts"
	"github.com/cochaviz/exactiso/internal/build"
	"github.com/cochaviz/exactiso/internal/presenter"
	"github.com/cochaviz/exactiso/internal/runner"
	"github.com/cochaviz/exactiso/internal/session"
)

func newBuildCommand(a *app) *cobra.Command {
	var (
		sourcePath string
		workDir    string
		bootMode   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create a bootable ISO from a source drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := build.BuildRequest{
				SourcePath:       strings.TrimSpace(sourcePath),
				WorkingDirectory: strings.TrimSpace(workDir),
			}
			if cmd.Flags().Changed("boot-mode") {
				mode, err := build.ParseBootMode(bootMode)
				if err != nil {
					return err
				}
				req = req.WithBootMode(mode)
			}

			logger := a.logger.With("command", "build")

			ctrl, stop, err := startController(cmd.Context(), a, observerFor(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer stop()

			final, err := runOnce(cmd.Context(), ctrl, req)
			if err != nil {
				return err
			}
			reportArtifacts(logger, cmd.OutOrStdout(), final)
			if final.Status == build.BuildStatusFailed {
				return errBuildFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Source drive or directory to image")
	cmd.Flags().StringVarP(&workDir, "workdir", "w", "", "Working directory for intermediate files and the resulting ISO")
	cmd.Flags().StringVar(&bootMode, "boot-mode", "", "Force the boot mode (BIOS or UEFI) instead of detecting it")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("workdir")

	return cmd
}

func newInteractiveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Prompt for build inputs and run builds until the input ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, stop, err := startController(cmd.Context(), a, observerFor(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer stop()

			return interactiveLoop(cmd.Context(), a.logger.With("command", "interactive"), ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// observerFor renders sessions on w, with a spinner when w is a terminal.
func observerFor(w io.Writer) session.Observer {
	if f, ok := w.(*os.File); ok {
		return presenter.ForFile(f)
	}
	return presenter.NewLineWriter(w)
}

// startController wires the builder and runner from the app config and starts
// the controller loop. stop ends the loop and waits for it.
func startController(ctx context.Context, a *app, observer session.Observer) (*session.Controller, func(), error) {
	builder, err := a.cfg.Builder()
	if err != nil {
		return nil, nil, err
	}

	procRunner := &runner.Runner{Logger: a.logger.With("component", "runner")}
	ctrl := session.New(builder, procRunner, a.logger.With("component", "session"))
	ctrl.Subscribe(observer)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(loopCtx)
	}()

	return ctrl, func() {
		cancel()
		<-done
	}, nil
}

func runOnce(ctx context.Context, ctrl *session.Controller, req build.BuildRequest) (build.BuildSession, error) {
	id, err := ctrl.Submit(ctx, req)
	if err != nil {
		return build.BuildSession{}, err
	}
	return ctrl.Wait(ctx, id)
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	text, err := p.in.ReadString('\n')
	if err != nil && (text == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *prompter) confirm(prompt string) (bool, error) {
	ans, err := p.ask(prompt + " (yes/no): ")
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

func (p *prompter) request() (build.BuildRequest, error) {
	var req build.BuildRequest
	var err error

	if req.SourcePath, err = p.ask("Source drive: "); err != nil {
		return req, err
	}
	if req.WorkingDirectory, err = p.ask("Working directory: "); err != nil {
		return req, err
	}

	for {
		answer, err := p.ask("Override boot mode? [BIOS/UEFI, empty to detect]: ")
		if err != nil {
			return req, err
		}
		if answer == "" {
			return req, nil
		}
		mode, err := build.ParseBootMode(answer)
		if err != nil {
			fmt.Fprintf(p.out, "Error: %v\n", err)
			continue
		}
		return req.WithBootMode(mode), nil
	}
}

// interactiveLoop keeps prompting until input ends or the operator declines
// another build. Invalid input and failed builds never end the loop.
func interactiveLoop(ctx context.Context, logger *slog.Logger, ctrl *session.Controller, in io.Reader, out io.Writer) error {
	p := &prompter{in: bufio.NewReader(in), out: out}

	for {
		req, err := p.request()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		final, err := runOnce(ctx, ctrl, req)
		var validationErr *session.ValidationError
		switch {
		case errors.As(err, &validationErr):
			fmt.Fprintf(out, "Error: %v\n", validationErr)
			continue
		case err != nil:
			return err
		}
		reportArtifacts(logger, out, final)

		again, err := p.confirm("Run another build?")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !again {
			return nil
		}
	}
}

// reportArtifacts lists the images a completed session left in its working
// directory.
func reportArtifacts(logger *slog.Logger, out io.Writer, s build.BuildSession) {
	if s.Status != build.BuildStatusCompleted {
		return
	}
	infos, errs := artifacts.InspectProduced(s.Request.WorkingDirectory, s.StartedAt)
	for _, err := range errs {
		logger.Warn("could not inspect produced image", "error", err)
	}
	if len(infos) == 0 {
		logger.Info("no new ISO images found", "working_dir", s.Request.WorkingDirectory)
		return
	}
	for _, info := range infos {
		fmt.Fprintf(out, "image %s\tlabel=%s\tsize=%d\tentries=%d\n", info.Path, info.Label, info.Size, len(info.Entries))
	}
}
