package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cochaviz/exactiso/internal/build"
	"github.com/cochaviz/exactiso/internal/command"
	"github.com/cochaviz/exactiso/internal/runner"
)

// errorLinePrefix marks log lines produced by the controller itself.
const errorLinePrefix = "[ERROR] "

// CommandBuilder turns a request into an invocation of the image tool.
type CommandBuilder interface {
	Build(req build.BuildRequest) command.Invocation
}

// ProcessRunner starts an invocation and streams its output.
type ProcessRunner interface {
	Launch(ctx context.Context, inv command.Invocation) (runner.Lines, error)
}

// Observer receives session updates. Calls are made from the controller loop,
// one at a time and in order, so implementations must not block for long and
// must not call back into the controller.
type Observer interface {
	OnLine(line string)
	OnStatusChange(session build.BuildSession)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Line   func(line string)
	Status func(session build.BuildSession)
}

func (o ObserverFuncs) OnLine(line string) {
	if o.Line != nil {
		o.Line(line)
	}
}

func (o ObserverFuncs) OnStatusChange(session build.BuildSession) {
	if o.Status != nil {
		o.Status(session)
	}
}

// Controller runs at most one build at a time. All session state is owned by
// the goroutine executing Run; other goroutines talk to it through messages.
type Controller struct {
	builder CommandBuilder
	runner  ProcessRunner
	logger  *slog.Logger

	msgs    chan message
	stopped chan struct{}

	mu        sync.Mutex
	observers []Observer
	running   bool
}

// New returns a controller that builds invocations with builder and executes
// them with runner. Run must be started before Submit is called.
func New(builder CommandBuilder, procRunner ProcessRunner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		builder: builder,
		runner:  procRunner,
		logger:  logger,
		msgs:    make(chan message),
		stopped: make(chan struct{}),
	}
}

// Subscribe registers an observer for every subsequent update.
func (c *Controller) Subscribe(observer Observer) {
	if observer == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, observer)
}

type message any

type submitMsg struct {
	req   build.BuildRequest
	reply chan submitReply
}

type submitReply struct {
	id  string
	err error
}

type lineMsg struct {
	id   string
	line string
}

type doneMsg struct {
	id  string
	err error
}

type snapshotMsg struct {
	reply chan build.BuildSession
}

type waitMsg struct {
	id    string
	reply chan waitReply
}

type waitReply struct {
	session build.BuildSession
	err     error
}

// Run executes the control loop until ctx is done. Builds started by the
// loop inherit ctx, so cancelling it also terminates a running child.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("session controller already running")
	}
	c.running = true
	c.mu.Unlock()

	defer close(c.stopped)

	var (
		current *build.BuildSession
		waiters []waitMsg
	)

	finish := func() {
		snapshot := current.Clone()
		remaining := waiters[:0]
		for _, w := range waiters {
			if w.id == current.ID {
				w.reply <- waitReply{session: snapshot}
				continue
			}
			remaining = append(remaining, w)
		}
		waiters = remaining
	}

	for {
		select {
		case <-ctx.Done():
			for _, w := range waiters {
				w.reply <- waitReply{err: ctx.Err()}
			}
			return ctx.Err()

		case raw := <-c.msgs:
			switch msg := raw.(type) {
			case submitMsg:
				if current != nil && current.Status == build.BuildStatusRunning {
					c.logger.Warn("rejecting submission while a build is running", "session", current.ID)
					msg.reply <- submitReply{err: ErrBusy}
					continue
				}

				current = &build.BuildSession{
					ID:        uuid.NewString(),
					Request:   msg.req,
					Status:    build.BuildStatusRunning,
					StartedAt: time.Now(),
				}
				c.logger.Info("build started",
					"session", current.ID,
					"source", msg.req.SourcePath,
					"working_dir", msg.req.WorkingDirectory,
				)
				c.notifyStatus(*current)
				go c.work(ctx, current.ID, current.Request)
				msg.reply <- submitReply{id: current.ID}

			case lineMsg:
				if current == nil || current.ID != msg.id || current.Status != build.BuildStatusRunning {
					continue
				}
				current.Log = append(current.Log, msg.line)
				c.notifyLine(msg.line)

			case doneMsg:
				if current == nil || current.ID != msg.id || current.Status != build.BuildStatusRunning {
					continue
				}
				current.FinishedAt = time.Now()
				logger := c.logger.With("session", current.ID, "duration", current.FinishedAt.Sub(current.StartedAt).Round(time.Millisecond))
				if msg.err != nil {
					line := errorLinePrefix + msg.err.Error()
					current.Log = append(current.Log, line)
					c.notifyLine(line)
					current.Status = build.BuildStatusFailed
					logger.Error("build failed", "error", msg.err)
				} else {
					current.Status = build.BuildStatusCompleted
					logger.Info("build completed", "lines", len(current.Log))
				}
				c.notifyStatus(*current)
				finish()

			case snapshotMsg:
				if current == nil {
					msg.reply <- build.BuildSession{Status: build.BuildStatusIdle}
					continue
				}
				msg.reply <- current.Clone()

			case waitMsg:
				switch {
				case current == nil || current.ID != msg.id:
					msg.reply <- waitReply{err: fmt.Errorf("%w: %s", ErrUnknownSession, msg.id)}
				case current.Status.Terminal():
					msg.reply <- waitReply{session: current.Clone()}
				default:
					waiters = append(waiters, msg)
				}
			}
		}
	}
}

// Submit validates req and starts a build for it. A *ValidationError is
// returned without spawning anything when a path does not exist, and ErrBusy
// when another build is still running.
func (c *Controller) Submit(ctx context.Context, req build.BuildRequest) (string, error) {
	req.SourcePath = strings.TrimSpace(req.SourcePath)
	req.WorkingDirectory = strings.TrimSpace(req.WorkingDirectory)

	if err := ValidateRequest(req); err != nil {
		c.logger.Warn("build request rejected", "error", err)
		return "", err
	}

	reply := make(chan submitReply, 1)
	if err := c.send(ctx, submitMsg{req: req, reply: reply}); err != nil {
		return "", err
	}
	select {
	case r := <-reply:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Snapshot returns a copy of the current or most recent session. Before the
// first submission the returned session is Idle.
func (c *Controller) Snapshot(ctx context.Context) (build.BuildSession, error) {
	reply := make(chan build.BuildSession, 1)
	if err := c.send(ctx, snapshotMsg{reply: reply}); err != nil {
		return build.BuildSession{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return build.BuildSession{}, ctx.Err()
	}
}

// SubmitEnabled reports whether a submission would currently be accepted.
func (c *Controller) SubmitEnabled(ctx context.Context) bool {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return false
	}
	return s.Status != build.BuildStatusRunning
}

// Wait blocks until session id reaches a terminal status.
func (c *Controller) Wait(ctx context.Context, id string) (build.BuildSession, error) {
	reply := make(chan waitReply, 1)
	if err := c.send(ctx, waitMsg{id: id, reply: reply}); err != nil {
		return build.BuildSession{}, err
	}
	select {
	case r := <-reply:
		return r.session, r.err
	case <-ctx.Done():
		return build.BuildSession{}, ctx.Err()
	case <-c.stopped:
		// The loop may have answered just before it stopped.
		select {
		case r := <-reply:
			return r.session, r.err
		default:
			return build.BuildSession{}, ErrStopped
		}
	}
}

func (c *Controller) send(ctx context.Context, msg message) error {
	select {
	case c.msgs <- msg:
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers a worker message, dropping it if the loop has exited.
func (c *Controller) post(msg message) {
	select {
	case c.msgs <- msg:
	case <-c.stopped:
	}
}

func (c *Controller) work(ctx context.Context, id string, req build.BuildRequest) {
	logger := c.logger.With("session", id)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("build worker panicked", "panic", r)
			c.post(doneMsg{id: id, err: fmt.Errorf("internal error: %v", r)})
		}
	}()

	inv := c.builder.Build(req)
	logger.Info("launching image tool", "command", inv.CommandLine())

	lines, err := c.runner.Launch(ctx, inv)
	if err != nil {
		c.post(doneMsg{id: id, err: err})
		return
	}

	for lines.Next() {
		c.post(lineMsg{id: id, line: lines.Text()})
	}
	streamErr := lines.Err()

	if waitErr := lines.Close(); waitErr != nil {
		logger.Debug("image tool exited with status", "error", waitErr)
	}
	if coder, ok := lines.(interface{ ExitCode() int }); ok {
		logger.Info("image tool exited", "exit_code", coder.ExitCode())
	}

	c.post(doneMsg{id: id, err: streamErr})
}

func (c *Controller) snapshotObservers() []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Observer(nil), c.observers...)
}

func (c *Controller) notifyLine(line string) {
	for _, o := range c.snapshotObservers() {
		o.OnLine(line)
	}
}

func (c *Controller) notifyStatus(s build.BuildSession) {
	snapshot := s.Clone()
	for _, o := range c.snapshotObservers() {
		o.OnStatusChange(snapshot.Clone())
	}
}

// ValidateRequest checks that both request paths exist.
func ValidateRequest(req build.BuildRequest) error {
	if err := checkPath("source path", req.SourcePath); err != nil {
		return err
	}
	if err := checkPath("working directory", req.WorkingDirectory); err != nil {
		return err
	}
	if req.BootModeOverride != nil && !req.BootModeOverride.IsValid() {
		return &ValidationError{Field: "boot mode", Path: string(*req.BootModeOverride), Err: errUnsupportedBootMode}
	}
	return nil
}

func checkPath(field, path string) error {
	if strings.TrimSpace(path) == "" {
		return &ValidationError{Field: field}
	}
	if _, err := os.Stat(path); err != nil {
		return &ValidationError{Field: field, Path: path, Err: err}
	}
	return nil
}
