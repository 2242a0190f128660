// Package exec runs stdio endpoints as child processes and speaks MCP over
// their stdin and stdout.
package exec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mcp"
	"github.com/sirupsen/logrus"
)

// DefaultGracePeriod is how long Close waits for a process to exit after its
// stdin is closed before killing its process group.
const DefaultGracePeriod = 2 * time.Second

// Connector opens MCP sessions to stdio endpoints. Every session owns a
// freshly spawned process which is terminated when the session closes.
type Connector struct {
	log   logrus.FieldLogger
	grace time.Duration
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger; endpoint stderr is logged at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Connector) { c.log = l }
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Connector) { c.grace = d }
}

// NewConnector returns a stdio connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{log: logrus.StandardLogger(), grace: DefaultGracePeriod}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect spawns ep.Command and performs the MCP handshake over its stdio.
func (c *Connector) Connect(ctx context.Context, ep relay.Endpoint) (relay.Session, error) {
	if ep.Transport != relay.TransportStdio {
		return nil, fmt.Errorf("endpoint %q: exec connector cannot serve %q: %w", ep.ID, ep.Transport, relay.ErrUnknownTransport)
	}
	log := c.log.WithFields(logrus.Fields{"endpoint": ep.ID, "transport": ep.Transport})
	p, err := start(ep, log, c.grace)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", ep.ID, err)
	}
	s, err := mcp.Connect(ctx, mcp.NewStream(p.stdout, p.stdin, p), mcp.WithEndpoint(ep.ID), mcp.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", ep.ID, err)
	}
	return s, nil
}

// process is a child running in its own process group.
type process struct {
	cmd    *osexec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	log    logrus.FieldLogger
	grace  time.Duration

	waitErr chan error
	once    sync.Once
	err     error
}

func start(ep relay.Endpoint, log logrus.FieldLogger, grace time.Duration) (*process, error) {
	cmd := osexec.Command(ep.Command, ep.Args...)
	cmd.Env = environ(ep.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", ep.Command, err)
	}
	log.WithField("pid", cmd.Process.Pid).Debug("endpoint process started")

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		log:     log,
		grace:   grace,
		waitErr: make(chan error, 1),
	}
	stderrDone := make(chan struct{})
	go func() { forwardStderr(stderr, log); close(stderrDone) }()
	go func() {
		<-stderrDone
		p.waitErr <- cmd.Wait()
	}()
	return p, nil
}

// Close closes stdin, waits for the grace period and then kills the process
// group. It is safe to call more than once.
func (p *process) Close() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		var err error
		select {
		case err = <-p.waitErr:
		case <-timer.C:
			if kerr := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); kerr != nil && !errors.Is(kerr, syscall.ESRCH) {
				p.err = fmt.Errorf("kill process group: %w", kerr)
			}
			err = <-p.waitErr
		}
		p.log.WithField("exit", exitStatus(err)).Debug("endpoint process stopped")
	})
	return p.err
}

func forwardStderr(r io.Reader, log logrus.FieldLogger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(Sanitize(sc.Text())); line != "" {
			log.WithField("stream", "stderr").Debug(line)
		}
	}
}

// environ returns the parent environment with overrides applied in key order.
func environ(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

func exitStatus(err error) string {
	if err == nil {
		return "0"
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.String()
	}
	return err.Error()
}

var _ relay.Connector = (*Connector)(nil)
