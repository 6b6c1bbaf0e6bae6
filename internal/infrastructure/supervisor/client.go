// Package supervisor implements the process controller against a supervisord
// daemon's XML-RPC interface. It is a thin capability: every method is a
// remote call, no state is held beyond the connection.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/kolo/xmlrpc"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
)

// supervisord process states, per its documented state machine.
const (
	stateStopped  = 0
	stateStarting = 10
	stateRunning  = 20
	stateBackoff  = 30
	stateStopping = 40
	stateExited   = 100
	stateFatal    = 200
)

// supervisord fault codes this client tolerates.
const (
	faultAlreadyStarted = 60
	faultNotRunning     = 70
)

// processInfo mirrors the struct supervisor.getProcessInfo returns.
type processInfo struct {
	Name        string `xmlrpc:"name"`
	Group       string `xmlrpc:"group"`
	State       int    `xmlrpc:"state"`
	StateName   string `xmlrpc:"statename"`
	Description string `xmlrpc:"description"`
	Start       int64  `xmlrpc:"start"`
	PID         int    `xmlrpc:"pid"`
}

// Client talks to one supervisord instance.
type Client struct {
	url    string
	host   string
	port   int
	client *xmlrpc.Client
	logger hclog.Logger
}

var _ ports.ProcessController = (*Client)(nil)

// New connects a client to supervisord at host:port. The RPC endpoint is the
// daemon's standard /RPC2 path.
func New(host string, port int, logger hclog.Logger) (*Client, error) {
	url := fmt.Sprintf("http://%s/RPC2", net.JoinHostPort(host, strconv.Itoa(port)))
	rpc, err := xmlrpc.NewClient(url, &http.Transport{
		DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor client: %w", err)
	}
	return &Client{
		url:    url,
		host:   host,
		port:   port,
		client: rpc,
		logger: logger.Named("supervisor"),
	}, nil
}

// Reachable reports whether the supervisor answers on its TCP port.
func (c *Client) Reachable() bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(c.host, strconv.Itoa(c.port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// call runs one RPC under the context's deadline. The underlying client has
// no context support, so the call runs in a goroutine and the result is
// abandoned on cancellation.
func (c *Client) call(ctx context.Context, method string, args any, reply any) error {
	done := make(chan error, 1)
	go func() {
		done <- c.client.Call(method, args, reply)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && !isFault(err) {
			return fmt.Errorf("%w: %v", domain.ErrSupervisorUnreachable, err)
		}
		return err
	}
}

func isFault(err error) bool {
	var fault xmlrpc.FaultError
	return errors.As(err, &fault)
}

func faultCode(err error) (int, bool) {
	var fault xmlrpc.FaultError
	if errors.As(err, &fault) {
		return fault.Code, true
	}
	return 0, false
}

// Status returns the coarse state of one process.
func (c *Client) Status(ctx context.Context, name string) (ports.ProcessState, error) {
	info, err := c.Info(ctx, name)
	if err != nil {
		return ports.ProcessUnknown, err
	}
	return info.State, nil
}

// Info returns the supervisor's full view of one process.
func (c *Client) Info(ctx context.Context, name string) (ports.ProcessInfo, error) {
	var raw processInfo
	if err := c.call(ctx, "supervisor.getProcessInfo", name, &raw); err != nil {
		return ports.ProcessInfo{}, err
	}
	return toProcessInfo(raw), nil
}

// AllInfo lists every process the supervisor manages.
func (c *Client) AllInfo(ctx context.Context) ([]ports.ProcessInfo, error) {
	var raw []processInfo
	if err := c.call(ctx, "supervisor.getAllProcessInfo", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]ports.ProcessInfo, len(raw))
	for i, p := range raw {
		out[i] = toProcessInfo(p)
	}
	return out, nil
}

// Restart stops then starts the process, bounded by timeout. A nil return
// means the supervisor observed the process leave and re-enter RUNNING within
// the deadline. It does not mean the process's logic is healthy.
func (c *Client) Restart(ctx context.Context, name string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Info("restarting process", "process", name, "timeout", timeout)

	var stopped bool
	if err := c.call(ctx, "supervisor.stopProcess", name, &stopped); err != nil {
		if code, ok := faultCode(err); !ok || code != faultNotRunning {
			return c.restartError(ctx, name, fmt.Errorf("stop failed: %w", err))
		}
		// Not running is fine; restart proceeds to start.
	}

	var started bool
	if err := c.call(ctx, "supervisor.startProcess", name, &started); err != nil {
		if code, ok := faultCode(err); !ok || code != faultAlreadyStarted {
			return c.restartError(ctx, name, fmt.Errorf("start failed: %w", err))
		}
	}

	// startProcess with the default wait semantics returns once the process
	// is RUNNING, but confirm: supervisord reports success for processes that
	// immediately enter BACKOFF under some configurations.
	state, err := c.Status(ctx, name)
	if err != nil {
		return c.restartError(ctx, name, fmt.Errorf("post-start status failed: %w", err))
	}
	if state != ports.ProcessRunning {
		return c.restartError(ctx, name, fmt.Errorf("process is %s after start", state))
	}
	c.logger.Info("process restarted", "process", name)
	return nil
}

func (c *Client) restartError(ctx context.Context, name string, cause error) error {
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded)
	c.logger.Error("restart failed", "process", name, "timeout", timedOut, "error", cause)
	return &domain.RestartError{Process: name, Timeout: timedOut, Err: cause}
}

// TailStderr returns the last length bytes of the process's stderr log.
func (c *Client) TailStderr(ctx context.Context, name string, length int) (string, error) {
	// Returns [log, offset, overflow].
	var result []any
	args := []any{name, -length, length}
	if err := c.call(ctx, "supervisor.tailProcessStderrLog", args, &result); err != nil {
		return "", err
	}
	if len(result) == 0 {
		return "", nil
	}
	log, _ := result[0].(string)
	return log, nil
}

func toProcessInfo(raw processInfo) ports.ProcessInfo {
	info := ports.ProcessInfo{
		Name:        raw.Name,
		RawState:    raw.StateName,
		Description: raw.Description,
		PID:         raw.PID,
	}
	if raw.Start > 0 {
		info.StartedAt = time.Unix(raw.Start, 0)
	}
	switch raw.State {
	case stateRunning:
		info.State = ports.ProcessRunning
	case stateStopped, stateExited, stateFatal, stateBackoff, stateStopping, stateStarting:
		info.State = ports.ProcessStopped
	default:
		info.State = ports.ProcessUnknown
	}
	return info
}
