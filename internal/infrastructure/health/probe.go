// Package health implements the liveness probe the orchestrator polls after a
// restart. Restart success only proves the supervisor saw the process come
// back; the probe is what decides the new configuration actually works.
package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/go-hclog"

	"scorehub.io/cli/internal/core/ports"
)

// SupervisorProbe considers the target healthy when the supervisor reports it
// RUNNING and it has stayed up for at least MinUptime. A process that crashes
// on its new configuration flaps back through BACKOFF/EXITED and keeps
// resetting its start time, so the uptime gate catches crash loops that a
// point-in-time state check would miss.
type SupervisorProbe struct {
	controller ports.ProcessController
	process    string
	minUptime  time.Duration
	logger     hclog.Logger
}

var _ ports.HealthProbe = (*SupervisorProbe)(nil)

// NewSupervisorProbe builds a probe for one supervised process.
func NewSupervisorProbe(controller ports.ProcessController, process string, minUptime time.Duration, logger hclog.Logger) *SupervisorProbe {
	return &SupervisorProbe{
		controller: controller,
		process:    process,
		minUptime:  minUptime,
		logger:     logger.Named("health-probe"),
	}
}

// Probe returns nil when the process is running and past its minimum uptime.
func (p *SupervisorProbe) Probe(ctx context.Context) error {
	info, err := p.controller.Info(ctx, p.process)
	if err != nil {
		return err
	}
	if info.State != ports.ProcessRunning {
		return fmt.Errorf("process %q is %s (%s)", p.process, info.State, info.RawState)
	}
	if p.minUptime > 0 {
		uptime := time.Since(info.StartedAt)
		if uptime < p.minUptime {
			return fmt.Errorf("process %q up for %s, waiting for %s", p.process, uptime.Round(time.Millisecond), p.minUptime)
		}
	}
	p.logger.Debug("probe healthy", "process", p.process, "pid", info.PID)
	return nil
}

// TCPProbe considers the target healthy when its status endpoint accepts a
// TCP connection. Used in addition to the supervisor probe when the
// scoreboard exposes a status port.
type TCPProbe struct {
	addr    string
	timeout time.Duration
}

var _ ports.HealthProbe = (*TCPProbe)(nil)

// NewTCPProbe builds a probe dialing addr with the given per-attempt timeout.
func NewTCPProbe(addr string, timeout time.Duration) *TCPProbe {
	return &TCPProbe{addr: addr, timeout: timeout}
}

// Probe dials the status endpoint once.
func (p *TCPProbe) Probe(ctx context.Context) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("status endpoint %s not accepting connections: %w", p.addr, err)
	}
	conn.Close()
	return nil
}

// MultiProbe requires every member probe to pass.
type MultiProbe []ports.HealthProbe

var _ ports.HealthProbe = (MultiProbe)(nil)

// Probe runs the member probes in order, failing on the first unhealthy one.
func (m MultiProbe) Probe(ctx context.Context) error {
	for _, probe := range m {
		if err := probe.Probe(ctx); err != nil {
			return err
		}
	}
	return nil
}
