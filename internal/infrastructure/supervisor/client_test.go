package supervisor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
)

var methodNamePattern = regexp.MustCompile(`<methodName>([^<]+)</methodName>`)

// fakeSupervisor answers XML-RPC calls from canned responses keyed by method
// name. Calls records the invocation order.
type fakeSupervisor struct {
	responses map[string][]string
	calls     []string
}

func (f *fakeSupervisor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	match := methodNamePattern.FindSubmatch(body)
	if match == nil {
		http.Error(w, "no method name", http.StatusBadRequest)
		return
	}
	method := string(match[1])
	f.calls = append(f.calls, method)

	queue := f.responses[method]
	if len(queue) == 0 {
		http.Error(w, "unexpected method "+method, http.StatusBadRequest)
		return
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[method] = queue[1:]
	}
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, resp)
}

func boolResponse(v bool) string {
	b := "0"
	if v {
		b = "1"
	}
	return `<?xml version="1.0"?><methodResponse><params><param><value><boolean>` + b + `</boolean></value></param></params></methodResponse>`
}

func faultResponse(code int, msg string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><methodResponse><fault><value><struct>
<member><name>faultCode</name><value><int>%d</int></value></member>
<member><name>faultString</name><value><string>%s</string></value></member>
</struct></value></fault></methodResponse>`, code, msg)
}

func processInfoResponse(name, stateName string, state int) string {
	return fmt.Sprintf(`<?xml version="1.0"?><methodResponse><params><param><value><struct>
<member><name>name</name><value><string>%s</string></value></member>
<member><name>group</name><value><string>%s</string></value></member>
<member><name>state</name><value><int>%d</int></value></member>
<member><name>statename</name><value><string>%s</string></value></member>
<member><name>description</name><value><string>pid 4242, uptime 0:01:00</string></value></member>
<member><name>start</name><value><int>1700000000</int></value></member>
<member><name>pid</name><value><int>4242</int></value></member>
</struct></value></param></params></methodResponse>`, name, name, state, stateName)
}

func tailResponse(log string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><methodResponse><params><param><value><array><data>
<value><string>%s</string></value>
<value><int>0</int></value>
<value><boolean>0</boolean></value>
</data></array></value></param></params></methodResponse>`, log)
}

func newTestClient(t *testing.T, fake *fakeSupervisor) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := New(host, port, hclog.NewNullLogger())
	require.NoError(t, err)
	return client, srv
}

func TestClient_Info(t *testing.T) {
	fake := &fakeSupervisor{responses: map[string][]string{
		"supervisor.getProcessInfo": {processInfoResponse("scoreboard", "RUNNING", stateRunning)},
	}}
	client, _ := newTestClient(t, fake)

	info, err := client.Info(context.Background(), "scoreboard")
	require.NoError(t, err)
	assert.Equal(t, "scoreboard", info.Name)
	assert.Equal(t, ports.ProcessRunning, info.State)
	assert.Equal(t, "RUNNING", info.RawState)
	assert.Equal(t, 4242, info.PID)
	assert.Equal(t, time.Unix(1700000000, 0), info.StartedAt)
}

func TestClient_StatusMapsStates(t *testing.T) {
	tests := []struct {
		name      string
		stateName string
		state     int
		want      ports.ProcessState
	}{
		{name: "running", stateName: "RUNNING", state: stateRunning, want: ports.ProcessRunning},
		{name: "stopped", stateName: "STOPPED", state: stateStopped, want: ports.ProcessStopped},
		{name: "fatal", stateName: "FATAL", state: stateFatal, want: ports.ProcessStopped},
		{name: "backoff", stateName: "BACKOFF", state: stateBackoff, want: ports.ProcessStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSupervisor{responses: map[string][]string{
				"supervisor.getProcessInfo": {processInfoResponse("scoreboard", tt.stateName, tt.state)},
			}}
			client, _ := newTestClient(t, fake)

			state, err := client.Status(context.Background(), "scoreboard")
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestClient_Restart(t *testing.T) {
	t.Run("stop start confirm", func(t *testing.T) {
		fake := &fakeSupervisor{responses: map[string][]string{
			"supervisor.stopProcess":    {boolResponse(true)},
			"supervisor.startProcess":   {boolResponse(true)},
			"supervisor.getProcessInfo": {processInfoResponse("scoreboard", "RUNNING", stateRunning)},
		}}
		client, _ := newTestClient(t, fake)

		err := client.Restart(context.Background(), "scoreboard", 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"supervisor.stopProcess",
			"supervisor.startProcess",
			"supervisor.getProcessInfo",
		}, fake.calls)
	})

	t.Run("tolerates stopping an already stopped process", func(t *testing.T) {
		fake := &fakeSupervisor{responses: map[string][]string{
			"supervisor.stopProcess":    {faultResponse(faultNotRunning, "NOT_RUNNING")},
			"supervisor.startProcess":   {boolResponse(true)},
			"supervisor.getProcessInfo": {processInfoResponse("scoreboard", "RUNNING", stateRunning)},
		}}
		client, _ := newTestClient(t, fake)

		assert.NoError(t, client.Restart(context.Background(), "scoreboard", 5*time.Second))
	})

	t.Run("tolerates already started", func(t *testing.T) {
		fake := &fakeSupervisor{responses: map[string][]string{
			"supervisor.stopProcess":    {boolResponse(true)},
			"supervisor.startProcess":   {faultResponse(faultAlreadyStarted, "ALREADY_STARTED")},
			"supervisor.getProcessInfo": {processInfoResponse("scoreboard", "RUNNING", stateRunning)},
		}}
		client, _ := newTestClient(t, fake)

		assert.NoError(t, client.Restart(context.Background(), "scoreboard", 5*time.Second))
	})

	t.Run("other stop fault fails the restart", func(t *testing.T) {
		fake := &fakeSupervisor{responses: map[string][]string{
			"supervisor.stopProcess": {faultResponse(10, "BAD_NAME")},
		}}
		client, _ := newTestClient(t, fake)

		err := client.Restart(context.Background(), "scoreboard", 5*time.Second)
		var rerr *domain.RestartError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "scoreboard", rerr.Process)
		assert.False(t, rerr.Timeout)
	})

	t.Run("process not running after start", func(t *testing.T) {
		fake := &fakeSupervisor{responses: map[string][]string{
			"supervisor.stopProcess":    {boolResponse(true)},
			"supervisor.startProcess":   {boolResponse(true)},
			"supervisor.getProcessInfo": {processInfoResponse("scoreboard", "FATAL", stateFatal)},
		}}
		client, _ := newTestClient(t, fake)

		err := client.Restart(context.Background(), "scoreboard", 5*time.Second)
		var rerr *domain.RestartError
		require.ErrorAs(t, err, &rerr)
		assert.Contains(t, rerr.Error(), "after start")
	})
}

func TestClient_TailStderr(t *testing.T) {
	fake := &fakeSupervisor{responses: map[string][]string{
		"supervisor.tailProcessStderrLog": {tailResponse("boom: traceback")},
	}}
	client, _ := newTestClient(t, fake)

	log, err := client.TailStderr(context.Background(), "scoreboard", 4096)
	require.NoError(t, err)
	assert.Equal(t, "boom: traceback", log)
}

func TestClient_UnreachableDaemon(t *testing.T) {
	fake := &fakeSupervisor{responses: map[string][]string{}}
	client, srv := newTestClient(t, fake)
	srv.Close()

	_, err := client.Info(context.Background(), "scoreboard")
	assert.ErrorIs(t, err, domain.ErrSupervisorUnreachable)
	assert.False(t, client.Reachable())
}

func TestClient_Reachable(t *testing.T) {
	fake := &fakeSupervisor{responses: map[string][]string{}}
	client, _ := newTestClient(t, fake)
	assert.True(t, client.Reachable())
}
