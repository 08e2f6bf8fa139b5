package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/example/attendgate/internal/auth"
	"github.com/example/attendgate/internal/gateway"
	"github.com/example/attendgate/internal/observability"
	"github.com/example/attendgate/internal/persistence"
	"github.com/example/attendgate/internal/protocol"
	"github.com/example/attendgate/pkg/correlator"
	"github.com/example/attendgate/pkg/logging"
	"github.com/example/attendgate/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
)

const testSecret = "test-secret"

type testServer struct {
	gw  *gateway.Gateway
	url string
	svc *auth.Service
}

func newTestServer(t *testing.T, repo persistence.Repository) *testServer {
	t.Helper()
	logger := logging.Discard()

	var wg sync.WaitGroup
	gw := gateway.New(
		logger,
		auth.NewJWTVerifier(testSecret),
		gateway.NewInMemoryRegistry(logger),
		gateway.RepositoryHandlers(repo),
		observability.NewMetrics(prometheus.NewRegistry()),
		transport.ConnectionConfig{ReadTimeout: time.Minute},
		&wg,
	)

	srv := httptest.NewServer(http.HandlerFunc(gw.Accept))
	t.Cleanup(srv.Close)

	return &testServer{
		gw:  gw,
		url: "ws" + strings.TrimPrefix(srv.URL, "http"),
		svc: auth.NewService(&fakeRepo{}, testSecret, time.Hour, logger),
	}
}

func (ts *testServer) token(t *testing.T, identity string) string {
	t.Helper()
	token, err := ts.svc.IssueToken(identity)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return token
}

func waitForEvent(t *testing.T, client *correlator.Client, eventType string) correlator.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event, ok := <-client.Events():
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", eventType)
			}
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestAuthenticateAndPullDepartments(t *testing.T) {
	repo := &fakeRepo{departments: []persistence.Department{{ID: 1, Name: "Engineering"}}}
	ts := newTestServer(t, repo)

	client := correlator.Dial(context.Background(), ts.url, ts.token(t, "viewer@example.com"), logging.Discard(), correlator.Options{})
	defer client.Close()

	// Issued while still connecting; the correlator queues it behind AUTH.
	resultCh, err := client.SendRequest(protocol.TypeGetDepartments, nil)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	waitForEvent(t, client, protocol.TypeAuthSuccess)

	select {
	case result := <-resultCh:
		if result.Err != nil {
			t.Fatalf("request rejected: %v", result.Err)
		}
		if name := gjson.GetBytes(result.Data, "0.name").String(); name != "Engineering" {
			t.Errorf("unexpected response data: %s", result.Data)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestInvalidTokenGetsAuthFailedThenPolicyClose(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, ts.url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"AUTH","token":"garbage"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, frame, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("expected an AUTH_FAILED frame, got read error %v", err)
	}
	if typ := gjson.GetBytes(frame, "type").String(); typ != protocol.TypeAuthFailed {
		t.Fatalf("expected AUTH_FAILED, got %s", frame)
	}

	// The transport must now close with a policy-violation code.
	_, _, err = conn.Read(ctx)
	if err == nil {
		t.Fatal("expected the connection to be closed after AUTH_FAILED")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Errorf("expected policy violation close status, got %v (%v)", status, err)
	}
}

func TestAuthAfterFailureIsDiscarded(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, ts.url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.CloseNow()

	// A failed handshake followed immediately by valid credentials. The
	// second frame lands while the transport is still tearing down and
	// must not be processed.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"AUTH","token":"garbage"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	valid := `{"type":"AUTH","token":"` + ts.token(t, "sneaky@example.com") + `"}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(valid)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, frame, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("expected an AUTH_FAILED frame, got read error %v", err)
	}
	if typ := gjson.GetBytes(frame, "type").String(); typ != protocol.TypeAuthFailed {
		t.Fatalf("expected AUTH_FAILED, got %s", frame)
	}

	// Drain until the server closes; no AUTH_SUCCESS may appear.
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if typ := gjson.GetBytes(frame, "type").String(); typ == protocol.TypeAuthSuccess {
			t.Fatalf("session authenticated after AUTH_FAILED: %s", frame)
		}
	}
}

func TestNonAuthMessageBeforeAuthCloses(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, ts.url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"GET_DEPARTMENTS","requestId":"r1"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, frame, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("expected an ERROR frame, got read error %v", err)
	}
	if typ := gjson.GetBytes(frame, "type").String(); typ != protocol.TypeError {
		t.Fatalf("expected ERROR, got %s", frame)
	}
	if msg := gjson.GetBytes(frame, "message").String(); msg != "authentication required" {
		t.Errorf("unexpected error message %q", msg)
	}

	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatal("expected the connection to be closed")
	}
}

func TestUnknownRequestTypeKeepsConnectionOpen(t *testing.T) {
	repo := &fakeRepo{departments: []persistence.Department{{ID: 1, Name: "Engineering"}}}
	ts := newTestServer(t, repo)

	client := correlator.Dial(context.Background(), ts.url, ts.token(t, "viewer@example.com"), logging.Discard(), correlator.Options{})
	defer client.Close()
	waitForEvent(t, client, protocol.TypeAuthSuccess)

	resultCh, err := client.SendRequest("GET_NONSENSE", nil)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	result := <-resultCh
	if result.Err == nil || !strings.Contains(result.Err.Error(), "unknown request type") {
		t.Fatalf("expected an unknown-request-type error, got %v", result.Err)
	}

	// The connection survives and serves the next request.
	resultCh, err = client.SendRequest(protocol.TypeGetDepartments, nil)
	if err != nil {
		t.Fatalf("follow-up SendRequest failed: %v", err)
	}
	if result := <-resultCh; result.Err != nil {
		t.Fatalf("follow-up request rejected: %v", result.Err)
	}
}

func TestValidationFailureYieldsErrorResponse(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{})

	client := correlator.Dial(context.Background(), ts.url, ts.token(t, "viewer@example.com"), logging.Discard(), correlator.Options{})
	defer client.Close()
	waitForEvent(t, client, protocol.TypeAuthSuccess)

	resultCh, err := client.SendRequest(protocol.TypeGetEmployeesAtDate, map[string]string{})
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	result := <-resultCh
	if result.Err == nil || !strings.Contains(result.Err.Error(), "date is required") {
		t.Fatalf("expected a validation error, got %v", result.Err)
	}
}

func TestBroadcastReachesAllAuthenticatedViewers(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{})

	clients := make([]*correlator.Client, 0, 2)
	for _, identity := range []string{"alice@example.com", "bob@example.com"} {
		client := correlator.Dial(context.Background(), ts.url, ts.token(t, identity), logging.Discard(), correlator.Options{})
		defer client.Close()
		waitForEvent(t, client, protocol.TypeAuthSuccess)
		clients = append(clients, client)
	}

	ts.gw.Broadcast(protocol.PresenceUpdate{
		Status:   "late",
		Employee: persistence.Employee{ID: 7, FirstName: "Nadia", LastName: "Karim"},
	})

	for i, client := range clients {
		event := waitForEvent(t, client, protocol.TypeEmployeePresenceUpdate)
		if status := gjson.GetBytes(event.Payload, "status").String(); status != "late" {
			t.Errorf("client %d: unexpected payload %s", i, event.Payload)
		}
	}
}
