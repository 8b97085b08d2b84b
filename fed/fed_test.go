package fed

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/grid/meta"
	"github.com/rezsim/rez/session"
	"github.com/rezsim/rez/world"
)

type fakeGlue struct {
	resolveErr error
	createErr  error
	upgradeErr error
	dest       meta.RegionInfo
	seedCap    string
}

func (g *fakeGlue) ExpectUser(ctx context.Context, req ChildAgentRequest) error { return nil }
func (g *fakeGlue) LogoffUser(ctx context.Context, agentID uuid.UUID) error     { return nil }
func (g *fakeGlue) GridInstantMessage(ctx context.Context, fromID, toID uuid.UUID, message string) error {
	return nil
}
func (g *fakeGlue) LookupUser(ctx context.Context, agentID uuid.UUID) (Presence, error) {
	return Presence{}, nil
}
func (g *fakeGlue) UUIDToName(ctx context.Context, agentID uuid.UUID) (string, string, error) {
	return "", "", nil
}
func (g *fakeGlue) ResolveDestination(ctx context.Context, handle meta.Handle) (meta.RegionInfo, error) {
	return g.dest, g.resolveErr
}
func (g *fakeGlue) CreateChildAgent(ctx context.Context, dest meta.RegionInfo, req ChildAgentRequest) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.seedCap, nil
}
func (g *fakeGlue) UpgradeAgent(ctx context.Context, dest meta.RegionInfo, agentID uuid.UUID, req UpgradeAgentRequest) error {
	return g.upgradeErr
}

func newTestSession() *session.Session {
	return session.NewSession(uuid.New(), uuid.New(), 1, world.Vector3{})
}

func TestTeleportHappyPathReachesDoneAndSetsSeedCap(t *testing.T) {
	glue := &fakeGlue{seedCap: "http://dest/caps/abc"}
	sess := newTestSession()

	var stages []Stage
	var failed string
	TeleportToLocation(context.Background(), glue, sess, meta.NewHandle(1, 1), [3]float64{1, 2, 3}, [3]float64{0, 0, 1},
		func(s Stage) { stages = append(stages, s) },
		func(reason string) { failed = reason })

	if failed != "" {
		t.Fatalf("unexpected failure: %s", failed)
	}
	want := []Stage{StageResolving, StageSendingDest, StageCreatingChild, StageUpgrading, StageCompleting, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stage progression = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage[%d] = %v, want %v", i, stages[i], want[i])
		}
	}
	if sess.Flags&apc.FlagTeleportComplete == 0 {
		t.Fatalf("expected teleport-complete flag set")
	}
	if sess.State != session.StateLeaving {
		t.Fatalf("expected session in Leaving state after successful teleport, got %v", sess.State)
	}
}

func TestTeleportFailureDuringCreateChildInvokesFailOnce(t *testing.T) {
	glue := &fakeGlue{createErr: errBoom}
	sess := newTestSession()

	var failCount int
	var reason string
	TeleportToLocation(context.Background(), glue, sess, meta.NewHandle(1, 1), [3]float64{}, [3]float64{},
		func(s Stage) {},
		func(r string) { failCount++; reason = r })

	if failCount != 1 {
		t.Fatalf("expected exactly one failure callback, got %d", failCount)
	}
	if reason != errBoom.Error() {
		t.Fatalf("reason = %q, want %q", reason, errBoom.Error())
	}
}

func TestTeleportCancelViaSelfPointerNullingStopsFlowAsCancelled(t *testing.T) {
	glue := &fakeGlue{seedCap: "http://dest/caps/abc", resolveErr: nil}
	sess := newTestSession()

	d := &Descriptor{AgentID: sess.AgentID, Stage: StageResolving}
	d.selfPtr = sess.RegisterSelfPtr(selfPtrTeleport, d)
	d.Cancel(sess)

	var failed string
	runTeleport(context.Background(), glue, sess, d, func(ctx context.Context) (meta.RegionInfo, error) {
		return glue.dest, nil
	}, func(s Stage) {}, func(r string) { failed = r })

	if failed != "cancelled" {
		t.Fatalf("expected cancellation to report \"cancelled\", got %q", failed)
	}
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

func TestSurfaceExpectUserDispatch(t *testing.T) {
	var called bool
	s := &Surface{
		OnExpectUser: func(ctx context.Context, req ChildAgentRequest) error {
			called = true
			return nil
		},
	}
	body := `<?xml version="1.0"?><methodCall><methodName>expect_user</methodName><params>` +
		`<param><value><string>` + uuid.New().String() + `</string></value></param></params></methodCall>`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if !called {
		t.Fatalf("expected OnExpectUser to be invoked")
	}
	var resp methodResponse
	if err := xml.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fault != nil {
		t.Fatalf("unexpected fault: %+v", resp.Fault)
	}
}

func TestSurfaceUnknownMethodFaults(t *testing.T) {
	s := &Surface{}
	body := `<?xml version="1.0"?><methodCall><methodName>bogus_method</methodName><params></params></methodCall>`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	var resp methodResponse
	if err := xml.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fault == nil {
		t.Fatalf("expected a fault for an unknown method")
	}
}

func TestSurfaceUnmatchedPath404s(t *testing.T) {
	s := &Surface{}
	req := httptest.NewRequest(http.MethodGet, "/nonsense", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSurfaceCreateChildAgentPostsToAgentPath(t *testing.T) {
	agentID := uuid.New()
	var gotAgent uuid.UUID
	s := &Surface{
		OnCreateChildAgent: func(ctx context.Context, id uuid.UUID, body []byte) (string, error) {
			gotAgent = id
			return "http://seed/cap", nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/agent/"+agentID.String(), bytes.NewBufferString("payload"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if gotAgent != agentID {
		t.Fatalf("agent id = %v, want %v", gotAgent, agentID)
	}
	if w.Body.String() != "http://seed/cap" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestChildAgentTokenRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	agentID := uuid.New()
	tok, err := SignChildAgentToken(secret, agentID, "10.0.0.1:9000")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	gotAgent, origin, err := VerifyChildAgentToken(secret, tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotAgent != agentID {
		t.Fatalf("agent = %v, want %v", gotAgent, agentID)
	}
	if origin != "10.0.0.1:9000" {
		t.Fatalf("origin = %q", origin)
	}
}

func TestChildAgentTokenRejectsWrongSecret(t *testing.T) {
	tok, err := SignChildAgentToken([]byte("real-secret"), uuid.New(), "10.0.0.1:9000")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := VerifyChildAgentToken([]byte("wrong-secret"), tok); err == nil {
		t.Fatalf("expected verification to fail with the wrong secret")
	}
}

func TestSurfaceCreateChildAgentRejectsMissingToken(t *testing.T) {
	agentID := uuid.New()
	s := &Surface{
		TokenSecret: []byte("shared-secret"),
		OnCreateChildAgent: func(ctx context.Context, id uuid.UUID, body []byte) (string, error) {
			t.Fatalf("handler should not run without a valid token")
			return "", nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/agent/"+agentID.String(), bytes.NewBufferString("payload"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSurfaceCreateChildAgentAcceptsValidToken(t *testing.T) {
	secret := []byte("shared-secret")
	agentID := uuid.New()
	tok, err := SignChildAgentToken(secret, agentID, "10.0.0.1:9000")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var called bool
	s := &Surface{
		TokenSecret: secret,
		OnCreateChildAgent: func(ctx context.Context, id uuid.UUID, body []byte) (string, error) {
			called = true
			return "http://seed/cap", nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/agent/"+agentID.String(), bytes.NewBufferString("payload"))
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if !called {
		t.Fatalf("expected handler to run with a valid token")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSurfaceReleaseRequiresReleaseSuffix(t *testing.T) {
	agentID := uuid.New()
	s := &Surface{
		OnReleaseAgent: func(ctx context.Context, id uuid.UUID, handle meta.Handle) error { return nil },
	}
	req := httptest.NewRequest(http.MethodDelete, "/agent/"+agentID.String()+"/5", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without /release suffix", w.Code)
	}
}
