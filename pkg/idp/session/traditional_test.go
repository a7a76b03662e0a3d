package session_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/ssokit/idp/pkg/idp/flow"
	"github.com/ssokit/idp/pkg/idp/mock"
	"github.com/ssokit/idp/pkg/idp/session"
)

// finishRecorder stands in for the facade's FinishLogout.
type finishRecorder struct {
	runs []*session.LogoutRun
}

func (f *finishRecorder) finish(_ context.Context, run *session.LogoutRun) (flow.Outcome, error) {
	f.runs = append(f.runs, run)
	return flow.Suspend(&flow.Suspension{RedirectURL: "/finished"}), nil
}

// buildToURL answers every build with a URL carrying the target entity
// id and the relay id, so the test can read both back out of the
// suspension.
func buildToURL(codec *mock.MockMessageCodec) {
	codec.EXPECT().
		BuildLogoutRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *session.Association, relayState string) (*session.TransportMessage, error) {
			return &session.TransportMessage{
				URL: fmt.Sprintf("https://%s/slo?relay=%s", a.SPEntityID, url.QueryEscape(relayState)),
			}, nil
		}).
		AnyTimes()
}

func parseHop(t *testing.T, outcome flow.Outcome) (entityID, relayID string) {
	t.Helper()
	if !outcome.Suspended() {
		t.Fatal("expected a suspended outcome")
	}
	parsed, err := url.Parse(outcome.Suspension().RedirectURL)
	if err != nil {
		t.Fatalf("invalid redirect %q: %v", outcome.Suspension().RedirectURL, err)
	}
	return parsed.Host, parsed.Query().Get("relay")
}

func newTraditionalSetup(t *testing.T) (*session.TraditionalHandler, *session.Registry, *mock.MockMessageCodec, *finishRecorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	codec := mock.NewMockMessageCodec(ctrl)
	registry := session.NewRegistry()
	finish := &finishRecorder{}
	handler := session.NewTraditionalHandler(newTestEngine(), registry, codec, finish.finish)
	return handler, registry, codec, finish
}

func newTestEngine() *flow.Engine {
	return flow.NewEngine(flow.NewMemoryStore(), "/error")
}

func TestTraditionalHandler_fullRun(t *testing.T) {
	handler, registry, codec, finish := newTraditionalSetup(t)
	buildToURL(codec)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		if err := registry.Add(newAssociation("s1", id, "sp-"+id)); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	outcome, err := handler.StartLogout(ctx, &session.LogoutRun{SessionID: "s1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// most recently associated SP first
	for _, want := range []string{"sp-a3", "sp-a2", "sp-a1"} {
		entityID, relayID := parseHop(t, outcome)
		if entityID != want {
			t.Fatalf("hop towards %s, want %s", entityID, want)
		}
		outcome, err = handler.HandleResponse(ctx, relayID, &session.LogoutResult{
			SPEntityID: entityID,
			RelayState: relayID,
			Success:    true,
		})
		if err != nil {
			t.Fatalf("response for %s failed: %v", want, err)
		}
	}

	if len(finish.runs) != 1 {
		t.Fatalf("finish called %d times", len(finish.runs))
	}
	if finish.runs[0].HadFailure {
		t.Errorf("clean run reported a failure: %v", finish.runs[0].Failures)
	}
	if registry.Count("s1") != 0 {
		t.Errorf("count = %d after the run", registry.Count("s1"))
	}
}

func TestTraditionalHandler_responseFailure(t *testing.T) {
	handler, registry, codec, finish := newTraditionalSetup(t)
	buildToURL(codec)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := registry.Add(newAssociation("s1", id, "sp-"+id)); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	outcome, err := handler.StartLogout(ctx, &session.LogoutRun{SessionID: "s1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, relayID := parseHop(t, outcome)

	// a negative response must not stop the run
	outcome, err = handler.HandleResponse(ctx, relayID, &session.LogoutResult{
		SPEntityID:  "sp-a2",
		Success:     false,
		ErrorDetail: "sp refused",
	})
	if err != nil {
		t.Fatalf("response failed: %v", err)
	}
	entityID, relayID := parseHop(t, outcome)
	if entityID != "sp-a1" {
		t.Fatalf("run stopped instead of continuing towards sp-a1, got %s", entityID)
	}

	if _, err = handler.HandleResponse(ctx, relayID, &session.LogoutResult{SPEntityID: "sp-a1", Success: true}); err != nil {
		t.Fatalf("response failed: %v", err)
	}

	if len(finish.runs) != 1 {
		t.Fatalf("finish called %d times", len(finish.runs))
	}
	run := finish.runs[0]
	if !run.HadFailure {
		t.Error("failure not recorded")
	}
	if err := run.Err(); err == nil {
		t.Error("aggregated error empty despite failure")
	}
	if registry.Count("s1") != 0 {
		t.Errorf("count = %d, every association must be terminated", registry.Count("s1"))
	}
}

func TestTraditionalHandler_buildFailure(t *testing.T) {
	handler, registry, codec, finish := newTraditionalSetup(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := registry.Add(newAssociation("s1", id, "sp-"+id)); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	// sp-a2 is broken, sp-a1 still gets its request
	codec.EXPECT().
		BuildLogoutRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *session.Association, relayState string) (*session.TransportMessage, error) {
			if a.SPEntityID == "sp-a2" {
				return nil, fmt.Errorf("no logout endpoint in metadata")
			}
			return &session.TransportMessage{
				URL: fmt.Sprintf("https://%s/slo?relay=%s", a.SPEntityID, url.QueryEscape(relayState)),
			}, nil
		}).
		AnyTimes()

	outcome, err := handler.StartLogout(ctx, &session.LogoutRun{SessionID: "s1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	entityID, relayID := parseHop(t, outcome)
	if entityID != "sp-a1" {
		t.Fatalf("hop towards %s, want sp-a1", entityID)
	}

	if _, err = handler.HandleResponse(ctx, relayID, &session.LogoutResult{SPEntityID: "sp-a1", Success: true}); err != nil {
		t.Fatalf("response failed: %v", err)
	}

	if len(finish.runs) != 1 {
		t.Fatalf("finish called %d times", len(finish.runs))
	}
	if !finish.runs[0].HadFailure {
		t.Error("build failure not recorded")
	}
	if registry.Count("s1") != 0 {
		t.Errorf("count = %d, the broken association must be terminated too", registry.Count("s1"))
	}
}

func TestTraditionalHandler_replayedResponse(t *testing.T) {
	handler, registry, codec, _ := newTraditionalSetup(t)
	buildToURL(codec)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := registry.Add(newAssociation("s1", id, "sp-"+id)); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	outcome, err := handler.StartLogout(ctx, &session.LogoutRun{SessionID: "s1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, relayID := parseHop(t, outcome)

	result := &session.LogoutResult{SPEntityID: "sp-a2", Success: true}
	outcome, err = handler.HandleResponse(ctx, relayID, result)
	if err != nil {
		t.Fatalf("response failed: %v", err)
	}
	firstHop, _ := parseHop(t, outcome)

	// a browser resubmitting the response converges to the same hop
	outcome, err = handler.HandleResponse(ctx, relayID, result)
	if err != nil {
		t.Fatalf("replayed response failed: %v", err)
	}
	replayHop, _ := parseHop(t, outcome)
	if replayHop != firstHop {
		t.Errorf("replay diverged: %s != %s", replayHop, firstHop)
	}
	if registry.Count("s1") != 1 {
		t.Errorf("count = %d, want 1", registry.Count("s1"))
	}
}

func TestTraditionalHandler_lostRelayState(t *testing.T) {
	handler, _, _, _ := newTraditionalSetup(t)

	_, err := handler.HandleResponse(context.Background(), "_unknown", &session.LogoutResult{Success: true})
	if !errors.Is(err, session.ErrLostRelayState) {
		t.Errorf("expected ErrLostRelayState, got %v", err)
	}
}

func TestTraditionalHandler_emptySession(t *testing.T) {
	handler, _, _, finish := newTraditionalSetup(t)

	outcome, err := handler.StartLogout(context.Background(), &session.LogoutRun{SessionID: "s1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !outcome.Suspended() || outcome.Suspension().RedirectURL != "/finished" {
		t.Errorf("expected the finish redirect, got %+v", outcome)
	}
	if len(finish.runs) != 1 {
		t.Errorf("finish called %d times", len(finish.runs))
	}
}
