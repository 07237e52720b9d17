package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/registry"
	"github.com/totegamma/concrnt-community/internal/usecase"
)

const requesterHeader = "X-Test-Requester"

type memoryRepo struct {
	events map[uint64][]domain.Event
}

func (m *memoryRepo) LoadAll(ctx context.Context) ([]domain.Community, error) { return nil, nil }

func (m *memoryRepo) Commit(ctx context.Context, receipt registry.Receipt) error {
	for _, e := range receipt.Events {
		m.events[e.CommunityID] = append(m.events[e.CommunityID], e)
	}
	return nil
}

func (m *memoryRepo) History(ctx context.Context, communityID uint64) ([]domain.Event, error) {
	return m.events[communityID], nil
}

// fakeRequester stands in for IdentifyIdentity.
func fakeRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id := c.Request().Header.Get(requesterHeader); id != "" {
			ctx := domain.WithRequester(c.Request().Context(), domain.Identity(id))
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

type fakeRealtime struct{}

// Realtime echoes one event per requested channel.
func (fakeRealtime) Realtime(ctx context.Context, request <-chan []string, response chan<- concrnt.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case channels, ok := <-request:
			if !ok {
				return
			}
			for _, channel := range channels {
				select {
				case response <- concrnt.Event{Channel: channel, Type: string(domain.EventCommunityCreated)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func setupEcho() *echo.Echo {
	uc := usecase.NewCommunityUsecase(registry.New(), &memoryRepo{events: map[uint64][]domain.Event{}}, nil, nil)
	handler := NewHandler(domain.Config{FQDN: "example.com", CSID: "ccs1node"}, uc, fakeRealtime{}, http.NotFoundHandler())

	e := echo.New()
	e.Use(fakeRequester)
	handler.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, requester, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if requester != "" {
		req.Header.Set(requesterHeader, requester)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode failed: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func TestHandleWellKnown(t *testing.T) {
	e := setupEcho()
	rec := do(e, http.MethodGet, "/.well-known/concrnt", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	wk := decode[concrnt.WellKnownConcrnt](t, rec)
	if wk.Domain != "example.com" || wk.CSID != "ccs1node" {
		t.Fatalf("unexpected wellknown %+v", wk)
	}
	if wk.Endpoints["net.concrnt.community.council"].Template != "/communities/{id}/council" {
		t.Fatalf("missing council endpoint: %+v", wk.Endpoints)
	}
}

func TestCommunityLifecycle(t *testing.T) {
	e := setupEcho()

	rec := do(e, http.MethodPost, "/communities", "con1alice", `{"id":4,"name":"four","address":"addr4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[concrnt.Community](t, rec)
	expected := concrnt.Community{URI: "cc://con1alice/community/4", ID: 4, Name: "four", Address: "addr4", Owner: "con1alice", Councils: []string{"con1alice"}}
	if diff := cmp.Diff(expected, created); diff != "" {
		t.Fatalf("unexpected community (-want +got):\n%s", diff)
	}

	rec = do(e, http.MethodPost, "/communities", "con1bob", `{"id":4,"name":"dup","address":"x"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409 got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/communities/4/council", "con1bob", `{"members":["con1bob"]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner: expected 403 got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/communities/4/council", "con1alice", `{"members":["con1bob","con1carol"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("council: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[concrnt.Community](t, rec)
	if diff := cmp.Diff([]string{"con1bob", "con1carol", "con1alice"}, updated.Councils); diff != "" {
		t.Fatalf("unexpected councils (-want +got):\n%s", diff)
	}

	rec = do(e, http.MethodGet, "/communities/4", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d", rec.Code)
	}
	if diff := cmp.Diff(updated, decode[concrnt.Community](t, rec)); diff != "" {
		t.Fatalf("get differs from council response (-want +got):\n%s", diff)
	}

	rec = do(e, http.MethodGet, "/communities/latest", "", "")
	if got := decode[concrnt.LatestCommunityID](t, rec); got.ID != 4 {
		t.Fatalf("expected latest 4 got %d", got.ID)
	}

	rec = do(e, http.MethodGet, "/communities", "", "")
	if list := decode[[]concrnt.Community](t, rec); len(list) != 1 || list[0].ID != 4 {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = do(e, http.MethodGet, "/communities/4/history", "", "")
	history := decode[[]domain.Event](t, rec)
	if len(history) != 2 || history[0].Type != domain.EventCommunityCreated || history[1].Type != domain.EventCouncilChanged {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestHandleErrors(t *testing.T) {
	e := setupEcho()

	cases := []struct {
		name      string
		method    string
		path      string
		requester string
		body      string
		status    int
	}{
		{"create without requester", http.MethodPost, "/communities", "", `{"id":1}`, http.StatusUnauthorized},
		{"council without requester", http.MethodPost, "/communities/1/council", "", `{"members":[]}`, http.StatusUnauthorized},
		{"council on missing community", http.MethodPost, "/communities/1/council", "con1alice", `{"members":[]}`, http.StatusNotFound},
		{"get missing community", http.MethodGet, "/communities/1", "", "", http.StatusNotFound},
		{"history of missing community", http.MethodGet, "/communities/1/history", "", "", http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/communities/abc", "", "", http.StatusBadRequest},
		{"negative id", http.MethodPost, "/communities/-1/council", "con1alice", `{"members":[]}`, http.StatusBadRequest},
		{"id beyond storage range", http.MethodPost, "/communities", "con1alice", `{"id":9223372036854775808}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/communities", "con1alice", `{"id":`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, tc.method, tc.path, tc.requester, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			body := decode[map[string]string](t, rec)
			if body["error"] == "" {
				t.Fatalf("expected error message, got %v", body)
			}
		})
	}
}

func TestHandleRealtime(t *testing.T) {
	e := setupEcho()
	server := httptest.NewServer(e)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(Request{Type: "listen", Channels: []string{"community", "community/1"}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []string
	for range 2 {
		var event concrnt.Event
		if err := ws.ReadJSON(&event); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		got = append(got, event.Channel)
	}

	if diff := cmp.Diff([]string{"community", "community/1"}, got); diff != "" {
		t.Fatalf("unexpected channels (-want +got):\n%s", diff)
	}
}
