package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/registry"
)

const (
	alice domain.Identity = "con1alice"
	bob   domain.Identity = "con1bob"
	carol domain.Identity = "con1carol"
)

type mockCommunityRepo struct {
	records   []domain.Community
	commitErr error
	committed []registry.Receipt
	events    map[uint64][]domain.Event
}

func (m *mockCommunityRepo) LoadAll(ctx context.Context) ([]domain.Community, error) {
	return m.records, nil
}

func (m *mockCommunityRepo) Commit(ctx context.Context, receipt registry.Receipt) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = append(m.committed, receipt)
	if m.events == nil {
		m.events = make(map[uint64][]domain.Event)
	}
	for _, e := range receipt.Events {
		m.events[e.CommunityID] = append(m.events[e.CommunityID], e)
	}
	return nil
}

func (m *mockCommunityRepo) History(ctx context.Context, communityID uint64) ([]domain.Event, error) {
	return m.events[communityID], nil
}

type mockSignal struct {
	published []concrnt.Event
	err       error
}

func (m *mockSignal) Publish(ctx context.Context, channel string, event concrnt.Event) error {
	m.published = append(m.published, event)
	return m.err
}

type mockMetrics struct {
	observed []string
}

func (m *mockMetrics) ObserveOperation(operation, result string) {
	m.observed = append(m.observed, operation+":"+result)
}

func as(id domain.Identity) context.Context {
	return domain.WithRequester(context.Background(), id)
}

func setup() (*CommunityUsecase, *mockCommunityRepo, *mockSignal, *mockMetrics) {
	repo := &mockCommunityRepo{}
	signal := &mockSignal{}
	metrics := &mockMetrics{}
	return NewCommunityUsecase(registry.New(), repo, signal, metrics), repo, signal, metrics
}

func TestCreateCommunity(t *testing.T) {
	uc, repo, signal, metrics := setup()

	community, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: 1, Name: "one", Address: "addr"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	expected := domain.Community{ID: 1, Name: "one", Address: "addr", Owner: alice, Councils: []domain.Identity{alice}}
	if diff := cmp.Diff(expected, community); diff != "" {
		t.Fatalf("unexpected community (-want +got):\n%s", diff)
	}

	if len(repo.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(repo.committed))
	}

	if len(signal.published) != 2 {
		t.Fatalf("expected global and community publish, got %d", len(signal.published))
	}
	if signal.published[0].Channel != concrnt.GlobalCommunityChannel || signal.published[1].Channel != "community/1" {
		t.Fatalf("unexpected channels %s %s", signal.published[0].Channel, signal.published[1].Channel)
	}

	var payload domain.Event
	if err := json.Unmarshal(signal.published[0].Payload, &payload); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if payload.Type != domain.EventCommunityCreated || payload.Owner != alice {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if diff := cmp.Diff([]string{"create_community:ok"}, metrics.observed); diff != "" {
		t.Fatalf("unexpected metrics (-want +got):\n%s", diff)
	}
}

func TestCreateCommunityRequiresRequester(t *testing.T) {
	uc, repo, _, metrics := setup()

	_, err := uc.CreateCommunity(context.Background(), CreateCommunityInput{CommunityID: 1})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if len(repo.committed) != 0 {
		t.Fatalf("nothing should be committed")
	}
	if metrics.observed[0] != "create_community:rejected" {
		t.Fatalf("unexpected metric %s", metrics.observed[0])
	}
}

func TestCreateCommunityRejectsOutOfRangeID(t *testing.T) {
	uc, repo, _, metrics := setup()

	_, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: domain.MaxCommunityID + 1})
	if !errors.Is(err, domain.ErrInvalidCommunityID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if len(repo.committed) != 0 || uc.LatestCommunityID(context.Background()) != 0 {
		t.Fatalf("out of range id must not reach the registry")
	}
	if metrics.observed[0] != "create_community:rejected" {
		t.Fatalf("unexpected metric %s", metrics.observed[0])
	}

	if _, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: domain.MaxCommunityID}); err != nil {
		t.Fatalf("largest storable id should be accepted: %v", err)
	}
}

func TestCreateCommunityDuplicate(t *testing.T) {
	uc, _, signal, _ := setup()

	if _, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: 1, Name: "one"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err := uc.CreateCommunity(as(bob), CreateCommunityInput{CommunityID: 1, Name: "other"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if len(signal.published) != 2 {
		t.Fatalf("rejected call must not publish, got %d events", len(signal.published))
	}

	community, err := uc.GetCommunity(context.Background(), 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if community.Owner != alice || community.Name != "one" {
		t.Fatalf("record was overwritten: %+v", community)
	}
}

func TestCreateCouncilForCommunity(t *testing.T) {
	uc, _, signal, _ := setup()

	if _, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: 3, Name: "three"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	community, err := uc.CreateCouncilForCommunity(as(alice), 3, []domain.Identity{bob, carol})
	if err != nil {
		t.Fatalf("council failed: %v", err)
	}
	if diff := cmp.Diff([]domain.Identity{bob, carol, alice}, community.Councils); diff != "" {
		t.Fatalf("unexpected councils (-want +got):\n%s", diff)
	}

	last := signal.published[len(signal.published)-1]
	if last.Type != string(domain.EventCouncilChanged) || last.Channel != "community/3" {
		t.Fatalf("unexpected event %+v", last)
	}

	history, err := uc.History(context.Background(), 3)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 || history[1].Type != domain.EventCouncilChanged {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestCreateCouncilRejections(t *testing.T) {
	uc, _, _, metrics := setup()

	if _, err := uc.CreateCouncilForCommunity(as(alice), 9, nil); !errors.Is(err, domain.ErrNotExists) {
		t.Fatalf("expected not exists, got %v", err)
	}

	if _, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: 9}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err := uc.CreateCouncilForCommunity(as(bob), 9, []domain.Identity{bob})
	var notOwner domain.NotOwnerError
	if !errors.As(err, &notOwner) || notOwner.Caller != bob {
		t.Fatalf("expected not owner for bob, got %v", err)
	}

	if _, err := uc.CreateCouncilForCommunity(context.Background(), 9, nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	expected := []string{
		"create_council:rejected",
		"create_community:ok",
		"create_council:rejected",
		"create_council:rejected",
	}
	if diff := cmp.Diff(expected, metrics.observed); diff != "" {
		t.Fatalf("unexpected metrics (-want +got):\n%s", diff)
	}
}

func TestCommitFailureRollsBack(t *testing.T) {
	uc, repo, signal, metrics := setup()
	repo.commitErr = errors.New("database is down")

	_, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: 1})
	if err == nil {
		t.Fatalf("expected commit error")
	}

	if _, err := uc.GetCommunity(context.Background(), 1); !errors.Is(err, domain.ErrNotExists) {
		t.Fatalf("failed commit must not be visible, got %v", err)
	}
	if uc.LatestCommunityID(context.Background()) != 0 {
		t.Fatalf("latest id moved on failed commit")
	}
	if len(signal.published) != 0 {
		t.Fatalf("failed commit must not publish")
	}
	if metrics.observed[0] != "create_community:error" {
		t.Fatalf("unexpected metric %s", metrics.observed[0])
	}
}

func TestPublishFailureDoesNotFailCall(t *testing.T) {
	uc, _, signal, _ := setup()
	signal.err = errors.New("redis unavailable")

	if _, err := uc.CreateCommunity(as(alice), CreateCommunityInput{CommunityID: 1}); err != nil {
		t.Fatalf("publish errors must not surface: %v", err)
	}
	if _, err := uc.GetCommunity(context.Background(), 1); err != nil {
		t.Fatalf("community should be committed: %v", err)
	}
}

func TestRestoreAndQueries(t *testing.T) {
	uc, repo, _, _ := setup()
	repo.records = []domain.Community{
		{ID: 8, Name: "eight", Owner: bob, Councils: []domain.Identity{bob}},
		{ID: 2, Name: "two", Owner: alice, Councils: []domain.Identity{alice}},
	}

	if err := uc.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if got := uc.LatestCommunityID(context.Background()); got != 8 {
		t.Fatalf("expected latest 8, got %d", got)
	}

	list := uc.ListCommunities(context.Background())
	if len(list) != 2 || list[0].ID != 2 || list[1].ID != 8 {
		t.Fatalf("unexpected list %+v", list)
	}

	if _, err := uc.History(context.Background(), 100); !errors.Is(err, domain.ErrNotExists) {
		t.Fatalf("expected not exists for unknown history, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		ResultOK:       nil,
		ResultRejected: domain.NotOwnerError{CommunityID: 1, Caller: bob},
		ResultError:    errors.New("boom"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %s, want %s", err, got, want)
		}
	}
}
