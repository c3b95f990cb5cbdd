package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
	"github.com/MikeSquared-Agency/Prioritizer/internal/ranking"
)

type published struct {
	subject string
	data    interface{}
}

type mockClient struct {
	published []published
	handlers  map[string]func(string, []byte)
}

func (m *mockClient) Publish(subject string, data interface{}) error {
	m.published = append(m.published, published{subject, data})
	return nil
}

func (m *mockClient) Subscribe(subject string, handler func(string, []byte)) error {
	if m.handlers == nil {
		m.handlers = make(map[string]func(string, []byte))
	}
	m.handlers[subject] = handler
	return nil
}

func (m *mockClient) Close() {}

func TestSubjects(t *testing.T) {
	if got := SubjectRunCompleted("abc"); got != "prioritizer.run.abc.completed" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := SubjectRunFailed("abc"); got != "prioritizer.run.abc.failed" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestStreamSubjects(t *testing.T) {
	want := []string{"prioritizer.run.*.completed", "prioritizer.run.*.failed"}
	got := StreamSubjects()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected %v, got %v", want, got)
	}
	if durable(SubjectRunRequest) {
		t.Error("run requests must not be retained")
	}
	if !durable(SubjectRunCompleted("abc")) {
		t.Error("completed events must be retained")
	}
}

func TestPublisherSave(t *testing.T) {
	c := &mockClient{}
	res := &pipeline.Result{
		ID:   uuid.New(),
		Name: "fleet",
		SummedAndRanked: []ranking.Ranked{
			{Option: "o2", View: model.OverallView, Scenario: "s1", Rank: 1},
			{Option: "o1", View: "alice", Scenario: "s1", Rank: 1},
		},
		Exclusions: 1,
		Duration:   2 * time.Second,
	}
	if err := (Publisher{Client: c}).Save(context.Background(), res); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(c.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(c.published))
	}
	if c.published[0].subject != SubjectRunCompleted(res.ID.String()) {
		t.Errorf("unexpected subject %s", c.published[0].subject)
	}
	ev := c.published[0].data.(RunCompletedEvent)
	if ev.Top["s1"] != "o2" || ev.Exclusions != 1 || ev.DurationMs != 2000 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestPublisherFailed(t *testing.T) {
	c := &mockClient{}
	if err := (Publisher{Client: c}).Failed("r1", "fleet", errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	ev := c.published[0].data.(RunFailedEvent)
	if c.published[0].subject != "prioritizer.run.r1.failed" || ev.Error != "boom" {
		t.Errorf("unexpected event %s %+v", c.published[0].subject, ev)
	}
}

func TestListenRunRequests(t *testing.T) {
	c := &mockClient{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var got []RunRequestEvent
	err := ListenRunRequests(c, time.Second, logger, func(ctx context.Context, req RunRequestEvent) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the run context")
		}
		got = append(got, req)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	handler := c.handlers[SubjectRunRequest]
	if handler == nil {
		t.Fatal("expected subscription on run request subject")
	}

	payload, _ := json.Marshal(RunRequestEvent{
		Input:  pipeline.Input{Name: "fleet", Options: []model.Option{"o1"}},
		Source: "test",
	})
	handler(SubjectRunRequest, payload)
	handler(SubjectRunRequest, []byte("{not json"))

	if len(got) != 1 {
		t.Fatalf("expected 1 decoded request, got %d", len(got))
	}
	if got[0].Input.Name != "fleet" || got[0].Params != nil {
		t.Errorf("unexpected request %+v", got[0])
	}
}
