package jobstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/terradash/terradash/pkg/tfexec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "terradash.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	j := &Job{
		UserID:       "user-1",
		Mode:         ModeTemplate,
		TemplateName: "vpc_basic",
		Status:       StatusQueued,
	}
	if err := s.Create(j); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if j.ID == "" {
		t.Fatalf("Create() did not assign an id")
	}

	got, err := s.Get(j.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("status mismatch: got=%q want=%q", got.Status, StatusQueued)
	}
	if got.TemplateName != "vpc_basic" {
		t.Fatalf("template_name not persisted: %q", got.TemplateName)
	}
	if got.FinishedAt != nil {
		t.Fatalf("finished_at should be nil before a terminal state")
	}
}

func TestStore_SavePersistsTerminalFields(t *testing.T) {
	s := newTestStore(t)

	j := &Job{UserID: "user-1", Mode: ModeTemplate, TemplateName: "vpc_basic", Status: StatusRunning}
	if err := s.Create(j); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	j.Status = StatusSuccess
	j.FinishedAt = &now
	j.LogFilePath = "/var/log/terradash/job_x.log"
	j.PrimaryOutput = "vpc-0abc"
	if err := j.SetOutputs(tfexec.Outputs{"vpc_id": {Value: "vpc-0abc"}}); err != nil {
		t.Fatalf("SetOutputs() error: %v", err)
	}
	if err := s.Save(j); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Get(j.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != StatusSuccess {
		t.Fatalf("status not saved: %q", got.Status)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(now) {
		t.Fatalf("finished_at not saved: %v", got.FinishedAt)
	}
	if got.PrimaryOutput != "vpc-0abc" {
		t.Fatalf("primary_output not saved: %q", got.PrimaryOutput)
	}
	outputs := got.Outputs()
	if outputs["vpc_id"].ValueString() != "vpc-0abc" {
		t.Fatalf("outputs not round-tripped: %v", outputs)
	}
}

func TestStore_GetUnknownJob(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_SaveUnknownJob(t *testing.T) {
	s := newTestStore(t)

	err := s.Save(&Job{ID: "ghost", Status: StatusFailed})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListByUserNewestFirst(t *testing.T) {
	s := newTestStore(t)

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	if err := s.Create(&Job{ID: "a", UserID: "u1", Mode: ModeTemplate, Status: StatusQueued, CreatedAt: t1}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := s.Create(&Job{ID: "b", UserID: "u1", Mode: ModeCustom, Status: StatusQueued, CreatedAt: t2}); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if err := s.Create(&Job{ID: "c", UserID: "u2", Mode: ModeCustom, Status: StatusQueued, CreatedAt: t2}); err != nil {
		t.Fatalf("Create c: %v", err)
	}

	got, err := s.ListByUser("u1")
	if err != nil {
		t.Fatalf("ListByUser() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected job count: %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected newest first, got %s,%s", got[0].ID, got[1].ID)
	}
}

func TestOutputs_EmptyAndUndecodable(t *testing.T) {
	j := &Job{}
	if len(j.Outputs()) != 0 {
		t.Fatalf("empty outputs_json should decode to empty mapping")
	}
	j.OutputsJSON = "{broken"
	if len(j.Outputs()) != 0 {
		t.Fatalf("undecodable outputs_json should degrade to empty mapping")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusQueued},
		{StatusQueued, StatusRunning},
		{StatusQueued, StatusFailed},
		{StatusRunning, StatusSuccess},
		{StatusRunning, StatusFailed},
		{StatusSuccess, StatusDestroyed},
		{StatusSuccess, StatusDestroyFailed},
		{StatusDestroyFailed, StatusDestroyed},
		{StatusDestroyFailed, StatusDestroyFailed},
	}
	for _, edge := range allowed {
		if !CanTransition(edge[0], edge[1]) {
			t.Fatalf("edge %s -> %s should be allowed", edge[0], edge[1])
		}
	}

	denied := [][2]Status{
		{StatusFailed, StatusRunning},
		{StatusSuccess, StatusRunning},
		{StatusDestroyed, StatusDestroyFailed},
		{StatusRunning, StatusQueued},
		{StatusFailed, StatusDestroyed},
	}
	for _, edge := range denied {
		if CanTransition(edge[0], edge[1]) {
			t.Fatalf("edge %s -> %s must be rejected", edge[0], edge[1])
		}
	}
}
