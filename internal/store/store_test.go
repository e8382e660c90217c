package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(id string, createdAt time.Time) *Job {
	return &Job{
		ID:        id,
		Mode:      "silence",
		Input:     "/videos/raw.mp4",
		Status:    JobStatusQueued,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	s := openTestStore(t)

	tables := []string{"jobs", "_migrations"}
	for _, table := range tables {
		var name string
		err := s.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_WALEnabled(t *testing.T) {
	s := openTestStore(t)

	var journalMode string
	if err := s.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 1 {
		t.Errorf("migration count = %d, want 1", count)
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	now := time.Now().UTC()
	if err := s1.CreateJob(ctx, testJob("job-1", now)); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s1.UpdateJobStatus(ctx, "job-1", JobStatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()

	j, err := s2.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j.Status != JobStatusFailed {
		t.Errorf("status = %s, want %s", j.Status, JobStatusFailed)
	}
	if j.Error != "interrupted by restart" {
		t.Errorf("error = %q, want 'interrupted by restart'", j.Error)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	if err := s.CreateJob(ctx, testJob("job-1", created)); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	j, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j.Mode != "silence" || j.Input != "/videos/raw.mp4" {
		t.Errorf("job = %+v, fields did not round-trip", j)
	}
	if j.Status != JobStatusQueued {
		t.Errorf("status = %s, want %s", j.Status, JobStatusQueued)
	}
	if !j.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", j.CreatedAt, created)
	}

	if err := s.UpdateJobStatus(ctx, "job-1", JobStatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	if err := s.UpdateJobProgress(ctx, "job-1", 0.4, "transcribing"); err != nil {
		t.Fatalf("UpdateJobProgress() error = %v", err)
	}

	j, err = s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j.Status != JobStatusRunning || j.Progress != 0.4 || j.Message != "transcribing" {
		t.Errorf("job after progress = %+v", j)
	}

	if err := s.FinishJob(ctx, "job-1", "out/raw-cut.mp4"); err != nil {
		t.Fatalf("FinishJob() error = %v", err)
	}

	j, err = s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j.Status != JobStatusSucceeded {
		t.Errorf("status = %s, want %s", j.Status, JobStatusSucceeded)
	}
	if j.Progress != 1 {
		t.Errorf("progress = %v, want 1", j.Progress)
	}
	if j.Artifact != "out/raw-cut.mp4" {
		t.Errorf("artifact = %q, want out/raw-cut.mp4", j.Artifact)
	}
}

func TestGetJob_Missing(t *testing.T) {
	s := openTestStore(t)

	j, err := s.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j != nil {
		t.Errorf("GetJob() = %+v, want nil for missing job", j)
	}
}

func TestListJobs_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		if err := s.CreateJob(ctx, testJob(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateJob(%s) error = %v", id, err)
		}
	}

	jobs, err := s.ListJobs(ctx, 2)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "job-c" || jobs[1].ID != "job-b" {
		t.Errorf("jobs = [%s %s], want newest first [job-c job-b]", jobs[0].ID, jobs[1].ID)
	}
}
