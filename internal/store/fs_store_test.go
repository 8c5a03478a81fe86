package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestSession creates a session with test data.
func createTestSession(id string) *Session {
	return &Session{
		ID: id,
		Config: FitSpec{
			Model:     "gauss",
			Optimizer: "mayfly",
			DataPath:  "spectrum.csv",
			RangeLow:  55,
			RangeHigh: 105,
			Iters:     200,
			PopSize:   30,
			Seed:      42,
		},
		Precision:      "float64",
		ParameterNames: []string{"scale", "sigma", "mean"},
		InitialParams:  []float64{120, 3, 80},
		FittedParams:   []float64{131.2, 2.71, 80.4},
		LowerBounds:    []float64{0, 0.1, 55},
		UpperBounds:    []float64{1e6, 50, 105},
		BestCost:       0.0234,
		InitialCost:    0.5621,
		RSquared:       0.997,
		Rounds:         3,
		Converged:      true,
		DataDigest:     0xdeadbeef,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	if store == nil {
		t.Fatal("Expected non-nil store")
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveSession(t *testing.T) {
	store, tempDir := setupTestStore(t)

	id := "test-fit-123"
	sess := createTestSession(id)

	if err := store.SaveSession(id, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "sessions", id, "session.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Session file was not created at %s", expectedPath)
	}

	tempPath := expectedPath + ".tmp"
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save: %s", tempPath)
	}
}

func TestSaveSession_EmptyID(t *testing.T) {
	store, _ := setupTestStore(t)
	sess := createTestSession("any-id")

	if err := store.SaveSession("", sess); err == nil {
		t.Fatal("Expected error for empty id")
	}
}

func TestSaveSession_NilSession(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveSession("test-fit", nil); err == nil {
		t.Fatal("Expected error for nil session")
	}
}

func TestSaveSession_InvalidSession(t *testing.T) {
	store, _ := setupTestStore(t)

	sess := createTestSession("bad-fit")
	sess.FittedParams = sess.FittedParams[:2] // length mismatch

	err := store.SaveSession("bad-fit", sess)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("Expected ValidationError, got %T: %v", err, err)
	}
}

func TestSaveSession_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	id := "test-fit-overwrite"
	sess1 := createTestSession(id)
	sess1.BestCost = 0.5

	sess2 := createTestSession(id)
	sess2.BestCost = 0.1

	if err := store.SaveSession(id, sess1); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.SaveSession(id, sess2); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadSession(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.BestCost != 0.1 {
		t.Errorf("Expected BestCost=0.1, got %f", loaded.BestCost)
	}
}

func TestLoadSession(t *testing.T) {
	store, _ := setupTestStore(t)

	id := "test-fit-load"
	original := createTestSession(id)

	if err := store.SaveSession(id, original); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := store.LoadSession(id)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}

	if loaded.ID != original.ID {
		t.Errorf("ID mismatch: expected %s, got %s", original.ID, loaded.ID)
	}
	if loaded.BestCost != original.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", original.BestCost, loaded.BestCost)
	}
	if loaded.DataDigest != original.DataDigest {
		t.Errorf("DataDigest mismatch: expected %x, got %x", original.DataDigest, loaded.DataDigest)
	}
	if len(loaded.FittedParams) != len(original.FittedParams) {
		t.Errorf("FittedParams length mismatch: expected %d, got %d", len(original.FittedParams), len(loaded.FittedParams))
	}
	if loaded.Config.Model != original.Config.Model {
		t.Errorf("Config.Model mismatch: expected %s, got %s", original.Config.Model, loaded.Config.Model)
	}
	if loaded.Precision != original.Precision {
		t.Errorf("Precision mismatch: expected %s, got %s", original.Precision, loaded.Precision)
	}
}

func TestLoadSession_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadSession("nonexistent-fit")
	if err == nil {
		t.Fatal("Expected error for nonexistent session")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %T: %v", err, err)
	}
}

func TestLoadSession_EmptyID(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.LoadSession(""); err == nil {
		t.Fatal("Expected error for empty id")
	}
}

func TestListSessions_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty list, got %d sessions", len(infos))
	}
}

func TestListSessions_Multiple(t *testing.T) {
	store, _ := setupTestStore(t)

	ids := []string{"fit-1", "fit-2", "fit-3"}
	for _, id := range ids {
		if err := store.SaveSession(id, createTestSession(id)); err != nil {
			t.Fatalf("Failed to save session %s: %v", id, err)
		}
	}

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != len(ids) {
		t.Errorf("Expected %d sessions, got %d", len(ids), len(infos))
	}

	found := make(map[string]bool)
	for _, info := range infos {
		found[info.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			t.Errorf("Session %s not found in list", id)
		}
	}
}

func TestListSessions_ReportsArchivedTraces(t *testing.T) {
	store, _ := setupTestStore(t)

	id := "fit-archived"
	if err := store.SaveSession(id, createTestSession(id)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	tw, err := NewTraceWriter(store.BaseDir(), id, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(TraceEntry{Round: 0, Cost: 1.5, Timestamp: time.Now()})
	tw.Close()
	if err := ArchiveTrace(store.BaseDir(), id); err != nil {
		t.Fatalf("ArchiveTrace failed: %v", err)
	}

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(infos))
	}
	if !infos[0].Archived {
		t.Error("Expected session to be reported as archived")
	}
}

func TestListSessions_SkipsInvalidDirectories(t *testing.T) {
	store, tempDir := setupTestStore(t)

	validID := "valid-fit"
	if err := store.SaveSession(validID, createTestSession(validID)); err != nil {
		t.Fatalf("Failed to save valid session: %v", err)
	}

	// Directory without session.json.
	invalidDir := filepath.Join(tempDir, "sessions", "invalid-fit")
	if err := os.MkdirAll(invalidDir, 0755); err != nil {
		t.Fatalf("Failed to create invalid session directory: %v", err)
	}

	// Non-directory file in the sessions directory.
	dummyFile := filepath.Join(tempDir, "sessions", "dummy.txt")
	if err := os.WriteFile(dummyFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create dummy file: %v", err)
	}

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("Expected 1 session, got %d", len(infos))
	}
	if len(infos) > 0 && infos[0].ID != validID {
		t.Errorf("Expected id %s, got %s", validID, infos[0].ID)
	}
}

func TestDeleteSession(t *testing.T) {
	store, _ := setupTestStore(t)

	id := "test-fit-delete"
	if err := store.SaveSession(id, createTestSession(id)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Deleting removes the trace too.
	tw, err := NewTraceWriter(store.BaseDir(), id, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(TraceEntry{Round: 0, Cost: 1.0, Timestamp: time.Now()})
	tw.Close()

	if err := store.DeleteSession(id); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	_, err = store.LoadSession(id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if _, err := os.Stat(TracePath(store.BaseDir(), id)); !os.IsNotExist(err) {
		t.Error("Expected trace file to be removed with the session")
	}
}

func TestDeleteSession_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.DeleteSession("nonexistent-fit")
	if err == nil {
		t.Fatal("Expected error for nonexistent session")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %T: %v", err, err)
	}
}

func TestDeleteSession_EmptyID(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.DeleteSession(""); err == nil {
		t.Fatal("Expected error for empty id")
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numSessions = 10
	done := make(chan bool, numSessions)

	for i := 0; i < numSessions; i++ {
		go func(idx int) {
			id := fmt.Sprintf("concurrent-fit-%d", idx)
			if err := store.SaveSession(id, createTestSession(id)); err != nil {
				t.Errorf("Concurrent save failed for session %s: %v", id, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < numSessions; i++ {
		<-done
	}

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != numSessions {
		t.Errorf("Expected %d sessions, got %d", numSessions, len(infos))
	}
}
