package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/healthwatch/internal/storage"
)

type mockStatusStore struct {
	checks []storage.Check
	err    error
}

func (m *mockStatusStore) AllLatest(_ context.Context) ([]storage.Check, error) {
	return m.checks, m.err
}

func TestExecuteStatus_EmptyDB(t *testing.T) {
	store := &mockStatusStore{checks: []storage.Check{}}
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := executeStatus(cmd, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "No check history") {
		t.Errorf("expected 'No check history' message, got:\n%s", output)
	}
}

func TestExecuteStatus_WithChecks(t *testing.T) {
	code := 200
	ms := int64(42)
	checks := []storage.Check{
		{ID: 1, Target: "api", Up: true, StatusCode: &code, ResponseMs: &ms, CheckedAt: time.Now()},
		{ID: 2, Target: "db", Up: false, Error: "request-timeout", CheckedAt: time.Now()},
	}
	store := &mockStatusStore{checks: checks}

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := executeStatus(cmd, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"TARGET", "api", "db", "up", "down", "200", "42ms", "request-timeout"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestExecuteStatus_StoreError(t *testing.T) {
	store := &mockStatusStore{err: errors.New("locked")}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	if err := executeStatus(cmd, store); err == nil {
		t.Fatal("expected error from store failure")
	}
}
