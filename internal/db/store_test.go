package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aimee/backend/internal/models"
)

func TestCapabilityQueryFiltersProcesses(t *testing.T) {
	q, args := capabilityQuery(nil)
	if strings.Contains(q, "ANY(") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %q %v", q, args)
	}

	q, args = capabilityQuery([]string{"entry-1", "correction"})
	if !strings.Contains(q, "p.process_name = ANY($1)") {
		t.Fatalf("expected process filter, got %q", q)
	}
	if len(args) != 1 {
		t.Fatalf("expected one arg, got %d", len(args))
	}
	if !strings.HasSuffix(q, "ORDER BY p.process_name, l.location_name, o.operator_id") {
		t.Fatalf("expected stable order, got %q", q)
	}
}

func TestEntryBalanceGap(t *testing.T) {
	cases := []struct {
		e1, e2 int64
		want   float64
	}{
		{0, 0, 0},
		{100, 100, 0},
		{100, 60, 0.4},
		{70, 100, 0.3},
	}
	for _, c := range cases {
		if got := entryBalanceGap(c.e1, c.e2); got != c.want {
			t.Fatalf("entryBalanceGap(%d, %d) = %v, want %v", c.e1, c.e2, got, c.want)
		}
	}
}

func TestStoreIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := store.Capabilities(ctx, []string{"entry-1"}); err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	rec := models.ApprovalHistoryRecord{
		SuggestionID:    "SGT-integration",
		SuggestionType:  "allocation_change",
		Changes:         []models.TransferChange{},
		ActionType:      models.ApprovalRejected,
		ActionUser:      "test",
		ActionUserID:    "test",
		ActionTimestamp: time.Now().UTC(),
		ExecutionStatus: "pending",
	}
	if err := store.InsertApprovalHistory(ctx, rec); err != nil {
		t.Fatalf("insert history: %v", err)
	}
}
