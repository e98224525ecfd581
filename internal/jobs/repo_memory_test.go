package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRepoListPageDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Now().UTC()
	for i := 0; i < 25; i++ {
		job := Job{
			ID:        fmt.Sprintf("job-%02d", i),
			UserID:    "user-1",
			Status:    StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), job); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// No limit falls back to the same page size the SQL repo uses.
	page, err := repo.ListByUser(context.Background(), "user-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 20 {
		t.Fatalf("default page = %d", len(page))
	}
	if page[0].ID != "job-24" {
		t.Fatalf("newest first, got %q", page[0].ID)
	}

	rest, err := repo.ListByUser(context.Background(), "user-1", 0, 20)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest) != 5 {
		t.Fatalf("second page = %d", len(rest))
	}

	capped, err := repo.ListAll(context.Background(), 500, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(capped) != 25 {
		t.Fatalf("capped page = %d", len(capped))
	}
}
