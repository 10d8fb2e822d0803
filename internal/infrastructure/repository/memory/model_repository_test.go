package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

func seedFinished(t *testing.T, repo *ModelRepository, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("00000000-0000-0000-0000-%012d", i)
		m := &domain.ClassificationModel{
			ID:        id,
			Name:      fmt.Sprintf("model %d", i),
			StartDate: base.Add(time.Duration(i) * time.Hour),
			Status:    domain.ModelStatusStarted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), m); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		end := m.StartDate.Add(time.Minute)
		m.EndDate = &end
		m.FileName = fmt.Sprintf("model-%d.pclf", i)
		m.KeyToCategoryMap = `{"0":10,"1":40}`
		m.Stats = &domain.ModelStats{ConfusionMatrix: &domain.ConfusionMatrix{NumberOfClasses: 2, Counts: []domain.ConfusionCount{{RealClass: 10, PredictedClass: 10, Count: 1}}}}
		if err := repo.CompleteTraining(context.Background(), m); err != nil {
			t.Fatalf("CompleteTraining() error = %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestActivateKeepsSingleActiveUnderConcurrency(t *testing.T) {
	repo := NewModelRepository()
	ids := seedFinished(t, repo, 8)

	var wg sync.WaitGroup
	for round := 0; round < 20; round++ {
		for _, id := range ids {
			wg.Add(2)
			go func(id string) {
				defer wg.Done()
				_ = repo.Activate(context.Background(), id)
			}(id)
			go func(id string) {
				defer wg.Done()
				m, err := repo.GetByID(context.Background(), id)
				if err != nil {
					return
				}
				m.IsActive = true
				_ = repo.Update(context.Background(), m)
			}(id)
			if n := repo.ActiveCount(); n > 1 {
				t.Fatalf("observed %d active models", n)
			}
		}
	}
	wg.Wait()
	if n := repo.ActiveCount(); n != 1 {
		t.Fatalf("expected exactly one active model, got %d", n)
	}
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	repo := NewModelRepository()
	ids := seedFinished(t, repo, 1)

	first, _ := repo.GetByID(context.Background(), ids[0])
	second, _ := repo.GetByID(context.Background(), ids[0])

	first.Name = "renamed"
	if err := repo.Update(context.Background(), first); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	second.Name = "lost update"
	if err := repo.Update(context.Background(), second); !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateKeepsStats(t *testing.T) {
	repo := NewModelRepository()
	ids := seedFinished(t, repo, 1)
	m, _ := repo.GetByID(context.Background(), ids[0])
	m.Stats = nil
	m.Description = "new"
	if err := repo.Update(context.Background(), m); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), ids[0])
	if !got.Stats.Complete() || got.Description != "new" {
		t.Fatalf("unexpected record after update: %+v", got)
	}
}

func TestActivateRejectsUnfinished(t *testing.T) {
	repo := NewModelRepository()
	m := &domain.ClassificationModel{ID: "m-1", Name: "n", Status: domain.ModelStatusStarted}
	_ = repo.Create(context.Background(), m)
	if err := repo.Activate(context.Background(), "m-1"); !domain.IsKind(err, domain.ErrActivationRejected) {
		t.Fatalf("expected activation rejected, got %v", err)
	}
	if repo.ActiveCount() != 0 {
		t.Fatalf("expected no active model")
	}
}

func TestListOrdersPagesAndSearches(t *testing.T) {
	repo := NewModelRepository()
	ids := seedFinished(t, repo, 5)

	items, total, err := repo.List(context.Background(), domain.ListQuery{Take: 2, Skip: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 || len(items) != 2 || items[0].ID != ids[1] || items[1].ID != ids[2] {
		t.Fatalf("unexpected page: total=%d items=%v", total, items)
	}

	items, total, _ = repo.List(context.Background(), domain.ListQuery{Search: "MODEL-3.PCLF"})
	if total != 1 || items[0].ID != ids[3] {
		t.Fatalf("unexpected search result: total=%d items=%v", total, items)
	}

	_, total, _ = repo.List(context.Background(), domain.ListQuery{Search: "2024-01-01 02:00"})
	if total != 1 {
		t.Fatalf("expected start date search to match one record, got %d", total)
	}

	items, _, _ = repo.List(context.Background(), domain.ListQuery{Take: 500})
	if len(items) != 5 {
		t.Fatalf("expected all 5 records, got %d", len(items))
	}
}

func TestMarkCancelledOnlyFromStarted(t *testing.T) {
	repo := NewModelRepository()
	ids := seedFinished(t, repo, 1)
	if err := repo.MarkCancelled(context.Background(), ids[0], "boom"); !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for finished model, got %v", err)
	}

	m := &domain.ClassificationModel{ID: "m-2", Name: "n", Status: domain.ModelStatusStarted}
	_ = repo.Create(context.Background(), m)
	if err := repo.MarkCancelled(context.Background(), "m-2", "boom"); err != nil {
		t.Fatalf("MarkCancelled() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), "m-2")
	if got.Status != domain.ModelStatusCancelled || got.ErrorMessage != "boom" || got.EndDate == nil {
		t.Fatalf("unexpected cancelled record: %+v", got)
	}
}

func TestDeleteAndGetActive(t *testing.T) {
	repo := NewModelRepository()
	ids := seedFinished(t, repo, 2)
	_ = repo.Activate(context.Background(), ids[0])
	if err := repo.Delete(context.Background(), ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetActive(context.Background()); !domain.IsKind(err, domain.ErrNoActiveModel) {
		t.Fatalf("expected no active model, got %v", err)
	}
	if err := repo.Delete(context.Background(), ids[0]); !domain.IsKind(err, domain.ErrModelNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductSourceKeysetBatches(t *testing.T) {
	rows := make([]domain.LabeledText, 0, 25)
	for i := 25; i >= 1; i-- {
		rows = append(rows, domain.LabeledText{ID: int64(i * 2), Designation: fmt.Sprintf("item %d", i)})
	}
	src := NewProductSource(rows, nil)

	var afterID int64
	seen := 0
	for {
		batch, err := src.FetchTextBatch(context.Background(), domain.FieldDesignation, afterID, 10)
		if err != nil {
			t.Fatalf("FetchTextBatch() error = %v", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, row := range batch {
			if row.ID <= afterID {
				t.Fatalf("row %d out of order after %d", row.ID, afterID)
			}
			afterID = row.ID
			seen++
		}
	}
	if seen != 25 || src.Calls() != 4 {
		t.Fatalf("expected 25 rows in 4 calls, got %d rows in %d calls", seen, src.Calls())
	}
}
