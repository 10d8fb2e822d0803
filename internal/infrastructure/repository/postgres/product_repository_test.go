package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

func TestProductRepositoryFetchTextBatchUsesKeyset(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewProductRepository(db)
	rows := sqlmock.NewRows([]string{"id", "description"}).
		AddRow(int64(1001), "<p>Ballon</p>").
		AddRow(int64(1004), "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, COALESCE(description, '') FROM products WHERE id > $1 ORDER BY id ASC LIMIT 1000")).
		WithArgs(int64(1000)).
		WillReturnRows(rows)

	batch, err := repo.FetchTextBatch(context.Background(), domain.FieldDescription, 1000, 1000)
	if err != nil {
		t.Fatalf("FetchTextBatch() error = %v", err)
	}
	if len(batch) != 2 || batch[0].ID != 1001 || batch[1].Text != "" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProductRepositoryFetchTextBatchRejectsUnknownField(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewProductRepository(db)
	if _, err := repo.FetchTextBatch(context.Background(), domain.TextField("price; DROP TABLE products"), 0, 10); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestProductRepositoryFetchLabeledBatchSkipsUnlabeled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewProductRepository(db)
	rows := sqlmock.NewRows([]string{"id", "designation", "description", "category_id"}).
		AddRow(int64(5), "Ballon", "", 10)
	mock.ExpectQuery("category_id IS NOT NULL").
		WithArgs(int64(0)).
		WillReturnRows(rows)

	batch, err := repo.FetchLabeledBatch(context.Background(), 0, 500)
	if err != nil {
		t.Fatalf("FetchLabeledBatch() error = %v", err)
	}
	if len(batch) != 1 || batch[0].CategoryID != 10 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProductRepositoryListCategories(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewProductRepository(db)
	mock.ExpectQuery("FROM categories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(10, "Livres").AddRow(2705, "Jeux"))

	categories, err := repo.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(categories) != 2 || categories[1].ID != 2705 {
		t.Fatalf("unexpected categories: %+v", categories)
	}
}
