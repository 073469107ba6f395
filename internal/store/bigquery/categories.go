package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/store"
)

func (s *Store) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			category_id,
			user_id,
			category_name,
			kind,
			icon
		FROM %s
		WHERE user_id = @user_id
		ORDER BY kind, category_name
	`, s.tableRef(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var out []domain.Category
	for {
		var r categoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, category *domain.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}

	row := &categoryRow{
		CategoryID: category.ID,
		UserID:     category.UserID,
		Name:       category.Name,
		Kind:       string(category.Kind),
		Icon:       category.Icon,
	}
	inserter := s.table(categoriesTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("CreateCategory: inserting row: %w", err)
	}
	return nil
}

// EnsureDefaultCategories seeds the default set when the user has no
// categories yet. Concurrent first messages from the same user may
// race; the seed is small and duplicate names are tolerated downstream.
func (s *Store) EnsureDefaultCategories(ctx context.Context, userID int64) error {
	existing, err := s.ListCategories(ctx, userID)
	if err != nil {
		return fmt.Errorf("EnsureDefaultCategories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := store.DefaultCategories(userID)
	rows := make([]*categoryRow, 0, len(defaults))
	for _, c := range defaults {
		rows = append(rows, &categoryRow{
			CategoryID: uuid.NewString(),
			UserID:     c.UserID,
			Name:       c.Name,
			Kind:       string(c.Kind),
			Icon:       c.Icon,
		})
	}

	inserter := s.table(categoriesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("EnsureDefaultCategories: inserting rows: %w", err)
	}
	return nil
}
