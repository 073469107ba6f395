package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/mkuznetsov/finbot/internal/domain"
)

func (s *Store) ListMerchantRules(ctx context.Context, userID int64) ([]domain.MerchantRule, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			rule_id,
			user_id,
			merchant_name,
			category_id,
			description_template
		FROM %s
		WHERE user_id = @user_id
		ORDER BY merchant_name
	`, s.tableRef(merchantRulesTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMerchantRules: query read: %w", err)
	}

	var out []domain.MerchantRule
	for {
		var r merchantRuleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMerchantRules: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// SaveMerchantRule upserts by (user_id, merchant_name) so repeat
// corrections replace the earlier mapping instead of stacking rules.
func (s *Store) SaveMerchantRule(ctx context.Context, rule *domain.MerchantRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @user_id AS user_id, @merchant_name AS merchant_name) src
		ON t.user_id = src.user_id AND t.merchant_name = src.merchant_name
		WHEN MATCHED THEN
			UPDATE SET category_id = @category_id,
			           description_template = @description_template
		WHEN NOT MATCHED THEN
			INSERT (rule_id, user_id, merchant_name, category_id, description_template)
			VALUES (@rule_id, @user_id, @merchant_name, @category_id, @description_template)
	`, s.tableRef(merchantRulesTable))

	params := []bigquery.QueryParameter{
		{Name: "rule_id", Value: rule.ID},
		{Name: "user_id", Value: rule.UserID},
		{Name: "merchant_name", Value: rule.MerchantName},
		{Name: "category_id", Value: rule.CategoryID},
		{Name: "description_template", Value: rule.DescriptionTemplate},
	}

	if err := s.runDML(ctx, query, params); err != nil {
		return fmt.Errorf("SaveMerchantRule: %w", err)
	}
	return nil
}
