// Package notionsync exports stored transactions to a Notion database
// for users who keep their budget views there.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// NotionService is the slice of the Notion API the exporter needs.
// Satisfied by *NotionClient and by test fakes.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService with the official SDK.
type NotionClient struct {
	client *notionapi.Client
}

func NewNotionClient(token string) *NotionClient {
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}
