package gateway

import (
	"context"
	"net/http"
)

// ExportApproved returns approved closures with their crossing coordinates.
func (c *Client) ExportApproved(ctx context.Context) ([]MapExportItem, error) {
	var items []MapExportItem
	if err := c.doJSON(ctx, http.MethodGet, "export.approved", "/export/yandex/", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
