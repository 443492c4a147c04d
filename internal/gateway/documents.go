package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) ListDocuments(ctx context.Context, closureID int64) ([]Document, error) {
	var documents []Document
	path := closurePath(closureID) + "documents/"
	if err := c.doJSON(ctx, http.MethodGet, "documents.list", path, nil, &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

// UploadDocument sends the document as multipart title/document_type/file.
func (c *Client) UploadDocument(ctx context.Context, closureID int64, upload DocumentUpload) (*Document, error) {
	body, err := multipartBody(map[string]string{
		"title":         upload.Title,
		"document_type": upload.DocumentType,
	}, "file", upload.FileName, upload.Content)
	if err != nil {
		return nil, err
	}

	var document Document
	target := c.baseURL + closurePath(closureID) + "documents/"
	if err := c.do(ctx, http.MethodPost, "documents.upload", target, body, &document); err != nil {
		return nil, err
	}
	return &document, nil
}

func (c *Client) DeleteDocument(ctx context.Context, closureID, documentID int64) error {
	path := fmt.Sprintf("%sdocuments/%d/", closurePath(closureID), documentID)
	return c.doJSON(ctx, http.MethodDelete, "documents.delete", path, nil, nil)
}

// DownloadDocument opens the file a document refers to. The file must live on
// the API host so the token is never sent elsewhere.
func (c *Client) DownloadDocument(ctx context.Context, fileRef string) (*FileStream, error) {
	target, err := c.resolve(fileRef)
	if err != nil {
		return nil, err
	}
	if err := c.sameHost(target); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodGet, "documents.download", target, nil)
	if err != nil {
		return nil, err
	}
	return &FileStream{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

func (c *Client) sameHost(target string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid file reference: %w", err)
	}
	if u.Host != base.Host {
		return fmt.Errorf("file host %q is not the api host", u.Host)
	}
	return nil
}
