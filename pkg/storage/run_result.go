// Package storage persists completed run output as a JSON document in blob
// storage, so downstream consumers can read a run's results without replaying
// the fetch.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/pipeline"
	"go.uber.org/zap"
)

// ChildResult is the serialized outcome for one child reference.
type ChildResult struct {
	Index    int                    `json:"index"`
	Ref      string                 `json:"ref"`
	Name     string                 `json:"name,omitempty"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	Attempts int                    `json:"attempts"`
	Error    string                 `json:"error,omitempty"`
}

// RunDocument is the persisted form of a completed pipeline run.
type RunDocument struct {
	RootID      string        `json:"root_id"`
	RunID       string        `json:"run_id"`
	CompletedAt time.Time     `json:"completed_at"`
	Children    []ChildResult `json:"children"`
	Failed      int           `json:"failed"`
}

// NewRunDocument converts pipeline results into their persisted form,
// preserving the original child order.
func NewRunDocument(rootID, runID string, results []pipeline.Result) *RunDocument {
	doc := &RunDocument{
		RootID:      rootID,
		RunID:       runID,
		CompletedAt: time.Now().UTC(),
		Children:    make([]ChildResult, len(results)),
	}
	for i, r := range results {
		child := ChildResult{
			Index:    r.Index,
			Ref:      string(r.Ref),
			Name:     r.Detail.Name,
			Fields:   r.Detail.Fields,
			Attempts: r.Attempts,
		}
		if r.Err != nil {
			child.Error = r.Err.Error()
			doc.Failed++
		}
		doc.Children[i] = child
	}
	return doc
}

// RunResultPath returns the standard blob path for a run's result document.
func RunResultPath(rootID, runID string) string {
	return fmt.Sprintf("runs/%s/%s/results.json", rootID, runID)
}

// RunResultWriter uploads run documents through a blob storage client.
type RunResultWriter struct {
	blobClient BlobStorageClient
	logger     *zap.Logger
}

// NewRunResultWriter creates a writer over the given blob client.
func NewRunResultWriter(blobClient BlobStorageClient, logger *zap.Logger) *RunResultWriter {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &RunResultWriter{
		blobClient: blobClient,
		logger:     logger,
	}
}

// Write serializes and uploads the document, returning the blob URL.
func (w *RunResultWriter) Write(ctx context.Context, doc *RunDocument) (string, error) {
	if w.blobClient == nil {
		return "", fmt.Errorf("blob client not initialized")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run document: %w", err)
	}

	blobPath := RunResultPath(doc.RootID, doc.RunID)
	blobURL, err := w.blobClient.Upload(ctx, blobPath, data, map[string]string{
		"root_id":      doc.RootID,
		"run_id":       doc.RunID,
		"child_count":  fmt.Sprintf("%d", len(doc.Children)),
		"failed_count": fmt.Sprintf("%d", doc.Failed),
		"completed_at": doc.CompletedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload run document: %w", err)
	}

	w.logger.Info("uploaded run results",
		zap.String("root_id", doc.RootID),
		zap.String("run_id", doc.RunID),
		zap.String("blob_path", blobPath),
		zap.Int("size_bytes", len(data)))

	return blobURL, nil
}

// Read downloads and parses a run document.
func (w *RunResultWriter) Read(ctx context.Context, rootID, runID string) (*RunDocument, error) {
	if w.blobClient == nil {
		return nil, fmt.Errorf("blob client not initialized")
	}

	data, err := w.blobClient.Download(ctx, RunResultPath(rootID, runID))
	if err != nil {
		return nil, fmt.Errorf("failed to download run document: %w", err)
	}

	var doc RunDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse run document: %w", err)
	}
	return &doc, nil
}
