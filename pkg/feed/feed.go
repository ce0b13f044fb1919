// Package feed ingests topology documents into the store. The file feed is
// the local/dev transport: it watches a JSON document on disk and re-ingests
// it whenever the file changes, standing in for a streaming mesh telemetry
// endpoint.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meshlens/mesh-analyzer/pkg/model"
)

// Document is the wire shape of a full topology snapshot
type Document struct {
	Services    []model.Service    `json:"services"`
	Connections []model.Connection `json:"connections"`
}

// ParseDocument decodes a full topology document. Unknown fields are
// rejected so schema drift in the producer surfaces immediately.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing topology document: %w", err)
	}
	return &doc, nil
}

// ReadDocument loads and parses a topology document from disk
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology document: %w", err)
	}
	return ParseDocument(data)
}
