// Package search maintains a full-text index of notes in elasticsearch.
// The index is best-effort: handlers log indexing failures and move on, the
// database stays the source of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"technotes/internal/models"
)

const NoteIndex = "notes"

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	return client, nil
}

func IndexNote(ctx context.Context, es *elasticsearch.Client, note *models.Note) error {
	data, err := json.Marshal(note)
	if err != nil {
		return err
	}

	res, err := es.Index(
		NoteIndex,
		bytes.NewReader(data),
		es.Index.WithDocumentID(note.ID.String()),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index note: %s", res.Status())
	}
	return nil
}

func DeleteNote(ctx context.Context, es *elasticsearch.Client, id string) error {
	res, err := es.Delete(NoteIndex, id, es.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// 404 here just means the note never made it into the index.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete note: %s", res.Status())
	}
	return nil
}

func Notes(ctx context.Context, es *elasticsearch.Client, query string, from, size int) (int64, []models.Note, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "text"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(NoteIndex),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search notes: %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Note `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	notes := make([]models.Note, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		notes[i] = hit.Source
	}
	return r.Hits.Total.Value, notes, nil
}
