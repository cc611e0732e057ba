// Package search mirrors complaints into Elasticsearch and queries them.
package search

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v9"
)

// NewClient connects to Elasticsearch and checks the cluster answers.
func NewClient(url, user, password string, log *slog.Logger) (*elasticsearch.Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("es_connect", "url", url)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		log.Error("es_info_failed", "status", res.Status(), "body", string(body))
		return nil, fmt.Errorf("es info: %s", res.Status())
	}

	log.Info("es_connected")
	return client, nil
}
