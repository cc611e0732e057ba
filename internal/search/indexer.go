package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/repo"
)

const DefaultQueueSize = 256

var indexedTypes = []eventbus.EventType{
	eventbus.ComplaintCreatedType,
	eventbus.StatusUpdatedType,
	eventbus.ComplaintDeletedType,
}

// Indexer keeps the search index in step with the complaints table. Bus
// handlers only enqueue ids; Run does the Elasticsearch calls.
type Indexer struct {
	Repo  *repo.GormRepo
	ES    *elasticsearch.Client
	Index string
	log   *slog.Logger
	queue chan uuid.UUID
}

func NewIndexer(r *repo.GormRepo, es *elasticsearch.Client, index string, queueSize int, log *slog.Logger) *Indexer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		Repo:  r,
		ES:    es,
		Index: index,
		log:   log.With("component", "search.indexer"),
		queue: make(chan uuid.UUID, queueSize),
	}
}

func (x *Indexer) Subscribe(bus *eventbus.Bus) *eventbus.Subscription {
	return bus.Subscribe("search-indexer", x.enqueue, indexedTypes...)
}

func (x *Indexer) enqueue(_ context.Context, ev eventbus.Event) error {
	id, err := uuid.Parse(ev.Key())
	if err != nil {
		return fmt.Errorf("index key: %w", err)
	}
	select {
	case x.queue <- id:
	default:
		x.log.Warn("index_queue_full", "complaint_id", id, "type", ev.Type)
	}
	return nil
}

// Run drains the queue until ctx ends.
func (x *Indexer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-x.queue:
			if err := x.Sync(ctx, id); err != nil {
				x.log.Error("index_failed", "complaint_id", id, "error", err)
			}
		}
	}
}

// Sync writes the current state of one complaint, or removes it from the
// index when it no longer exists.
func (x *Indexer) Sync(ctx context.Context, id uuid.UUID) error {
	c, err := x.Repo.ComplaintByID(ctx, id)
	if errors.Is(err, apperr.NotFound) {
		return x.remove(ctx, id)
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(FromComplaint(c)); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := x.ES.Index(x.Index, &buf,
		x.ES.Index.WithContext(ctx),
		x.ES.Index.WithDocumentID(id.String()),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index document", res.Status(), res.Body)
	}
	x.log.Debug("indexed", "complaint_id", id, "status", c.Status)
	return nil
}

func (x *Indexer) remove(ctx context.Context, id uuid.UUID) error {
	res, err := x.ES.Delete(x.Index, id.String(), x.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete document", res.Status(), res.Body)
	}
	x.log.Debug("unindexed", "complaint_id", id)
	return nil
}

func responseError(op, status string, body io.Reader) error {
	msg, _ := io.ReadAll(io.LimitReader(body, 512))
	return fmt.Errorf("%s: %s: %s", op, status, bytes.TrimSpace(msg))
}
