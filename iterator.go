package postbox

import (
	"context"
	"errors"

	"github.com/absurdlabs/postbox/store"
)

// ErrIteratorOutOfBounds is returned when Message() is called without a
// successful Next().
var ErrIteratorOutOfBounds = errors.New("postbox: iterator out of bounds, call Next() first")

// MessageIterator provides streaming access to messages, fetching pages
// lazily. Use it instead of List when processing large result sets one
// message at a time, for example exports or migrations.
//
// The iterator holds no resources requiring cleanup; stop calling Next
// when done. It is not safe for concurrent use.
type MessageIterator interface {
	// Next advances to the next message. Returns (false, nil) when
	// iteration is done and (false, error) on failure.
	Next(ctx context.Context) (bool, error)

	// Message returns the current message. Only valid after a Next() call
	// that returned (true, nil).
	Message() (*Message, error)
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	// BatchSize is the number of messages fetched per page. Default 100.
	BatchSize int
}

type batchFetchFunc func(ctx context.Context, page store.Page) ([]*store.Message, error)

// batchIterator walks pages of a fixed-order query. Messages created
// while iterating may be skipped or seen twice, as with any paginated
// read.
type batchIterator struct {
	mailbox   *clientMailbox
	fetch     batchFetchFunc
	batchSize int
	pageNum   int
	batch     []*store.Message
	batchIdx  int
	done      bool
}

func newBatchIterator(m *clientMailbox, batchSize int, fetch batchFetchFunc) *batchIterator {
	if batchSize <= 0 || batchSize > store.MaxPageLimit {
		batchSize = store.MaxPageLimit
	}
	return &batchIterator{mailbox: m, fetch: fetch, batchSize: batchSize}
}

func (it *batchIterator) Next(ctx context.Context) (bool, error) {
	if it.done {
		return false, nil
	}
	if err := it.mailbox.checkAccess(); err != nil {
		it.done = true
		return false, err
	}

	if it.batchIdx >= len(it.batch) {
		if it.pageNum > 0 && len(it.batch) < it.batchSize {
			it.done = true
			return false, nil
		}

		it.pageNum++
		batch, err := it.fetch(ctx, store.Page{Number: it.pageNum, Limit: it.batchSize})
		if err != nil {
			it.done = true
			return false, err
		}
		it.batch = batch
		it.batchIdx = 0
		if len(it.batch) == 0 {
			it.done = true
			return false, nil
		}
	}

	it.batchIdx++
	return true, nil
}

func (it *batchIterator) Message() (*Message, error) {
	if it.batchIdx <= 0 || it.batchIdx > len(it.batch) {
		return nil, ErrIteratorOutOfBounds
	}
	return it.batch[it.batchIdx-1], nil
}

// Stream returns an iterator over messages matching the filter, newest
// first. Unlike List, the folder is not defaulted: a zero filter streams
// every non-trash folder the filter semantics allow.
func (m *clientMailbox) Stream(ctx context.Context, filter MessageFilter, opts StreamOptions) (MessageIterator, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if filter.Folder != "" && !store.IsValidFolder(filter.Folder) {
		return nil, invalidField("folder", "unknown folder")
	}
	return newBatchIterator(m, opts.BatchSize, func(ctx context.Context, page store.Page) ([]*store.Message, error) {
		list, err := m.service.store.FindMessages(ctx, m.ownerID(), filter, page)
		if err != nil {
			return nil, mapStoreError(err)
		}
		return list.Messages, nil
	}), nil
}

// StreamSearch returns an iterator over full-text search results in
// relevance order.
func (m *clientMailbox) StreamSearch(ctx context.Context, query string, filter MessageFilter, opts StreamOptions) (MessageIterator, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	q := store.SearchQuery{Query: query, Filter: filter}
	if err := q.Validate(); err != nil {
		return nil, ErrEmptySearchQuery
	}
	return newBatchIterator(m, opts.BatchSize, func(ctx context.Context, page store.Page) ([]*store.Message, error) {
		q.Page = page
		list, err := m.service.store.SearchMessages(ctx, m.ownerID(), q)
		if err != nil {
			return nil, mapStoreError(err)
		}
		return list.Messages, nil
	}), nil
}
