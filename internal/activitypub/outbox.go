package activitypub

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
)

var ErrInvalidPage = errors.New("activitypub: invalid page parameter")

const DefaultPageSize = 100

// Outbox renders stored events as Create activities in id order.
type Outbox struct {
	events   repository.EventRepository
	mapper   *Mapper
	urls     URLs
	pageSize int
}

func NewOutbox(events repository.EventRepository, urls URLs, pageSize int) *Outbox {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Outbox{events: events, mapper: NewMapper(urls), urls: urls, pageSize: pageSize}
}

// ParsePage interprets the page query value. Zero means the collection
// summary; "true" is the first page.
func ParsePage(raw string) (int, error) {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "", "false":
		return 0, nil
	case "true":
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, ErrInvalidPage
	}
	return n, nil
}

func (o *Outbox) lastPage(total int64) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(o.pageSize) - 1) / int64(o.pageSize))
}

func (o *Outbox) Summary(ctx context.Context) (*OrderedCollection, error) {
	total, err := o.events.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &OrderedCollection{
		Context:    []string{ContextActivityStreams},
		ID:         o.urls.Outbox(),
		Type:       "OrderedCollection",
		TotalItems: total,
		First:      o.urls.OutboxPage(1),
		Last:       o.urls.OutboxPage(o.lastPage(total)),
	}, nil
}

// Page returns page n (1-based). Pages past the end are empty.
func (o *Outbox) Page(ctx context.Context, n int) (*OrderedCollectionPage, error) {
	if n < 1 {
		return nil, ErrInvalidPage
	}
	total, err := o.events.Count(ctx)
	if err != nil {
		return nil, err
	}
	last := o.lastPage(total)

	page := &OrderedCollectionPage{
		Context:      []string{ContextActivityStreams},
		ID:           o.urls.OutboxPage(n),
		Type:         "OrderedCollectionPage",
		PartOf:       o.urls.Outbox(),
		TotalItems:   total,
		OrderedItems: []*Activity{},
	}
	if n > 1 {
		page.Prev = o.urls.OutboxPage(min(n-1, last))
	}
	if n < last {
		page.Next = o.urls.OutboxPage(n + 1)
	}
	if n > last {
		return page, nil
	}

	events, err := o.events.ListPage(ctx, (n-1)*o.pageSize, o.pageSize)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		page.OrderedItems = append(page.OrderedItems, o.mapper.CreateActivity(e))
	}
	return page, nil
}
