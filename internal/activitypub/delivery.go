package activitypub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

// Report summarizes one fan-out.
type Report struct {
	Followers    int
	Destinations int
	Delivered    int
	Failed       int
}

type DeliveryOptions struct {
	// Timeout bounds a single POST to one inbox.
	Timeout time.Duration
	// Concurrency caps in-flight POSTs. Zero means 8.
	Concurrency int
}

// Delivery pushes signed activities to remote inboxes. Each destination is
// independent: a slow or failing peer never affects the others, and nothing
// is retried.
type Delivery struct {
	client    *http.Client
	signer    *Signer
	mapper    *Mapper
	urls      URLs
	followers repository.FollowerRepository
	opts      DeliveryOptions
}

func NewDelivery(client *http.Client, signer *Signer, urls URLs, followers repository.FollowerRepository, opts DeliveryOptions) *Delivery {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Delivery{
		client:    client,
		signer:    signer,
		mapper:    NewMapper(urls),
		urls:      urls,
		followers: followers,
		opts:      opts,
	}
}

// Deliver sends Create{event} once per distinct follower inbox. The error is
// non-nil only when the follower set could not be loaded.
func (d *Delivery) Deliver(ctx context.Context, e *model.Event) (Report, error) {
	followers, err := d.followers.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list followers: %w", err)
	}
	inboxes := Destinations(followers)
	report := Report{Followers: len(followers), Destinations: len(inboxes)}
	if len(inboxes) == 0 {
		return report, nil
	}

	activity := d.mapper.CreateActivity(e)
	activity.Context = []string{ContextActivityStreams}
	body, err := json.Marshal(activity)
	if err != nil {
		return report, fmt.Errorf("marshal create: %w", err)
	}

	var ok, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for _, inbox := range inboxes {
		g.Go(func() error {
			if err := d.post(ctx, inbox, body); err != nil {
				failed.Add(1)
				logger.Warn("activity delivery failed",
					zap.Int64("event_id", e.ID),
					zap.String("inbox", inbox),
					zap.Error(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(ok.Load())
	report.Failed = int(failed.Load())
	logger.Info("event delivered",
		zap.Int64("event_id", e.ID),
		zap.Int("destinations", report.Destinations),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed))
	return report, nil
}

// DeliverAccept answers a Follow by wrapping it in a signed Accept.
func (d *Delivery) DeliverAccept(ctx context.Context, inbox string, follow json.RawMessage) error {
	accept := &Activity{
		Context: []string{ContextActivityStreams},
		ID:      d.urls.Base() + "/activitypub/accept/" + uuid.NewString(),
		Type:    "Accept",
		Actor:   d.urls.Actor(),
		Object:  follow,
	}
	body, err := json.Marshal(accept)
	if err != nil {
		return fmt.Errorf("marshal accept: %w", err)
	}
	return d.post(ctx, inbox, body)
}

// Destinations collapses followers sharing an inbox into one target,
// keeping first-seen order.
func Destinations(followers []*model.Follower) []string {
	seen := make(map[string]struct{}, len(followers))
	out := make([]string, 0, len(followers))
	for _, f := range followers {
		inbox := f.DeliveryInbox()
		if inbox == "" {
			continue
		}
		if _, dup := seen[inbox]; dup {
			continue
		}
		seen[inbox] = struct{}{}
		out = append(out, inbox)
	}
	return out
}

func (d *Delivery) post(ctx context.Context, inbox string, body []byte) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDelivery(err == nil, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)
	if err := d.signer.SignPost(req, body); err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("inbox responded %d", resp.StatusCode)
	}
	return nil
}
