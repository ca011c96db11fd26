package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/internal/activitypub"
	"github.com/Somerville-Events/somerville.events-sub000/internal/extract"
	"github.com/Somerville-Events/somerville.events-sub000/internal/geocode"
	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

var (
	ErrDuplicateSubmission = errors.New("upload already submitted")
	ErrUnsupportedImage    = errors.New("unsupported image")
	ErrInvalidKey          = errors.New("idempotency key must be a UUID")
)

// Publisher fans a newly stored event out to followers.
type Publisher interface {
	Deliver(ctx context.Context, e *model.Event) (activitypub.Report, error)
}

type PipelineOptions struct {
	ScratchDir string
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Pipeline accepts uploads synchronously and processes them in the
// background: QR scan, extraction, geocoding, dedup-aware insert, fan-out.
type Pipeline struct {
	idempotency repository.IdempotencyRepository
	events      repository.EventRepository
	extractor   extract.Extractor
	geocoder    geocode.Geocoder
	publisher   Publisher
	scratchDir  string
	workers     int
	queue       *JobQueue
}

// NewPipeline wires the pipeline. geocoder and publisher may be nil.
func NewPipeline(repo *repository.Repository, extractor extract.Extractor, geocoder geocode.Geocoder, publisher Publisher, opts PipelineOptions) (*Pipeline, error) {
	dir := opts.ScratchDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "somerville-events-uploads")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	p := &Pipeline{
		idempotency: repo.Idempotency,
		events:      repo.Events,
		extractor:   extractor,
		geocoder:    geocoder,
		publisher:   publisher,
		scratchDir:  dir,
		workers:     opts.Workers,
	}
	p.queue = NewJobQueue(opts.QueueSize, opts.JobTimeout, p.process)
	return p, nil
}

// Start runs the worker pool; see JobQueue.Start for the stop function.
func (p *Pipeline) Start() func(context.Context) (int, error) {
	return p.queue.Start(p.workers)
}

func (p *Pipeline) QueueLen() int { return p.queue.Len() }

// Submit claims key, stores data in scratch space and queues it. It returns
// once the job is queued; processing results are never reported back.
func (p *Pipeline) Submit(ctx context.Context, key string, data []byte) error {
	id, err := uuid.Parse(strings.TrimSpace(key))
	if err != nil {
		return ErrInvalidKey
	}
	key = id.String()

	format, err := extract.Sniff(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	claimed, err := p.idempotency.Claim(ctx, key)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		logger.Warn("duplicate upload rejected", zap.String("idempotency_key", key))
		return ErrDuplicateSubmission
	}

	path, err := p.writeScratch(key, format, data)
	if err != nil {
		p.release(key)
		return err
	}

	if err := p.queue.Enqueue(Job{Key: key, Path: path, Format: format}); err != nil {
		removeScratch(path)
		p.release(key)
		return err
	}
	logger.Info("upload accepted", zap.String("idempotency_key", key), zap.String("format", string(format)))
	return nil
}

func (p *Pipeline) writeScratch(key string, format extract.Format, data []byte) (string, error) {
	f, err := os.CreateTemp(p.scratchDir, key+"-*"+format.Ext())
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		removeScratch(f.Name())
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		removeScratch(f.Name())
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return f.Name(), nil
}

// release frees a claim whose job never ran so the client may retry.
func (p *Pipeline) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.idempotency.Release(ctx, key); err != nil {
		logger.Error("release idempotency claim", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (p *Pipeline) process(ctx context.Context, job Job) string {
	defer removeScratch(job.Path)
	log := logger.L().With(zap.String("idempotency_key", job.Key))

	data, err := os.ReadFile(job.Path)
	if err != nil {
		log.Error("read scratch file", zap.Error(err))
		return metrics.OutcomeFailed
	}

	var qrURL string
	if img, _, err := extract.Decode(data); err != nil {
		log.Warn("image decode failed, skipping QR scan", zap.Error(err))
	} else if u, ok := extract.FindURL(img); ok {
		qrURL = u
		log.Info("QR code URL detected", zap.String("url", u))
	}

	ex, err := p.extractor.Extract(ctx, data, job.Format)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		return metrics.OutcomeFailed
	}
	if ex == nil {
		log.Info("no event found in upload")
		return metrics.OutcomeNoEvent
	}

	e := eventFromExtraction(ex)
	if qrURL != "" {
		e.URL = &qrURL
	}

	if ex.Location != nil {
		e.OriginalLocation = ex.Location
		if p.geocoder != nil {
			place, err := p.geocoder.Geocode(ctx, *ex.Location)
			if err != nil {
				log.Error("geocoding failed", zap.String("location", *ex.Location), zap.Error(err))
				return metrics.OutcomeFailed
			}
			if place != nil {
				e.Address = &place.FormattedAddress
				e.LocationName = &place.Name
				e.GooglePlaceID = &place.PlaceID
			} else {
				log.Info("no geocoding match, keeping raw location", zap.String("location", *ex.Location))
			}
		}
	}

	id, created, err := p.events.Insert(ctx, e)
	if err != nil {
		log.Error("insert event", zap.String("name", e.Name), zap.Error(err))
		return metrics.OutcomeFailed
	}
	if !created {
		log.Info("upload matched existing event", zap.Int64("event_id", id))
		return metrics.OutcomeDuplicate
	}
	log.Info("event created", zap.Int64("event_id", id), zap.String("name", e.Name))

	if p.publisher != nil {
		if _, err := p.publisher.Deliver(ctx, e); err != nil {
			log.Error("fan-out failed", zap.Int64("event_id", id), zap.Error(err))
		}
	}
	return metrics.OutcomeCreated
}

func eventFromExtraction(ex *extract.Extraction) *model.Event {
	return &model.Event{
		Name:            ex.Name,
		Description:     ex.Description,
		FullText:        ex.FullText,
		StartDate:       ex.StartDate,
		EndDate:         ex.EndDate,
		Categories:      ex.Categories,
		URL:             ex.URL,
		AgeRestrictions: ex.AgeRestrictions,
		Price:           ex.Price,
		Confidence:      ex.Confidence,
		Source:          model.SourceImageUpload,
	}
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove scratch file", zap.String("path", path), zap.Error(err))
	}
}
