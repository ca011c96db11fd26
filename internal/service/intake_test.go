package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Somerville-Events/somerville.events-sub000/internal/activitypub"
	"github.com/Somerville-Events/somerville.events-sub000/internal/extract"
	"github.com/Somerville-Events/somerville.events-sub000/internal/geocode"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
)

func setupRepo(t *testing.T) *repository.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return repository.New(db, nil)
}

type fakeExtractor struct {
	calls  atomic.Int32
	result *extract.Extraction
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, format extract.Format) (*extract.Extraction, error) {
	f.calls.Add(1)
	if f.err != nil || f.result == nil {
		return nil, f.err
	}
	cp := *f.result
	return &cp, nil
}

type fakeGeocoder struct {
	place *geocode.Place
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, text string) (*geocode.Place, error) {
	return f.place, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []int64
}

func (f *fakePublisher) Deliver(ctx context.Context, e *model.Event) (activitypub.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e.ID)
	return activitypub.Report{}, nil
}

func (f *fakePublisher) delivered() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.events...)
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func blankFlyer(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return pngBytes(t, img)
}

func danceTherapy() *extract.Extraction {
	loc := "Davis Square"
	return &extract.Extraction{
		Name:        "Dance Therapy",
		Description: "Move together.",
		FullText:    "DANCE THERAPY",
		StartDate:   time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC),
		Location:    &loc,
		Categories:  []model.Category{model.CategoryDance},
		Confidence:  0.9,
	}
}

type harness struct {
	repo      *repository.Repository
	extractor *fakeExtractor
	geocoder  *fakeGeocoder
	publisher *fakePublisher
	pipeline  *Pipeline
	dir       string
}

func newHarness(t *testing.T, queueSize int) *harness {
	h := &harness{
		repo:      setupRepo(t),
		extractor: &fakeExtractor{result: danceTherapy()},
		geocoder:  &fakeGeocoder{},
		publisher: &fakePublisher{},
		dir:       t.TempDir(),
	}
	p, err := NewPipeline(h.repo, h.extractor, h.geocoder, h.publisher, PipelineOptions{
		ScratchDir: h.dir, QueueSize: queueSize, Workers: 2, JobTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	h.pipeline = p
	return h
}

func (h *harness) drain(t *testing.T, stop func(context.Context) (int, error)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	left, err := stop(ctx)
	require.NoError(t, err)
	require.Zero(t, left)
}

func (h *harness) scratchFiles(t *testing.T) int {
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	return len(entries)
}

const key1 = "3f0f6a8e-1b7c-4d0e-9d55-6a1f7b2c9e01"

func TestSubmitIsIdempotentUnderConcurrency(t *testing.T) {
	h := newHarness(t, 16)
	stop := h.pipeline.Start()
	data := blankFlyer(t)

	var accepted, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.pipeline.Submit(context.Background(), key1, data)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrDuplicateSubmission):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	h.drain(t, stop)

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(11), conflicts.Load())
	assert.Equal(t, int32(1), h.extractor.calls.Load())

	// a later retry is still a conflict
	assert.ErrorIs(t, h.pipeline.Submit(context.Background(), key1, data), ErrDuplicateSubmission)
}

func TestSubmitValidatesBeforeClaiming(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	assert.ErrorIs(t, h.pipeline.Submit(ctx, "not-a-uuid", blankFlyer(t)), ErrInvalidKey)
	assert.ErrorIs(t, h.pipeline.Submit(ctx, key1, []byte("%PDF-1.7 not an image")), ErrUnsupportedImage)

	// the key was not consumed by the rejected upload
	ok, err := h.repo.Idempotency.Claim(ctx, key1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, h.scratchFiles(t))
}

func TestProcessStoresGeocodedEventAndPublishes(t *testing.T) {
	h := newHarness(t, 4)
	h.geocoder.place = &geocode.Place{PlaceID: "ChIJV1wE6Bh344kRUrVbHX8CkaM", Name: "Davis Square", FormattedAddress: "Davis Square, Somerville, MA, USA"}
	stop := h.pipeline.Start()

	require.NoError(t, h.pipeline.Submit(context.Background(), key1, blankFlyer(t)))
	h.drain(t, stop)

	events, err := h.repo.Events.ListPage(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "Dance Therapy", e.Name)
	assert.Equal(t, model.SourceImageUpload, e.Source)
	require.NotNil(t, e.Address)
	assert.Equal(t, "Davis Square, Somerville, MA, USA", *e.Address)
	require.NotNil(t, e.GooglePlaceID)
	assert.Equal(t, "ChIJV1wE6Bh344kRUrVbHX8CkaM", *e.GooglePlaceID)
	require.NotNil(t, e.OriginalLocation)
	assert.Equal(t, "Davis Square", *e.OriginalLocation)
	assert.Nil(t, e.URL)

	assert.Equal(t, []int64{e.ID}, h.publisher.delivered())
	assert.Zero(t, h.scratchFiles(t), "scratch file removed")
}

func TestProcessKeepsRawLocationWithoutMatch(t *testing.T) {
	h := newHarness(t, 4)
	stop := h.pipeline.Start()
	require.NoError(t, h.pipeline.Submit(context.Background(), key1, blankFlyer(t)))
	h.drain(t, stop)

	events, err := h.repo.Events.ListPage(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Address)
	require.NotNil(t, events[0].OriginalLocation)
	assert.Equal(t, "Davis Square", *events[0].OriginalLocation)
}

func TestProcessUpstreamFailuresEndTheJob(t *testing.T) {
	cases := map[string]func(h *harness){
		"extraction": func(h *harness) { h.extractor.err = errors.New("model unavailable") },
		"geocoding":  func(h *harness) { h.geocoder.err = errors.New("quota exceeded") },
		"no event":   func(h *harness) { h.extractor.result = nil },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 4)
			breakIt(h)
			stop := h.pipeline.Start()
			require.NoError(t, h.pipeline.Submit(context.Background(), key1, blankFlyer(t)))
			h.drain(t, stop)

			n, err := h.repo.Events.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Empty(t, h.publisher.delivered())
			assert.Zero(t, h.scratchFiles(t))
		})
	}
}

func TestDuplicateUploadDoesNotPublishTwice(t *testing.T) {
	h := newHarness(t, 4)
	h.pipeline.workers = 1
	stop := h.pipeline.Start()
	ctx := context.Background()
	require.NoError(t, h.pipeline.Submit(ctx, key1, blankFlyer(t)))
	require.NoError(t, h.pipeline.Submit(ctx, "9b2d7c1a-4e5f-4a6b-8c7d-0e1f2a3b4c5d", blankFlyer(t)))
	h.drain(t, stop)

	n, err := h.repo.Events.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, h.publisher.delivered(), 1)
	assert.Equal(t, int32(2), h.extractor.calls.Load())
}

func TestQRCodeOverridesExtractedURL(t *testing.T) {
	h := newHarness(t, 4)
	proposed := "https://wrong.example"
	h.extractor.result.URL = &proposed

	matrix, err := qrcode.NewQRCodeWriter().Encode("https://tickets.example/dance", gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)
	canvas := image.NewRGBA(image.Rect(0, 0, 300, 300))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(50, 50, 250, 250), matrix, image.Point{}, draw.Src)

	stop := h.pipeline.Start()
	require.NoError(t, h.pipeline.Submit(context.Background(), key1, pngBytes(t, canvas)))
	h.drain(t, stop)

	events, err := h.repo.Events.ListPage(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].URL)
	assert.Equal(t, "https://tickets.example/dance", *events[0].URL)
}

func TestQueueFullReleasesClaim(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	key2 := "0d6c9a52-7f3e-4b1a-a2c4-5e6f7a8b9c0d"

	// no workers yet, so the single slot stays occupied
	require.NoError(t, h.pipeline.Submit(ctx, key1, blankFlyer(t)))
	assert.ErrorIs(t, h.pipeline.Submit(ctx, key2, blankFlyer(t)), ErrQueueFull)
	assert.Equal(t, 1, h.scratchFiles(t))
	assert.Equal(t, 1, h.pipeline.QueueLen())

	stop := h.pipeline.Start()
	h.drain(t, stop)

	// the rejected key can be retried against a fresh pipeline
	ok, err := h.repo.Idempotency.Claim(ctx, key2)
	require.NoError(t, err)
	assert.True(t, ok)
}
