package main

import (
	"context"
	crand "crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Somerville-Events/somerville.events-sub000/config"
	"github.com/Somerville-Events/somerville.events-sub000/internal/activitypub"
	"github.com/Somerville-Events/somerville.events-sub000/internal/dedup"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/database"
)

// deliverybench measures one Create fan-out against in-process fake inboxes.
//
//	FOLLOWERS     followers to register (default 500)
//	SHARED_RATIO  fraction of followers behind a shared inbox (default 0.6)
//	SHARED_HOSTS  distinct shared inboxes (default 20)
//	LATENCY_MS    per-request peer latency (default 20)
//	FAIL_RATE     fraction of peer responses that are 500 (default 0.05)
//	CONCURRENCY   in-flight POSTs (default 8)
//	REPEAT        fan-outs to time (default 10)
func main() {
	followers := envInt("FOLLOWERS", 500)
	sharedRatio := envFloat("SHARED_RATIO", 0.6)
	sharedHosts := envInt("SHARED_HOSTS", 20)
	latency := time.Duration(envInt("LATENCY_MS", 20)) * time.Millisecond
	failRate := envFloat("FAIL_RATE", 0.05)
	concurrency := envInt("CONCURRENCY", 8)
	repeat := envInt("REPEAT", 10)

	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:deliverybench?mode=memory&cache=shared",
		LogLevel: "silent",
	}}
	db, err := database.InitDB(cfg)
	if err != nil {
		panic(err)
	}
	repo := repository.New(db, dedup.NewMatcher(0, 0))

	var hits, failures atomic.Int64
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(latency)
		if rand.Float64() < failRate {
			failures.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer peer.Close()

	ctx := context.Background()
	for i := 0; i < followers; i++ {
		f := &model.Follower{
			ActorID:  fmt.Sprintf("%s/users/u%d", peer.URL, i),
			ActorURL: fmt.Sprintf("%s/users/u%d", peer.URL, i),
			InboxURL: fmt.Sprintf("%s/users/u%d/inbox", peer.URL, i),
		}
		if float64(i)/float64(followers) < sharedRatio {
			shared := fmt.Sprintf("%s/shared/%d/inbox", peer.URL, i%sharedHosts)
			f.SharedInboxURL = &shared
		}
		if err := repo.Followers.Upsert(ctx, f); err != nil {
			panic(err)
		}
	}

	id, _, err := repo.Events.Insert(ctx, &model.Event{
		Name:      "Bench Night",
		StartDate: time.Now().Add(48 * time.Hour).UTC(),
		Source:    model.SourceImageUpload,
	})
	if err != nil {
		panic(err)
	}
	event, err := repo.Events.Get(ctx, id)
	if err != nil {
		panic(err)
	}

	urls := activitypub.NewURLs("https://bench.invalid")
	signer, err := activitypub.NewSigner(urls.KeyID(), newKeyPEM(), "")
	if err != nil {
		panic(err)
	}
	delivery := activitypub.NewDelivery(peer.Client(), signer, urls, repo.Followers, activitypub.DeliveryOptions{
		Timeout:     5 * time.Second,
		Concurrency: concurrency,
	})

	durs := make([]time.Duration, 0, repeat)
	var last activitypub.Report
	for i := 0; i < repeat; i++ {
		st := time.Now()
		last, err = delivery.Deliver(ctx, event)
		if err != nil {
			panic(err)
		}
		durs = append(durs, time.Since(st))
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(float64(len(xs)) * p)
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}
	var sum time.Duration
	for _, d := range durs {
		sum += d
	}

	fmt.Printf("FOLLOWERS=%d SHARED_RATIO=%.2f SHARED_HOSTS=%d LATENCY=%v FAIL_RATE=%.2f CONCURRENCY=%d REPEAT=%d\n",
		followers, sharedRatio, sharedHosts, latency, failRate, concurrency, repeat)
	fmt.Printf("Destinations per fan-out: %d (collapse ratio %.2f)\n",
		last.Destinations, float64(last.Destinations)/float64(max(last.Followers, 1)))
	fmt.Printf("Fan-out latency: avg=%v p50=%v p95=%v p99=%v\n",
		sum/time.Duration(len(durs)), pct(durs, 0.5), pct(durs, 0.95), pct(durs, 0.99))
	fmt.Printf("Peer requests=%d failed=%d (last run delivered=%d failed=%d)\n",
		hits.Load(), failures.Load(), last.Delivered, last.Failed)
}

func newKeyPEM() string {
	key, err := rsa.GenerateKey(crand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if s := strings.TrimSpace(os.Getenv(name)); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 {
			return v
		}
	}
	return def
}
