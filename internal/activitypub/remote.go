package activitypub

import (
	"context"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
)

const maxActorDocument = 1 << 20

// RemoteActor is what the inbox needs to know about a remote actor.
type RemoteActor struct {
	ID           string
	Inbox        string
	SharedInbox  string
	PublicKeyPEM string
}

// DeliveryInbox prefers the shared inbox when the remote server offers one.
func (a *RemoteActor) DeliveryInbox() string {
	if a.SharedInbox != "" {
		return a.SharedInbox
	}
	return a.Inbox
}

type ActorFetcher interface {
	FetchActor(ctx context.Context, actorURL string) (*RemoteActor, error)
}

type httpActorFetcher struct {
	client *http.Client
	signer *Signer
}

// NewActorFetcher dereferences actor documents with signed GETs. A nil
// signer sends unsigned requests.
func NewActorFetcher(client *http.Client, signer *Signer) ActorFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpActorFetcher{client: client, signer: signer}
}

func (f *httpActorFetcher) FetchActor(ctx context.Context, actorURL string) (*RemoteActor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actorURL, nil)
	if err != nil {
		return nil, fmt.Errorf("actor request: %w", err)
	}
	req.Header.Set("Accept", AcceptHeader)
	if f.signer != nil {
		if err := f.signer.SignGet(req); err != nil {
			return nil, err
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch actor %s: %w", actorURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxActorDocument))
		return nil, fmt.Errorf("fetch actor %s: status %d", actorURL, resp.StatusCode)
	}

	var doc struct {
		ID        string `json:"id"`
		Inbox     string `json:"inbox"`
		Endpoints struct {
			SharedInbox string `json:"sharedInbox"`
		} `json:"endpoints"`
		PublicKey struct {
			PublicKeyPem string `json:"publicKeyPem"`
		} `json:"publicKey"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxActorDocument)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode actor %s: %w", actorURL, err)
	}
	if doc.Inbox == "" {
		return nil, fmt.Errorf("actor %s: missing inbox", actorURL)
	}
	if doc.ID == "" {
		doc.ID = actorURL
	}
	return &RemoteActor{
		ID:           doc.ID,
		Inbox:        doc.Inbox,
		SharedInbox:  doc.Endpoints.SharedInbox,
		PublicKeyPEM: doc.PublicKey.PublicKeyPem,
	}, nil
}
