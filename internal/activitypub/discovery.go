package activitypub

import (
	"context"
	"errors"

	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
)

var (
	// ErrNotFound is returned for unknown WebFinger resources and events.
	ErrNotFound = errors.New("activitypub: not found")
)

// Identity describes the single local service actor.
type Identity struct {
	Username    string
	DisplayName string
	Summary     string
}

// Discovery renders the local actor and answers WebFinger lookups. It keeps
// no state beyond its configuration.
type Discovery struct {
	urls      URLs
	identity  Identity
	publicPEM string
	followers repository.FollowerRepository
}

func NewDiscovery(urls URLs, identity Identity, publicPEM string, followers repository.FollowerRepository) *Discovery {
	return &Discovery{urls: urls, identity: identity, publicPEM: publicPEM, followers: followers}
}

func (d *Discovery) Actor() *Actor {
	return &Actor{
		Context:           []string{ContextActivityStreams, ContextSecurity},
		ID:                d.urls.Actor(),
		Type:              "Service",
		Name:              d.identity.DisplayName,
		Summary:           d.identity.Summary,
		PreferredUsername: d.identity.Username,
		URL:               d.urls.Base(),
		Inbox:             d.urls.Inbox(),
		Outbox:            d.urls.Outbox(),
		Followers:         d.urls.Followers(),
		Endpoints:         &Endpoints{SharedInbox: d.urls.Inbox()},
		PublicKey: &PublicKey{
			ID:           d.urls.KeyID(),
			Owner:        d.urls.Actor(),
			PublicKeyPem: d.publicPEM,
		},
	}
}

// Subject is the acct: identifier of the local actor.
func (d *Discovery) Subject() string {
	return "acct:" + d.identity.Username + "@" + d.urls.Host()
}

func (d *Discovery) Webfinger(resource string) (*Webfinger, error) {
	subject := d.Subject()
	actor := d.urls.Actor()
	if resource != subject && resource != actor {
		return nil, ErrNotFound
	}
	return &Webfinger{
		Subject: subject,
		Aliases: []string{actor},
		Links: []WebfingerLink{
			{Rel: "self", Type: ContentType, Href: actor},
		},
	}, nil
}

// Followers exposes only the follower count.
func (d *Discovery) Followers(ctx context.Context) (*OrderedCollection, error) {
	n, err := d.followers.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &OrderedCollection{
		Context:    []string{ContextActivityStreams},
		ID:         d.urls.Followers(),
		Type:       "OrderedCollection",
		TotalItems: n,
	}, nil
}
