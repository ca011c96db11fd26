package activitypub

import (
	"net/url"
	"strconv"
	"strings"
)

// URLs derives every public identifier of the local actor from the base URL.
type URLs struct {
	base string
}

func NewURLs(publicURL string) URLs {
	return URLs{base: strings.TrimRight(publicURL, "/")}
}

func (u URLs) Base() string      { return u.base }
func (u URLs) Actor() string     { return u.base + "/activitypub/actor" }
func (u URLs) Inbox() string     { return u.base + "/activitypub/inbox" }
func (u URLs) Outbox() string    { return u.base + "/activitypub/outbox" }
func (u URLs) Followers() string { return u.base + "/activitypub/followers" }
func (u URLs) KeyID() string     { return u.Actor() + "#main-key" }

func (u URLs) OutboxPage(n int) string {
	return u.Outbox() + "?page=" + strconv.Itoa(n)
}

func (u URLs) Activity(eventID int64) string {
	return u.base + "/activitypub/activity/" + strconv.FormatInt(eventID, 10)
}

func (u URLs) EventObject(eventID int64) string {
	return u.base + "/activitypub/event/" + strconv.FormatInt(eventID, 10)
}

func (u URLs) EventPage(eventID int64) string {
	return u.base + "/event/" + strconv.FormatInt(eventID, 10)
}

// Host is the bare host name used in the acct: identifier.
func (u URLs) Host() string {
	if p, err := url.Parse(u.base); err == nil && p.Hostname() != "" {
		return p.Hostname()
	}
	if p, err := url.Parse("https://" + u.base); err == nil && p.Hostname() != "" {
		return p.Hostname()
	}
	return u.base
}
