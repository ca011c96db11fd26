package activitypub

import (
	json "github.com/goccy/go-json"
)

const (
	ContextActivityStreams = "https://www.w3.org/ns/activitystreams"
	ContextSecurity        = "https://w3id.org/security/v1"
	PublicCollection       = "https://www.w3.org/ns/activitystreams#Public"

	ContentType    = "application/activity+json"
	JRDContentType = "application/jrd+json"
	// AcceptHeader is sent when dereferencing remote actors.
	AcceptHeader = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

type Actor struct {
	Context           []string   `json:"@context"`
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	Name              string     `json:"name"`
	Summary           string     `json:"summary"`
	PreferredUsername string     `json:"preferredUsername"`
	URL               string     `json:"url"`
	Inbox             string     `json:"inbox"`
	Outbox            string     `json:"outbox"`
	Followers         string     `json:"followers"`
	Endpoints         *Endpoints `json:"endpoints,omitempty"`
	PublicKey         *PublicKey `json:"publicKey,omitempty"`
}

type Endpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// EventObject is the federated rendition of a stored event.
type EventObject struct {
	Context      []string `json:"@context,omitempty"`
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Summary      string   `json:"summary"`
	Content      string   `json:"content"`
	MediaType    string   `json:"mediaType"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime,omitempty"`
	Location     *Place   `json:"location,omitempty"`
	URL          string   `json:"url"`
	Published    string   `json:"published"`
	Updated      string   `json:"updated"`
	AttributedTo string   `json:"attributedTo"`
	To           []string `json:"to,omitempty"`
	Tag          []Tag    `json:"tag,omitempty"`
}

type Place struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type Tag struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Activity is an outbound activity. Object is either a nested value or the
// raw JSON of an activity being answered.
type Activity struct {
	Context   []string    `json:"@context,omitempty"`
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Actor     string      `json:"actor"`
	Published string      `json:"published,omitempty"`
	To        []string    `json:"to,omitempty"`
	Object    interface{} `json:"object"`
}

type OrderedCollection struct {
	Context      []string    `json:"@context"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	TotalItems   int64       `json:"totalItems"`
	First        string      `json:"first,omitempty"`
	Last         string      `json:"last,omitempty"`
	OrderedItems []*Activity `json:"orderedItems,omitempty"`
}

type OrderedCollectionPage struct {
	Context      []string    `json:"@context"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	PartOf       string      `json:"partOf"`
	TotalItems   int64       `json:"totalItems"`
	Next         string      `json:"next,omitempty"`
	Prev         string      `json:"prev,omitempty"`
	OrderedItems []*Activity `json:"orderedItems"`
}

type Webfinger struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases"`
	Links   []WebfingerLink `json:"links"`
}

type WebfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// incoming is the loosely typed shape of an inbound activity. Actor and
// Object may be either a bare IRI or an embedded object.
type incoming struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     json.RawMessage `json:"actor"`
	Object    json.RawMessage `json:"object"`
	InReplyTo json.RawMessage `json:"inReplyTo"`
}

type incomingObject struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     json.RawMessage `json:"actor"`
	URL       json.RawMessage `json:"url"`
	Content   string          `json:"content"`
	Published string          `json:"published"`
	InReplyTo json.RawMessage `json:"inReplyTo"`
	Object    json.RawMessage `json:"object"`
}

// iri extracts an identifier from a value that may be a string, an object
// with "id" or "href", or an array of either. The first usable entry wins.
func iri(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ID   string `json:"id"`
		Href string `json:"href"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ID != "" {
			return obj.ID
		}
		return obj.Href
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if v := iri(item); v != "" {
				return v
			}
		}
	}
	return ""
}
