package activitypub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

// ErrBadActivity marks payloads that are rejected with 400.
var ErrBadActivity = errors.New("activitypub: bad activity")

// AcceptSender delivers the Accept that answers a Follow.
type AcceptSender interface {
	DeliverAccept(ctx context.Context, inbox string, follow json.RawMessage) error
}

// Inbox validates, audits and dispatches inbound activities.
type Inbox struct {
	urls      URLs
	events    repository.EventRepository
	audit     repository.InboxActivityRepository
	followers repository.FollowerRepository
	rsvps     repository.RSVPRepository
	fetcher   ActorFetcher
	accepts   AcceptSender
}

func NewInbox(urls URLs, repo *repository.Repository, fetcher ActorFetcher, accepts AcceptSender) *Inbox {
	return &Inbox{
		urls:      urls,
		events:    repo.Events,
		audit:     repo.Inbox,
		followers: repo.Followers,
		rsvps:     repo.RSVPs,
		fetcher:   fetcher,
		accepts:   accepts,
	}
}

// parsed is a validated inbound activity.
type parsed struct {
	raw      json.RawMessage
	id       string
	kind     Kind
	typeName string
	actor    string
	object   incomingObject
	objectID string
	replyTo  string
	eventID  *int64
}

// Receive processes one inbound payload. Errors wrapping ErrBadActivity are
// client errors; any other error is a storage failure.
func (in *Inbox) Receive(ctx context.Context, body []byte) error {
	act, err := parse(in.urls, body)
	if err != nil {
		metrics.RecordInboxRejected("invalid")
		return err
	}

	if err := in.audit.Insert(ctx, act.auditRow()); err != nil {
		return fmt.Errorf("audit activity %s: %w", act.id, err)
	}
	metrics.RecordInbox(act.kind.String())

	switch act.kind {
	case KindFollow:
		return in.follow(ctx, act)
	case KindUndo:
		return in.undo(ctx, act)
	case KindAccept, KindTentativeAccept, KindReject:
		return in.rsvp(ctx, act)
	default:
		// Like, Announce, replies and unknown types are audit-only.
		return nil
	}
}

func parse(urls URLs, body []byte) (*parsed, error) {
	var msg incoming
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadActivity, err)
	}
	act := &parsed{
		raw:      json.RawMessage(body),
		id:       strings.TrimSpace(msg.ID),
		typeName: strings.TrimSpace(msg.Type),
		actor:    iri(msg.Actor),
	}
	switch {
	case act.id == "":
		return nil, fmt.Errorf("%w: missing id", ErrBadActivity)
	case act.typeName == "":
		return nil, fmt.Errorf("%w: missing type", ErrBadActivity)
	case act.actor == "":
		return nil, fmt.Errorf("%w: missing actor", ErrBadActivity)
	}
	act.kind = ParseKind(act.typeName)

	// object may be a bare IRI or an embedded object
	act.objectID = iri(msg.Object)
	if len(msg.Object) > 0 && msg.Object[0] == '{' {
		_ = json.Unmarshal(msg.Object, &act.object)
	}
	act.replyTo = iri(act.object.InReplyTo)
	if act.replyTo == "" {
		act.replyTo = iri(msg.InReplyTo)
	}
	if id, ok := urls.ResolveEventID(act.replyTo, act.objectID, iri(act.object.URL)); ok {
		act.eventID = &id
	}
	return act, nil
}

func (a *parsed) auditRow() *model.InboxActivity {
	row := &model.InboxActivity{
		ActivityID:   a.id,
		ActivityType: a.typeName,
		ActorID:      a.actor,
		EventID:      a.eventID,
		Payload:      datatypes.JSON(a.raw),
	}
	row.ObjectID = optional(a.objectID)
	row.ObjectType = optional(a.object.Type)
	row.ObjectURL = optional(iri(a.object.URL))
	row.ObjectContent = optional(a.object.Content)
	row.InReplyTo = optional(a.replyTo)
	if t, err := time.Parse(time.RFC3339, a.object.Published); err == nil {
		t = t.UTC()
		row.ObjectPublished = &t
	}
	return row
}

func (in *Inbox) follow(ctx context.Context, act *parsed) error {
	if act.objectID != in.urls.Actor() {
		logger.Debug("follow for another actor ignored",
			zap.String("activity_id", act.id), zap.String("object", act.objectID))
		return nil
	}

	remote, err := in.fetcher.FetchActor(ctx, act.actor)
	if err != nil {
		logger.Warn("follow: remote actor fetch failed",
			zap.String("actor", act.actor), zap.Error(err))
		return fmt.Errorf("%w: resolve actor: %v", ErrBadActivity, err)
	}

	f := &model.Follower{
		ActorID:  act.actor,
		ActorURL: remote.ID,
		InboxURL: remote.Inbox,
	}
	f.SharedInboxURL = optional(remote.SharedInbox)
	f.PublicKeyPEM = optional(remote.PublicKeyPEM)
	if err := in.followers.Upsert(ctx, f); err != nil {
		return fmt.Errorf("upsert follower: %w", err)
	}
	logger.Info("new follower", zap.String("actor", act.actor), zap.String("inbox", f.DeliveryInbox()))

	if err := in.accepts.DeliverAccept(ctx, remote.DeliveryInbox(), act.raw); err != nil {
		logger.Warn("follow: accept delivery failed",
			zap.String("actor", act.actor),
			zap.String("inbox", remote.DeliveryInbox()),
			zap.Error(err))
	}
	return nil
}

func (in *Inbox) undo(ctx context.Context, act *parsed) error {
	if ParseKind(act.object.Type) != KindFollow {
		return nil
	}
	if err := in.followers.Delete(ctx, act.actor); err != nil {
		return fmt.Errorf("delete follower: %w", err)
	}
	logger.Info("follower removed", zap.String("actor", act.actor))
	return nil
}

func (in *Inbox) rsvp(ctx context.Context, act *parsed) error {
	rsvpType, _ := act.kind.RSVP()
	if act.eventID == nil {
		logger.Debug("rsvp without a local event ignored", zap.String("activity_id", act.id))
		return nil
	}
	if _, err := in.events.Get(ctx, *act.eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Debug("rsvp for unknown event ignored",
				zap.String("activity_id", act.id), zap.Int64("event_id", *act.eventID))
			return nil
		}
		return fmt.Errorf("lookup event %d: %w", *act.eventID, err)
	}
	r := &model.RSVP{
		EventID:    *act.eventID,
		ActorID:    act.actor,
		RSVPType:   rsvpType,
		ActivityID: act.id,
		ObjectID:   optional(act.objectID),
		Payload:    datatypes.JSON(act.raw),
	}
	if err := in.rsvps.Upsert(ctx, r); err != nil {
		return fmt.Errorf("upsert rsvp: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
