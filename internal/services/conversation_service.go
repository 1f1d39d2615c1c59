package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/classifieds/backend/internal/metrics"
	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/realtime"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/google/uuid"
)

// MaxMessageLength is the longest message body accepted, in characters
const MaxMessageLength = 2000

// Publisher announces conversation changes to realtime subscribers
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// UnreadSummary is the caller's unread state across all conversations
type UnreadSummary struct {
	Total          int64            `json:"total"`
	ByConversation map[string]int64 `json:"by_conversation"`
}

type ConversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	listings      repositories.ListingRepository
	profiles      repositories.ProfileRepository
	publisher     Publisher
	now           func() time.Time
}

func NewConversationService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	listings repositories.ListingRepository,
	profiles repositories.ProfileRepository,
	publisher Publisher,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		listings:      listings,
		profiles:      profiles,
		publisher:     publisher,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// DefaultGreeting is the first message when the buyer does not write one
func DefaultGreeting(listingTitle string) string {
	return "Hello! I'm interested in the listing: " + listingTitle
}

// Start returns the caller's conversation with the seller of a listing, creating it with a seed
// message when none exists. created reports whether this call created it.
func (s *ConversationService) Start(ctx context.Context, sess *session.Session, listingID, message string) (conv *models.Conversation, created bool, err error) {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, false, invalid(fmt.Sprintf("Message must be at most %d characters", MaxMessageLength))
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, false, err
	}
	if !listing.IsPublic() && listing.OwnerID != sess.UserID {
		return nil, false, ErrNotFound
	}
	if listing.OwnerID == sess.UserID {
		return nil, false, ErrSelfConversation
	}

	existing, err := s.conversations.FindByTriple(ctx, listingID, sess.UserID, listing.OwnerID)
	if err == nil {
		metrics.ConversationsStarted.WithLabelValues("reused").Inc()
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, fmt.Errorf("ConversationService.Start: lookup: %w", err)
	}

	if message == "" {
		message = DefaultGreeting(listing.Title)
	}
	now := s.now()
	conv = &models.Conversation{
		ID:        newID(),
		ListingID: listingID,
		BuyerID:   sess.UserID,
		SellerID:  listing.OwnerID,
		CreatedAt: now,
	}
	seed := &models.Message{
		ID:        newID(),
		SenderID:  sess.UserID,
		Content:   message,
		CreatedAt: now,
	}

	conv, created, err = s.conversations.CreateWithSeed(ctx, conv, seed)
	if err != nil {
		return nil, false, fmt.Errorf("ConversationService.Start: create: %w", err)
	}
	if !created {
		metrics.ConversationsStarted.WithLabelValues("reused").Inc()
		return conv, false, nil
	}

	metrics.ConversationsStarted.WithLabelValues("created").Inc()
	metrics.MessagesSent.Inc()
	s.publish(ctx, conv.ID, seed.ID)
	return conv, true, nil
}

// List returns the caller's conversations, most recent activity first, each with its listing,
// the other participant and the caller's unread count
func (s *ConversationService) List(ctx context.Context, sess *session.Session) ([]models.ConversationView, error) {
	convs, err := s.conversations.ListForUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("ConversationService.List: %w", err)
	}
	if len(convs) == 0 {
		return []models.ConversationView{}, nil
	}

	unread, err := s.messages.UnreadCounts(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("ConversationService.List: unread counts: %w", err)
	}
	return s.enrich(ctx, sess.UserID, convs, unread)
}

// Get returns one conversation the caller takes part in
func (s *ConversationService) Get(ctx context.Context, sess *session.Session, id string) (*models.ConversationView, error) {
	conv, err := s.authorize(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	count, err := s.messages.UnreadCount(ctx, id, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("ConversationService.Get: unread count: %w", err)
	}

	views, err := s.enrich(ctx, sess.UserID, []models.Conversation{*conv}, map[string]int64{id: count})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Authorize returns the conversation when the caller takes part in it
func (s *ConversationService) Authorize(ctx context.Context, sess *session.Session, id string) (*models.Conversation, error) {
	return s.authorize(ctx, sess, id)
}

func (s *ConversationService) authorize(ctx context.Context, sess *session.Session, id string) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(sess.UserID) {
		return nil, ErrForbidden
	}
	return conv, nil
}

func (s *ConversationService) enrich(ctx context.Context, viewerID string, convs []models.Conversation, unread map[string]int64) ([]models.ConversationView, error) {
	listingIDs := make([]string, 0, len(convs))
	profileIDs := make([]string, 0, len(convs))
	for i := range convs {
		listingIDs = append(listingIDs, convs[i].ListingID)
		profileIDs = append(profileIDs, convs[i].Counterpart(viewerID))
	}

	listings, err := s.listings.GetByIDs(ctx, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("ConversationService: listings: %w", err)
	}
	profiles, err := s.profiles.GetByIDs(ctx, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("ConversationService: profiles: %w", err)
	}

	views := make([]models.ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := models.ConversationView{Conversation: conv, UnreadCount: unread[conv.ID]}
		if l, ok := listings[conv.ListingID]; ok {
			summary := l.ToSummary()
			view.Listing = &summary
		}
		if p, ok := profiles[conv.Counterpart(viewerID)]; ok {
			compact := p.ToCompact()
			view.Counterpart = &compact
		}
		views = append(views, view)
	}
	return views, nil
}

// Thread marks the caller's incoming messages read and returns the thread oldest first.
// A non-empty afterID returns only messages newer than it.
func (s *ConversationService) Thread(ctx context.Context, sess *session.Session, id, afterID string) ([]models.Message, error) {
	if _, err := s.authorize(ctx, sess, id); err != nil {
		return nil, err
	}
	if afterID != "" {
		parsed, err := uuid.Parse(afterID)
		if err != nil {
			return nil, invalid("after must be a message id")
		}
		// ids are compared as stored text, so only the canonical form orders correctly
		afterID = parsed.String()
	}

	if _, err := s.messages.MarkRead(ctx, id, sess.UserID); err != nil {
		return nil, fmt.Errorf("ConversationService.Thread: mark read: %w", err)
	}
	messages, err := s.messages.ListByConversation(ctx, id, afterID)
	if err != nil {
		return nil, fmt.Errorf("ConversationService.Thread: %w", err)
	}
	return messages, nil
}

// Send appends a message from the caller and notifies subscribers
func (s *ConversationService) Send(ctx context.Context, sess *session.Session, id, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, invalid(fmt.Sprintf("Message must be at most %d characters", MaxMessageLength))
	}
	if _, err := s.authorize(ctx, sess, id); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             newID(),
		ConversationID: id,
		SenderID:       sess.UserID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("ConversationService.Send: %w", err)
	}

	metrics.MessagesSent.Inc()
	s.publish(ctx, id, msg.ID)
	return msg, nil
}

// MarkRead flags the caller's incoming messages in a conversation read
func (s *ConversationService) MarkRead(ctx context.Context, sess *session.Session, id string) (int64, error) {
	if _, err := s.authorize(ctx, sess, id); err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, id, sess.UserID)
}

// UnreadCount counts the caller's unread incoming messages in one conversation
func (s *ConversationService) UnreadCount(ctx context.Context, sess *session.Session, id string) (int64, error) {
	if _, err := s.authorize(ctx, sess, id); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, id, sess.UserID)
}

// Unread sums the caller's unread incoming messages over every conversation
func (s *ConversationService) Unread(ctx context.Context, sess *session.Session) (*UnreadSummary, error) {
	counts, err := s.messages.UnreadCounts(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	summary := &UnreadSummary{ByConversation: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

// publish is fire-and-forget: the message is already stored and clients can refetch
func (s *ConversationService) publish(ctx context.Context, conversationID, messageID string) {
	if s.publisher == nil {
		return
	}
	ev := realtime.Event{Type: realtime.EventMessageNew, ConversationID: conversationID, MessageID: messageID}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("realtime: failed to publish %s for %s: %v", ev.Type, conversationID, err)
	}
}

// newID returns a time-ordered UUIDv7 string
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
