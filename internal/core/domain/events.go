package domain

import "time"

// UserRegisteredEvent represents the payload for dreamwise.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	RegisteredAt time.Time
}

// ResourceAction names what happened to an owned resource.
type ResourceAction string

const (
	ActionCreated   ResourceAction = "created"
	ActionUpdated   ResourceAction = "updated"
	ActionDeleted   ResourceAction = "deleted"
	ActionModerated ResourceAction = "moderated"
)

// JournalEntryEvent represents the payload for dreamwise.journal.entry.* messages.
type JournalEntryEvent struct {
	EventID    string
	Action     ResourceAction
	EntryID    string
	OwnerID    string
	ActorID    string
	Privacy    Privacy
	OccurredAt time.Time
}

// PostEvent represents the payload for dreamwise.community.post.* messages.
type PostEvent struct {
	EventID    string
	Action     ResourceAction
	PostID     string
	AuthorID   string
	ActorID    string
	Pinned     bool
	Featured   bool
	OccurredAt time.Time
}

// EmailRequestedEvent asks the mail worker to deliver a templated message.
type EmailRequestedEvent struct {
	EventID     string
	Template    string
	Email       string
	Username    string
	Code        string
	RequestedAt time.Time
}
