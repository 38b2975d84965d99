package domain

import "time"

type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

// Friendship is the single relationship record between two users. The
// requester is whoever made first contact; at most one record exists per
// unordered pair.
type Friendship struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	RecipientID string           `json:"recipient_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Involves reports whether userID is one of the two parties.
func (f Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.RecipientID == userID
}

// Counterpart returns the other party of the relationship.
func (f Friendship) Counterpart(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}

// FriendRequest is a pending friendship together with the other user.
type FriendRequest struct {
	Friendship
	User UserSummary `json:"user"`
}

type PendingRequests struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}
