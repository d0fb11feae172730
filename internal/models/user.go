// Package models contains data structures for the application's domain models.
package models

import "time"

// UserSummary is the denormalized user shape embedded in posts, comments and
// follow lists.
type UserSummary struct {
	ID             string `json:"_id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	ProfilePicture string `json:"profilePicture,omitempty" yaml:"profile_picture,omitempty"`
	Private        bool   `json:"private,omitempty" yaml:"private,omitempty"`
}

// User is the authenticated user's full profile including social-graph edges.
type User struct {
	ID               string        `json:"_id"`
	Name             string        `json:"name"`
	Email            string        `json:"email,omitempty"`
	ProfilePicture   string        `json:"profilePicture,omitempty"`
	Private          bool          `json:"private"`
	LikedPosts       []string      `json:"likedPosts"`
	Followers        []string      `json:"followers"`
	Followings       []UserSummary `json:"followings"`
	FollowerRequests []string      `json:"followerRequests"`
	SentRequests     []string      `json:"sentRequests"`
}

// Summary returns the denormalized form of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		Private:        u.Private,
	}
}

// IsFollowing reports whether id is in u's followings.
func (u *User) IsFollowing(id string) bool {
	for _, f := range u.Followings {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.LikedPosts = CloneIDs(u.LikedPosts)
	c.Followers = CloneIDs(u.Followers)
	c.FollowerRequests = CloneIDs(u.FollowerRequests)
	c.SentRequests = CloneIDs(u.SentRequests)
	if u.Followings != nil {
		c.Followings = append(make([]UserSummary, 0, len(u.Followings)), u.Followings...)
	}
	return &c
}

// Profile is another user's public profile as served by the profile endpoint.
// Private profiles only expose the counts.
type Profile struct {
	ID              string        `json:"_id"`
	Name            string        `json:"name"`
	ProfilePicture  string        `json:"profilePicture,omitempty"`
	Private         bool          `json:"private"`
	Followers       []string      `json:"followers,omitempty"`
	Followings      []UserSummary `json:"followings,omitempty"`
	FollowersCount  int           `json:"followersCount"`
	FollowingsCount int           `json:"followingsCount"`
	PostsCount      int           `json:"postsCount"`
}

// Credentials are submitted on login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is submitted on account creation.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfilePatch is the editable subset of the current user's profile.
// A nil field is left unchanged by the server.
type ProfilePatch struct {
	Name           *string
	Private        *bool
	ProfilePicture *Upload
}

// ProfileFields is the server's answer to a profile edit.
type ProfileFields struct {
	Name           string `json:"name"`
	Private        bool   `json:"private"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// FollowResult is the server's answer to a follow.
type FollowResult struct {
	User UserSummary `json:"user"`
}

// AcceptResult carries the authoritative sets after accepting a request.
type AcceptResult struct {
	FollowerRequests []string `json:"followerRequests"`
	Followers        []string `json:"followers"`
}

// SessionRecord is the persisted form of a logged-in session.
type SessionRecord struct {
	User    UserSummary `json:"user" yaml:"user"`
	Token   string      `json:"token,omitempty" yaml:"token,omitempty"`
	SavedAt time.Time   `json:"savedAt" yaml:"saved_at"`
}
