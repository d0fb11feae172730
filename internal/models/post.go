package models

import "time"

// Post is a feed entry. Author is a denormalized copy and goes stale when the
// author edits their profile until the next full fetch.
type Post struct {
	ID        string      `json:"_id"`
	Author    UserSummary `json:"author"`
	Content   string      `json:"content,omitempty"`
	Images    []string    `json:"images"`
	Likes     []string    `json:"likes"`
	Comments  []Comment   `json:"comments"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        string      `json:"_id"`
	PostID    string      `json:"postId"`
	Author    UserSummary `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// IsLikedBy reports whether userID is in p's likes.
func (p *Post) IsLikedBy(userID string) bool {
	return ContainsID(p.Likes, userID)
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	c := p
	if p.Images != nil {
		c.Images = append(make([]string, 0, len(p.Images)), p.Images...)
	}
	c.Likes = CloneIDs(p.Likes)
	if p.Comments != nil {
		c.Comments = append(make([]Comment, 0, len(p.Comments)), p.Comments...)
	}
	return c
}

// ClonePosts deep-copies a post list.
func ClonePosts(posts []Post) []Post {
	if posts == nil {
		return nil
	}
	out := make([]Post, len(posts))
	for i := range posts {
		out[i] = posts[i].Clone()
	}
	return out
}

// Upload is a file attached to a multipart request.
type Upload struct {
	Filename string
	Data     []byte
}

// PostPayload is the body of a create or update.
type PostPayload struct {
	Content string
	Images  []Upload
}

// UserPosts is a profile page: the profile plus that user's posts.
type UserPosts struct {
	User  Profile `json:"user"`
	Posts []Post  `json:"posts"`
}
