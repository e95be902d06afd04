package domain

import "time"

// PostCategory groups community posts by topic.
type PostCategory string

const (
	PostCategoryGeneral        PostCategory = "general"
	PostCategoryInterpretation PostCategory = "interpretation"
	PostCategoryExperience     PostCategory = "experience"
	PostCategoryQuestion       PostCategory = "question"
	PostCategoryDiscussion     PostCategory = "discussion"
)

// Valid reports whether the category is known.
func (c PostCategory) Valid() bool {
	switch c {
	case PostCategoryGeneral, PostCategoryInterpretation, PostCategoryExperience, PostCategoryQuestion, PostCategoryDiscussion:
		return true
	}
	return false
}

// PostType describes the shape of a community post.
type PostType string

const (
	PostTypeDiscussion PostType = "discussion"
	PostTypeQuestion   PostType = "question"
	PostTypeDreamShare PostType = "dream_share"
	PostTypeInsight    PostType = "insight"
)

// Valid reports whether the post type is known.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeDiscussion, PostTypeQuestion, PostTypeDreamShare, PostTypeInsight:
		return true
	}
	return false
}

// Post is a community post authored by a principal.
type Post struct {
	ID                   string
	AuthorID             string
	Title                string
	Content              string
	Category             PostCategory
	PostType             PostType
	Tags                 []string
	SpiritualPerspective string
	JournalEntryID       *string
	Pinned               bool
	Featured             bool
	ViewCount            int
	Status               ResourceStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// OwnerID implements Owned.
func (p Post) OwnerID() string { return p.AuthorID }

// IsDeleted reports whether the post was soft-deleted.
func (p Post) IsDeleted() bool { return p.Status == StatusDeleted }

// PostFilter narrows community listings. Listings always exclude deleted posts.
type PostFilter struct {
	AuthorID             string
	Category             PostCategory
	PostType             PostType
	Tag                  string
	SpiritualPerspective string
	Search               string
	Featured             *bool
	Page                 Page
}
