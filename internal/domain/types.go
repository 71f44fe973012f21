package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidType  = errors.New("invalid resource type")
	ErrInvalidInput = errors.New("invalid resource input")
)

// ResourceType is the kind of a learning resource
type ResourceType string

const (
	TypeArticle ResourceType = "Article"
	TypeVideo   ResourceType = "Video"
	TypeQuiz    ResourceType = "Quiz"
	TypeBook    ResourceType = "Book"
	TypeCourse  ResourceType = "Course"
)

// ResourceTypes lists every valid type in display order
var ResourceTypes = []ResourceType{TypeArticle, TypeVideo, TypeQuiz, TypeBook, TypeCourse}

// ParseResourceType matches s against the known types, ignoring case
func ParseResourceType(s string) (ResourceType, error) {
	for _, t := range ResourceTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Icon returns the glyph shown next to the type
func (t ResourceType) Icon() string {
	switch t {
	case TypeArticle:
		return "📄"
	case TypeVideo:
		return "🎥"
	case TypeQuiz:
		return "❓"
	case TypeBook:
		return "📖"
	case TypeCourse:
		return "🎓"
	default:
		return "📚"
	}
}

// User is an authenticated account
type User struct {
	ID        string    `json:"_id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	Verified  bool      `json:"isVerified" yaml:"verified"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// Category groups resources; names are unique per user
type Category struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Resource is a trackable learning item
type Resource struct {
	ID              string       `json:"_id"`
	Title           string       `json:"title"`
	Type            ResourceType `json:"type"`
	Category        *Category    `json:"category,omitempty"`
	Description     string       `json:"description,omitempty"`
	EstimatedTime   int          `json:"estimatedTime,omitempty"`
	IsCompleted     bool         `json:"isCompleted"`
	ActualTimeSpent *int         `json:"actualTimeSpent,omitempty"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// CategoryName returns the category name or "Uncategorized"
func (r *Resource) CategoryName() string {
	if r.Category == nil || r.Category.Name == "" {
		return "Uncategorized"
	}
	return r.Category.Name
}

// ResourceInput is the create/update payload
type ResourceInput struct {
	Title         string       `json:"title"`
	Type          ResourceType `json:"type"`
	Category      string       `json:"category"`
	Description   string       `json:"description,omitempty"`
	EstimatedTime int          `json:"estimatedTime"`
}

// Validate checks the fields the API requires
func (in ResourceInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := ParseResourceType(string(in.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if in.EstimatedTime < 0 {
		return fmt.Errorf("%w: estimated time must not be negative", ErrInvalidInput)
	}
	return nil
}

// CompleteRequest is the mark-complete payload
type CompleteRequest struct {
	ActualTimeSpent int `json:"actualTimeSpent"`
}

// CategoryStat is the per-category progress; ID holds the category name
type CategoryStat struct {
	ID                   string  `json:"_id"`
	Total                int     `json:"total"`
	Completed            int     `json:"completed"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// Summary aggregates a user's progress
type Summary struct {
	TotalResources     int            `json:"totalResources"`
	CompletedResources int            `json:"completedResources"`
	TotalTimeSpent     int            `json:"totalTimeSpent"`
	CategoryStats      []CategoryStat `json:"categoryStats"`
}

// InProgress is the number of resources not yet completed
func (s Summary) InProgress() int {
	return s.TotalResources - s.CompletedResources
}

// FormatMinutes renders minutes as "1h 30m", "2h" or "45m"
func FormatMinutes(minutes int) string {
	hrs := minutes / 60
	mins := minutes % 60

	switch {
	case hrs > 0 && mins > 0:
		return fmt.Sprintf("%dh %dm", hrs, mins)
	case hrs > 0:
		return fmt.Sprintf("%dh", hrs)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
