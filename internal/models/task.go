package models

// Category represents the kind of work a board task tracks.
type Category string

const (
	CategoryBug      Category = "bug"
	CategoryFeature  Category = "feature"
	CategoryRefactor Category = "refactor"
	CategoryDocs     Category = "docs"
	CategoryTest     Category = "test"
	CategoryChore    Category = "chore"
)

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	switch Category(s) {
	case CategoryBug, CategoryFeature, CategoryRefactor, CategoryDocs, CategoryTest, CategoryChore:
		return true
	}
	return false
}

// Task represents a board issue ready to be worked on.
// Tasks are created externally in the issue tracker; mill only ever
// moves them between columns.
type Task struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Labels   []string `json:"labels"`
	Column   string   `json:"column"`
	URL      string   `json:"url"`
	Category Category `json:"category,omitempty"`
}
