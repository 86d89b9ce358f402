package models

type GenerationRecord struct {
	ID        string       `json:"id"`
	Timestamp int64        `json:"timestamp"`
	DocType   DocumentType `json:"docType"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
}

type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

type ChatMessage struct {
	Role               string      `json:"role"`
	Text               string      `json:"text"`
	Sources            []WebSource `json:"sources,omitempty"`
	Timestamp          int64       `json:"timestamp,omitempty"`
	SharedGenerationID string      `json:"sharedGenerationId,omitempty"`
}

// FavoriteService is a shortcut to a document type, optionally pinned to an
// audience age.
type FavoriteService struct {
	DocType DocumentType `json:"docType"`
	Age     *int         `json:"age,omitempty"`
}

// Equal compares by value. An absent age differs from any present age.
func (f FavoriteService) Equal(o FavoriteService) bool {
	if f.DocType != o.DocType {
		return false
	}
	if f.Age == nil || o.Age == nil {
		return f.Age == nil && o.Age == nil
	}
	return *f.Age == *o.Age
}

func (f FavoriteService) clone() FavoriteService {
	if f.Age == nil {
		return f
	}
	age := *f.Age
	return FavoriteService{DocType: f.DocType, Age: &age}
}
