package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
)

type Skill struct {
	ID        uuid.UUID `json:"_id"`
	Name      string    `json:"name"`
	Level     string    `json:"level"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Certificate struct {
	ID           uuid.UUID `json:"_id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Date         string    `json:"date"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Testimonial struct {
	ID          uuid.UUID `json:"_id"`
	Name        string    `json:"name"`
	Position    string    `json:"position"`
	Company     string    `json:"company"`
	Testimonial string    `json:"testimonial"`
	CompanyLogo string    `json:"companyLogo"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Project struct {
	ID          uuid.UUID  `json:"_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	GithubLink  string     `json:"githubLink"`
	Images      StringList `json:"images"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Blog struct {
	ID           uuid.UUID  `json:"_id"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Author       string     `json:"author"`
	AuthorAvatar string     `json:"authorAvatar"`
	Tags         StringList `json:"tags"`
	Image        string     `json:"image"`
	Date         time.Time  `json:"date"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// StringList is stored as a JSON array in a text column so that both the
// postgres and sqlite schemas can hold it without an extra table.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, xerrors.New(err)
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return xerrors.Newf("models: cannot scan %T into StringList", src)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return xerrors.New(err)
	}
	if list == nil {
		list = []string{}
	}
	*l = list
	return nil
}

// MarshalJSON keeps empty lists as [] instead of null on the wire.
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}
