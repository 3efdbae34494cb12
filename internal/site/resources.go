package site

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/media"
)

type fieldKind string

const (
	kindText     fieldKind = "text"
	kindTextarea fieldKind = "textarea"
	kindDate     fieldKind = "date"
	kindURL      fieldKind = "url"
	kindFile     fieldKind = "file"
	kindFiles    fieldKind = "files"
)

type formField struct {
	Name     string
	Label    string
	Kind     fieldKind
	Required bool
}

func (f formField) IsFile() bool {
	return f.Kind == kindFile || f.Kind == kindFiles
}

// resourceDef describes one admin collection: its form and the columns
// shown in its table.
type resourceDef struct {
	Name     string
	Title    string
	Singular string
	Fields   []formField
	Columns  []string
}

var resourceDefs = map[string]resourceDef{
	client.ResourceSkills: {
		Name: client.ResourceSkills, Title: "Skills", Singular: "Skill",
		Fields: []formField{
			{Name: "name", Label: "Name", Kind: kindText, Required: true},
			{Name: "level", Label: "Level", Kind: kindText, Required: true},
			{Name: "image", Label: "Image", Kind: kindFile},
		},
		Columns: []string{"name", "level"},
	},
	client.ResourceCertificates: {
		Name: client.ResourceCertificates, Title: "Certificates", Singular: "Certificate",
		Fields: []formField{
			{Name: "title", Label: "Title", Kind: kindText, Required: true},
			{Name: "organization", Label: "Organization", Kind: kindText, Required: true},
			{Name: "date", Label: "Date", Kind: kindDate, Required: true},
			{Name: "description", Label: "Description", Kind: kindTextarea, Required: true},
			{Name: "image", Label: "Image", Kind: kindFile},
		},
		Columns: []string{"title", "organization", "date"},
	},
	client.ResourceTestimonials: {
		Name: client.ResourceTestimonials, Title: "Testimonials", Singular: "Testimonial",
		Fields: []formField{
			{Name: "name", Label: "Name", Kind: kindText, Required: true},
			{Name: "position", Label: "Position", Kind: kindText},
			{Name: "company", Label: "Company", Kind: kindText},
			{Name: "testimonial", Label: "Testimonial", Kind: kindTextarea, Required: true},
			{Name: "companyLogo", Label: "Company logo", Kind: kindFile},
			{Name: "image", Label: "Photo", Kind: kindFile},
		},
		Columns: []string{"name", "company", "testimonial"},
	},
	client.ResourceProjects: {
		Name: client.ResourceProjects, Title: "Projects", Singular: "Project",
		Fields: []formField{
			{Name: "name", Label: "Name", Kind: kindText, Required: true},
			{Name: "description", Label: "Description", Kind: kindTextarea, Required: true},
			{Name: "githubLink", Label: "GitHub link", Kind: kindURL, Required: true},
			{Name: "images", Label: "Images", Kind: kindFiles},
		},
		Columns: []string{"name", "githubLink"},
	},
	client.ResourceBlogs: {
		Name: client.ResourceBlogs, Title: "Blog posts", Singular: "Blog post",
		Fields: []formField{
			{Name: "title", Label: "Title", Kind: kindText, Required: true},
			{Name: "author", Label: "Author", Kind: kindText, Required: true},
			{Name: "tags", Label: "Tags (comma separated)", Kind: kindText},
			{Name: "date", Label: "Date", Kind: kindDate},
			{Name: "content", Label: "Content", Kind: kindTextarea, Required: true},
			{Name: "image", Label: "Cover image", Kind: kindFile},
			{Name: "authorAvatar", Label: "Author avatar", Kind: kindFile},
		},
		Columns: []string{"title", "author", "date"},
	},
}

// orderedResources is the dashboard order.
var orderedResources = []string{
	client.ResourceSkills,
	client.ResourceCertificates,
	client.ResourceTestimonials,
	client.ResourceProjects,
	client.ResourceBlogs,
}

// readForm copies the browser's form into an API request body. Empty file
// inputs are skipped so that an update keeps the stored image. The returned
// closer releases the uploaded files.
func readForm(r *http.Request, def resourceDef, maxMemory int64) (client.Form, func(), error) {
	form := client.Form{Fields: url.Values{}}
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return form, closeAll, xerrors.New(err)
	}

	for _, field := range def.Fields {
		if !field.IsFile() {
			if values, ok := r.PostForm[field.Name]; ok {
				form.Fields[field.Name] = values
			}
			continue
		}
		if r.MultipartForm == nil {
			continue
		}
		for _, fh := range r.MultipartForm.File[field.Name] {
			if fh.Size == 0 || fh.Filename == "" {
				continue
			}
			f, err := fh.Open()
			if err != nil {
				closeAll()
				return form, func() {}, xerrors.New(err)
			}
			opened = append(opened, f)
			form.Files = append(form.Files, client.FileField{Field: field.Name, Filename: fh.Filename, Content: f})
		}
	}
	return form, closeAll, nil
}

// recordField formats a record value for a table cell.
func recordField(rec client.Record, key string) string {
	switch v := rec[key].(type) {
	case nil:
		return ""
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.Format("Jan 2, 2006")
		}
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// recordFieldValue formats a record value for a form input.
func recordFieldValue(rec client.Record, field formField) string {
	v := recordField(rec, field.Name)
	if field.Kind == kindDate {
		if raw, ok := rec[field.Name].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return t.Format(time.DateOnly)
			}
			return raw
		}
	}
	return v
}

func isImagePath(s string) bool {
	return strings.HasPrefix(s, media.PublicPrefix) || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func findRecord(records []client.Record, id string) client.Record {
	for _, rec := range records {
		if recordField(rec, "_id") == id {
			return rec
		}
	}
	return nil
}
