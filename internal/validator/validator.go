package validator

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

var EmailRX = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+\\/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

func (v *Validator) CheckNotBlank(value, key, message string) {
	v.Check(strings.TrimSpace(value) != "", key, message)
}

func (v *Validator) CheckEmail(email, message string) {
	v.Check(v.IsMatch(email, EmailRX), "email", message)
}

// CheckURL accepts absolute http and https URLs only.
func (v *Validator) CheckURL(value, key, message string) {
	u, err := url.Parse(value)
	v.Check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "", key, message)
}

func (v *Validator) CheckDate(value, key, message string) {
	_, err := time.Parse(time.DateOnly, value)
	v.Check(err == nil, key, message)
}

func (v *Validator) CheckMaxLength(value string, max int, key, message string) {
	v.Check(len([]rune(value)) <= max, key, message)
}

func (v *Validator) IsMatch(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}
