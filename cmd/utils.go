package main

import (
	"github.com/siahsang/portfolio/internal/validator"
)

const minPasswordLength = 8

func checkEmail(v *validator.Validator, email string) {
	v.CheckNotBlank(email, "email", "must be provided")
	v.CheckEmail(email, "must be a valid email address")
}

func checkPassword(v *validator.Validator, password string) {
	v.CheckNotBlank(password, "password", "must be provided")
	v.Check(len(password) >= minPasswordLength, "password", "must be at least 8 characters long")
	v.Check(len(password) <= 72, "password", "must not be more than 72 bytes long")
}
