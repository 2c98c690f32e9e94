package authsdk

import (
	"strings"
	"unicode/utf8"
)

const (
	usernameRequired = "The username is required."
	passwordRequired = "The password is required."
	maxUsernameLen   = 64
	maxFullNameLen   = 128
	maxPasswordLen   = 128
)

// Validate checks a login request. It returns nil when every field is valid.
func (r LoginRequest) Validate() []FieldMessage {
	var errs []FieldMessage
	if strings.TrimSpace(r.Username) == "" {
		errs = append(errs, FieldMessage{FieldName: "username", Message: usernameRequired})
	}
	if r.Password == "" {
		errs = append(errs, FieldMessage{FieldName: "password", Message: passwordRequired})
	}
	return errs
}

// Validate checks a create user request. It returns nil when every field is
// valid.
func (r CreateUserRequest) Validate() []FieldMessage {
	var errs []FieldMessage

	username := strings.TrimSpace(r.Username)
	switch {
	case username == "":
		errs = append(errs, FieldMessage{FieldName: "username", Message: usernameRequired})
	case utf8.RuneCountInString(username) > maxUsernameLen:
		errs = append(errs, FieldMessage{FieldName: "username", Message: "The username must be at most 64 characters."})
	case strings.ContainsAny(username, "/ \t"):
		errs = append(errs, FieldMessage{FieldName: "username", Message: "The username must not contain spaces or slashes."})
	}

	if utf8.RuneCountInString(r.FullName) > maxFullNameLen {
		errs = append(errs, FieldMessage{FieldName: "fullName", Message: "The full name must be at most 128 characters."})
	}

	switch {
	case r.Password == "":
		errs = append(errs, FieldMessage{FieldName: "password", Message: passwordRequired})
	case len(r.Password) > maxPasswordLen:
		errs = append(errs, FieldMessage{FieldName: "password", Message: "The password must be at most 128 characters."})
	}

	for _, a := range r.Authorities {
		if strings.TrimSpace(a) == "" {
			errs = append(errs, FieldMessage{FieldName: "authorities", Message: "Authorities must not be blank."})
			break
		}
	}

	return errs
}
