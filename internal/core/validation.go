package core

import (
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Message IDs returned by validation. They are resolved to user-facing text by
// the i18n bundle.
const (
	MsgFieldsRequired      = "fields_required"
	MsgUsernameRequired    = "username_required"
	MsgUsernameMinLength   = "username_min_length"
	MsgUsernameMaxLength   = "username_max_length"
	MsgUsernameCharset     = "username_charset"
	MsgUsernameTaken       = "username_taken"
	MsgEmailRequired       = "email_required"
	MsgEmailInvalid        = "email_invalid"
	MsgEmailTaken          = "email_taken"
	MsgPasswordRequired    = "password_required"
	MsgPasswordMinLength   = "password_min_length"
	MsgPasswordMaxLength   = "password_max_length"
	MsgPasswordUppercase   = "password_uppercase"
	MsgPasswordDigit       = "password_digit"
	MsgCategoryNameEmpty   = "category_name_required"
	MsgCategoryNameLong    = "category_name_max_length"
	MsgCategoryNameTaken   = "category_name_taken"
	MsgCategoryTypeInvalid = "category_type_invalid"
	MsgCategoryColor       = "category_color_invalid"
	MsgCategoryParent      = "category_parent_invalid"
)

const (
	UsernameMinLength     = 3
	UsernameMaxLength     = 50
	EmailMaxLength        = 100
	PasswordMinLength     = 8
	PasswordMaxLength     = 255
	CategoryNameMaxLength = 100
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	colorPattern    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ValidationErrors maps a field name to a message ID.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add records the first failure for a field.
func (v ValidationErrors) Add(field, msgID string) {
	if _, exists := v[field]; !exists {
		v[field] = msgID
	}
}

// OrNil returns nil when no field failed.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Registration is the input of a local sign-up.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Normalize trims fields and lower-cases the e-mail.
func (r Registration) Normalize() Registration {
	return Registration{
		Username: strings.TrimSpace(r.Username),
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Password: r.Password,
	}
}

// Validate checks the shape of the registration. Uniqueness is checked by the
// account service against storage.
func (r Registration) Validate() error {
	errs := ValidationErrors{}

	switch n := utf8.RuneCountInString(r.Username); {
	case n == 0:
		errs.Add("username", MsgUsernameRequired)
	case n < UsernameMinLength:
		errs.Add("username", MsgUsernameMinLength)
	case n > UsernameMaxLength:
		errs.Add("username", MsgUsernameMaxLength)
	case !usernamePattern.MatchString(r.Username):
		errs.Add("username", MsgUsernameCharset)
	}

	if r.Email == "" {
		errs.Add("email", MsgEmailRequired)
	} else if !ValidEmail(r.Email) {
		errs.Add("email", MsgEmailInvalid)
	}

	if msg := passwordProblem(r.Password); msg != "" {
		errs.Add("password", msg)
	}

	return errs.OrNil()
}

// ValidEmail reports whether s is a bare e-mail address within length limits.
func ValidEmail(s string) bool {
	if len(s) > EmailMaxLength {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Bob <bob@example.com>".
	return addr.Address == s && strings.Contains(s, ".")
}

func passwordProblem(p string) string {
	n := utf8.RuneCountInString(p)
	switch {
	case n == 0:
		return MsgPasswordRequired
	case n < PasswordMinLength:
		return MsgPasswordMinLength
	case n > PasswordMaxLength:
		return MsgPasswordMaxLength
	}
	var upper, digit bool
	for _, r := range p {
		if unicode.IsUpper(r) {
			upper = true
		}
		if unicode.IsDigit(r) {
			digit = true
		}
	}
	if !upper {
		return MsgPasswordUppercase
	}
	if !digit {
		return MsgPasswordDigit
	}
	return ""
}

// CategoryInput is the writable part of a category.
type CategoryInput struct {
	Name     string
	Icon     string
	Color    string
	Type     CategoryType
	ParentID *int64
}

// Normalize trims text fields and defaults the type to expense.
func (c CategoryInput) Normalize() CategoryInput {
	c.Name = strings.TrimSpace(c.Name)
	c.Icon = strings.TrimSpace(c.Icon)
	c.Color = strings.TrimSpace(c.Color)
	if c.Type == "" {
		c.Type = CategoryExpense
	}
	return c
}

// Validate checks field shapes. Name uniqueness and parent ownership are
// checked by the category service.
func (c CategoryInput) Validate() error {
	errs := ValidationErrors{}
	switch n := utf8.RuneCountInString(c.Name); {
	case n == 0:
		errs.Add("name", MsgCategoryNameEmpty)
	case n > CategoryNameMaxLength:
		errs.Add("name", MsgCategoryNameLong)
	}
	if !c.Type.IsValid() {
		errs.Add("type", MsgCategoryTypeInvalid)
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		errs.Add("color", MsgCategoryColor)
	}
	if c.ParentID != nil && *c.ParentID <= 0 {
		errs.Add("parent_id", MsgCategoryParent)
	}
	return errs.OrNil()
}
