package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationValidate(t *testing.T) {
	good := Registration{Username: "ana_01", Email: "ana@example.com", Password: "Secreto123"}
	require.NoError(t, good.Validate())

	cases := []struct {
		name  string
		reg   Registration
		field string
		msg   string
	}{
		{"empty username", Registration{Email: "a@b.co", Password: "Secreto123"}, "username", MsgUsernameRequired},
		{"short username", Registration{Username: "ab", Email: "a@b.co", Password: "Secreto123"}, "username", MsgUsernameMinLength},
		{"long username", Registration{Username: strings.Repeat("a", 51), Email: "a@b.co", Password: "Secreto123"}, "username", MsgUsernameMaxLength},
		{"username charset", Registration{Username: "ana-01", Email: "a@b.co", Password: "Secreto123"}, "username", MsgUsernameCharset},
		{"missing email", Registration{Username: "ana", Password: "Secreto123"}, "email", MsgEmailRequired},
		{"invalid email", Registration{Username: "ana", Email: "not-an-email", Password: "Secreto123"}, "email", MsgEmailInvalid},
		{"display name email", Registration{Username: "ana", Email: "Ana <ana@b.co>", Password: "Secreto123"}, "email", MsgEmailInvalid},
		{"short password", Registration{Username: "ana", Email: "a@b.co", Password: "Ab1"}, "password", MsgPasswordMinLength},
		{"no uppercase", Registration{Username: "ana", Email: "a@b.co", Password: "secreto123"}, "password", MsgPasswordUppercase},
		{"no digit", Registration{Username: "ana", Email: "a@b.co", Password: "SecretoSecreto"}, "password", MsgPasswordDigit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var verrs ValidationErrors
			require.ErrorAs(t, tc.reg.Validate(), &verrs)
			assert.Equal(t, tc.msg, verrs[tc.field])
		})
	}
}

func TestRegistrationNormalize(t *testing.T) {
	r := Registration{Username: "  ana ", Email: " Ana@Example.COM ", Password: " keep "}.Normalize()
	assert.Equal(t, "ana", r.Username)
	assert.Equal(t, "ana@example.com", r.Email)
	assert.Equal(t, " keep ", r.Password, "passwords are not trimmed")
}

func TestCategoryInputValidate(t *testing.T) {
	zero := int64(0)
	good := CategoryInput{Name: "Comida", Color: "#AABBCC"}.Normalize()
	assert.Equal(t, CategoryExpense, good.Type, "type defaults to expense")
	require.NoError(t, good.Validate())

	bads := []CategoryInput{
		{Name: "", Type: CategoryExpense},
		{Name: strings.Repeat("x", 101), Type: CategoryExpense},
		{Name: "ok", Type: "transfer"},
		{Name: "ok", Type: CategoryIncome, Color: "red"},
		{Name: "ok", Type: CategoryIncome, ParentID: &zero},
	}
	for i, c := range bads {
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{}
	errs.Add("b", "second")
	errs.Add("a", "first")
	errs.Add("a", "ignored")
	assert.EqualError(t, errs, "validation failed: a: first, b: second")
	assert.NoError(t, ValidationErrors{}.OrNil())
}
