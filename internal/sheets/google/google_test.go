package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "finanzas/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"})
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	got, err := credentials(context.Background(), Options{CredentialsJSON: ` {"type":"service_account"} `})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(got))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))
	got, err = credentials(context.Background(), Options{CredentialsFile: path})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(got))

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	_, err = credentials(context.Background(), Options{})
	assert.NoError(t, err, "GOOGLE_APPLICATION_CREDENTIALS fallback")

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = credentials(context.Background(), Options{})
	assert.ErrorContains(t, err, "missing service account")

	_, err = credentials(context.Background(), Options{CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, err, "missing file")
}

func TestClient_AppendActivityValidation(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Activity"} // svc is nil

	_, err := c.AppendActivity(context.Background(), ports.Row{Type: "category.created"})
	assert.Error(t, err, "row without event id")

	_, err = c.AppendActivity(context.Background(), ports.Row{EventID: "e1", Type: "category.created"})
	assert.ErrorContains(t, err, "not initialized")
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Activity", 2025, "2025 Activity"},
		{"Actividad", 2024, "2024 Actividad"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
		{"Log %d", 2026, "Log 2026"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, yearPrefixedName(tt.baseName, tt.year), "%q in %d", tt.baseName, tt.year)
	}
}

func TestClient_SheetName(t *testing.T) {
	c := &Client{sheetBase: "Activity", now: func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}}
	assert.Equal(t, "2026 Activity", c.SheetName())
}
