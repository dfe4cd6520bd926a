package db_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemarket/marketplace-service/internal/db"
)

func TestMigrate_UnknownCommand(t *testing.T) {
	err := db.Migrate("postgres://localhost/none", "migrations", "sideways")
	assert.EqualError(t, err, `unknown migrate command "sideways"`)
}

var migrationName = regexp.MustCompile(`^\d{5}_[a-z_]+\.sql$`)

func TestMigrations_Layout(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		assert.Regexp(t, migrationName, filepath.Base(f))

		body, err := os.ReadFile(f)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.Contains(text, "-- +goose Up"), "%s has no Up section", f)
		assert.True(t, strings.Contains(text, "-- +goose Down"), "%s has no Down section", f)
	}
}

func TestMigrations_EnumsMatchModel(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("migrations", "00001_init.sql"))
	require.NoError(t, err)
	text := string(body)

	for _, s := range []string{
		"'open'", "'pending_selection'", "'accepted'", "'enroute'",
		"'onsite'", "'completed'", "'cancelled'",
		"'pending'", "'selected'", "'rejected'",
		"UNIQUE (job_id, provider_id)",
	} {
		assert.Contains(t, text, s)
	}
}
