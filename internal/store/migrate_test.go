// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/pkg/errutil"
)

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost/db", "pgx5://u:p@localhost/db"},
		{"postgresql://localhost/db", "pgx5://localhost/db"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	forced     int
	forceErr   error
	srcErr     error
	dbErr      error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.srcErr, f.dbErr }

func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func TestMigrator_UpIgnoresNoChange(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
}

func TestMigrator_UpFailure(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: errors.New("boom")}}
	err := m.Up()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
}

func TestMigrator_DownIgnoresNoChange(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}
	require.NoError(t, m.Down())
}

func TestMigrator_VersionNilMeansZero(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrator_ForceRejectsNegative(t *testing.T) {
	fake := &fakeMigrate{forced: -100}
	m := &Migrator{m: fake}

	err := m.Force(-1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Equal(t, -100, fake.forced, "underlying Force must not be called")

	require.NoError(t, m.Force(1))
	assert.Equal(t, 1, fake.forced)
}

func TestMigrator_Pending(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, pending)

	m = &Migrator{m: &fakeMigrate{version: 1}}
	pending, err = m.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrator_CloseJoinsErrors(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{srcErr: errors.New("src"), dbErr: errors.New("db")}}
	err := m.Close()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	assert.Contains(t, err.Error(), "src")
	assert.Contains(t, err.Error(), "db")
}

func TestEmbeddedVersions(t *testing.T) {
	versions, err := embeddedVersions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, versions)

	up, err := migrationsFS.ReadFile("migrations/000001_access_state.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS access_state")
}
