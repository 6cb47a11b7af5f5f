package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/app"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository/memory"
	"github.com/noah-isme/registrar-api/pkg/config"
)

func newCore(t *testing.T) (*app.App, *memory.Store) {
	t.Helper()
	core, err := app.New(&config.Config{
		Database:  config.DatabaseConfig{Driver: config.DriverMemory},
		JWT:       config.JWTConfig{Secret: "cli-secret"},
		Admission: config.AdmissionConfig{MaxAttempts: 2, RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Millisecond},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close(context.Background()) })

	store, ok := core.Store.(*memory.Store)
	require.True(t, ok)
	return core, store
}

func TestTermEndCommand(t *testing.T) {
	core, store := newCore(t)
	store.PutTerm(models.Term{ID: "T1", Name: "Fall", StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)})

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), core, &out, "term-end", []string{"-term", "T1"}))
	assert.Contains(t, out.String(), "Term end: T1")
	assert.Contains(t, out.String(), "PROBATION")

	err := run(context.Background(), core, &out, "term-end", nil)
	assert.ErrorContains(t, err, "-term is required")

	err = run(context.Background(), core, &out, "term-end", []string{"-term", "missing"})
	assert.Error(t, err)
}

func TestTranscriptCommand(t *testing.T) {
	core, _ := newCore(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), core, &out, "transcript", []string{"-student", "stu-1"}))
	assert.Contains(t, out.String(), "no posted results")
}

func TestTokenCommand(t *testing.T) {
	core, _ := newCore(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), core, &out, "token", []string{"-id", "svc-1", "-roles", "staff, admin"}))
	token := strings.SplitN(out.String(), "\n", 2)[0]

	principal, err := core.Auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "svc-1", principal.ID)
	assert.Equal(t, []models.Role{models.RoleStaff, models.RoleAdmin}, principal.Roles)
}

func TestParsePrincipal(t *testing.T) {
	cases := []struct {
		name  string
		id    string
		roles string
		err   string
	}{
		{name: "missing id", roles: "STAFF", err: "-id is required"},
		{name: "missing roles", id: "u1", err: "-roles is required"},
		{name: "unknown role", id: "u1", roles: "STAFF,JANITOR", err: "unknown role"},
		{name: "ok", id: "u1", roles: "student"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := parsePrincipal(tc.id, tc.roles)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []models.Role{models.RoleStudent}, p.Roles)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	core, _ := newCore(t)
	err := run(context.Background(), core, &bytes.Buffer{}, "explode", nil)
	assert.ErrorContains(t, err, "unknown command")
}
