//go:build integration

package pgcatalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hivellm/nexus/catalog"
)

func setupPostgresContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return dsn, cleanup
}

func TestMirrorSyncAndNames(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	mirror, err := Open(dsn)
	require.NoError(t, err)
	defer mirror.Close()

	cat := catalog.New()
	_, _ = cat.InternLabel("Person")
	_, _ = cat.InternLabel("Company")
	_, _ = cat.InternRelType("WORKS_AT")
	_, _ = cat.InternPropKey("name")

	require.NoError(t, mirror.Sync(cat))

	labels, err := mirror.Names(KindLabel)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Person", "Company"}, labels)

	relTypes, err := mirror.Names(KindRelType)
	require.NoError(t, err)
	assert.Equal(t, []string{"WORKS_AT"}, relTypes)

	// Sync is idempotent: re-running with no new names adds no duplicate rows.
	require.NoError(t, mirror.Sync(cat))
	labelsAgain, err := mirror.Names(KindLabel)
	require.NoError(t, err)
	assert.Len(t, labelsAgain, 2)
}
