//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// openPostgres starts a throwaway PostgreSQL container and opens a Store on it.
func openPostgres(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "genie",
				"POSTGRES_USER":     "genie",
				"POSTGRES_PASSWORD": "genie",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://genie:genie@%s:%s/genie?sslmode=disable", host, port.Port())
	s, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgres_WriteBatchAndLookup(t *testing.T) {
	ctx := context.Background()
	s := openPostgres(t)

	require.NoError(t, s.ReplaceCancerTypes(ctx, testCancerTypes()))
	require.NoError(t, s.WriteBatch(ctx,
		[]Variant{krasVariant(1)},
		[]PatientCount{{ID: 1, VariantID: 1, CancerTypeID: 3, SameNucleotideChange: 5}},
	))

	kras, err := s.VariantsByGene(ctx, "KRAS")
	require.NoError(t, err)
	require.Len(t, kras, 1)
	assert.Equal(t, krasVariant(1), kras[0])

	counts, err := s.PatientCountsByVariant(ctx, 1)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "Lung_Cancer", counts[0].CancerType.VCFName)

	require.NoError(t, s.ClearVariants(ctx))
	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{CancerTypes: 3}, c)
}
