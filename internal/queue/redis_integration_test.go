package queue

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/hyperjump/idscan/internal/models"
)

func TestRedisBroker_Integration(t *testing.T) {
	if os.Getenv("IDSCAN_INTEGRATION") == "" {
		t.Skip("set IDSCAN_INTEGRATION=1 to run against a Redis container")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	b, err := NewRedisBroker(ctx, RedisConfig{Addr: strings.TrimPrefix(uri, "redis://")}, nil)
	require.NoError(t, err)
	defer b.Close()

	id, err := b.Submit(ctx, "Driving License", []models.SubmittedFile{{Key: "file_000", Data: []byte("img")}})
	require.NoError(t, err)

	task, err := b.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, id, task.RunID)
	require.Equal(t, []byte("img"), task.Files[0].Data)

	require.NoError(t, b.Update(ctx, &models.Run{ID: id, State: models.RunFailure, Error: "boom"}))
	run, err := b.Status(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.RunFailure, run.State)
	require.Equal(t, "boom", run.Error)
}
