package brostar_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nens/brostar-sync/internal/types"
)

func taskJSON(status types.TaskStatus, broID string) map[string]any {
	return map[string]any{
		"uuid":   "task-1",
		"status": status,
		"broId":  broID,
	}
}

func TestAwaitCompleted(t *testing.T) {
	t.Run("EventuallyCompletes", func(t *testing.T) {
		var polls atomic.Int32
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			if polls.Add(1) < 3 {
				return c.JSON(http.StatusOK, taskJSON(types.TaskStatusProcessing, ""))
			}
			return c.JSON(http.StatusOK, taskJSON(types.TaskStatusCompleted, "GLD000000001"))
		})
		client, _ := newTestClient(t, e)

		task, err := client.AwaitCompleted(context.Background(), "task-1")
		require.NoError(t, err)
		assert.Equal(t, types.TaskStatusCompleted, task.Status)
		assert.Equal(t, "GLD000000001", task.BroID)
	})

	t.Run("CeilingReturnsLastStateWithoutError", func(t *testing.T) {
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			return c.JSON(http.StatusOK, taskJSON(types.TaskStatusProcessing, ""))
		})
		client, _ := newTestClient(t, e)

		task, err := client.AwaitCompleted(context.Background(), "task-1")
		require.NoError(t, err, "ceiling must not be an error")
		assert.Equal(t, types.TaskStatusProcessing, task.Status)
	})

	t.Run("InitialFetchErrorSurfaces", func(t *testing.T) {
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
		})
		client, _ := newTestClient(t, e)

		_, err := client.AwaitCompleted(context.Background(), "task-1")
		require.Error(t, err)
	})

	t.Run("TransientPollErrorTolerated", func(t *testing.T) {
		var polls atomic.Int32
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			switch polls.Add(1) {
			case 2:
				return c.JSON(http.StatusBadGateway, map[string]string{"detail": "hiccup"})
			case 3:
				return c.JSON(http.StatusOK, taskJSON(types.TaskStatusCompleted, "GLD000000001"))
			default:
				return c.JSON(http.StatusOK, taskJSON(types.TaskStatusProcessing, ""))
			}
		})
		client, _ := newTestClient(t, e)

		task, err := client.AwaitCompleted(context.Background(), "task-1")
		require.NoError(t, err, "a failed poll must not abort the wait")
		assert.Equal(t, types.TaskStatusCompleted, task.Status)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			return c.JSON(http.StatusOK, taskJSON(types.TaskStatusProcessing, ""))
		})
		client, _ := newTestClient(t, e)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.AwaitCompleted(ctx, "task-1")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAwaitBroID(t *testing.T) {
	t.Run("EventuallyAssigned", func(t *testing.T) {
		var polls atomic.Int32
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			if polls.Add(1) < 2 {
				return c.JSON(http.StatusOK, taskJSON(types.TaskStatusProcessing, ""))
			}
			return c.JSON(http.StatusOK, taskJSON(types.TaskStatusCompleted, "GMW000000001"))
		})
		client, _ := newTestClient(t, e)

		broID, err := client.AwaitBroID(context.Background(), "task-1")
		require.NoError(t, err)
		assert.Equal(t, "GMW000000001", broID)
	})

	t.Run("CeilingReturnsEmpty", func(t *testing.T) {
		e := echo.New()
		e.GET("/uploadtasks/task-1/", func(c echo.Context) error {
			return c.JSON(http.StatusOK, taskJSON(types.TaskStatusProcessing, ""))
		})
		client, _ := newTestClient(t, e)

		broID, err := client.AwaitBroID(context.Background(), "task-1")
		require.NoError(t, err)
		assert.Empty(t, broID)
	})
}
