package brostar_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nens/brostar-sync/internal/brostar"
	"github.com/nens/brostar-sync/internal/types"
)

func newTestClient(t *testing.T, e *echo.Echo) (*brostar.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	client, err := brostar.NewClient("secret",
		brostar.WithBaseURL(server.URL),
		brostar.WithPollTiming(5*time.Millisecond, 50*time.Millisecond),
	)
	require.NoError(t, err, "failed to construct client")
	return client, server
}

func TestNewClient(t *testing.T) {
	t.Run("EmptyKey", func(t *testing.T) {
		_, err := brostar.NewClient("")
		require.Error(t, err, "expected empty key to be rejected")
	})

	t.Run("Defaults", func(t *testing.T) {
		client, err := brostar.NewClient("secret")
		require.NoError(t, err)
		assert.Equal(t, brostar.StagingURL, client.BaseURL())
	})

	t.Run("UseProduction", func(t *testing.T) {
		client, err := brostar.NewClient("secret")
		require.NoError(t, err)
		client.UseProduction(true)
		assert.Equal(t, brostar.ProductionURL, client.BaseURL())
		client.UseProduction(false)
		assert.Equal(t, brostar.StagingURL, client.BaseURL())
	})
}

func TestBasicAuth(t *testing.T) {
	e := echo.New()
	var user, pass string
	e.GET("/uploadtasks/", func(c echo.Context) error {
		user, pass, _ = c.Request().BasicAuth()
		return c.JSON(http.StatusOK, brostar.ListResponse{})
	})
	client, _ := newTestClient(t, e)

	_, err := client.Get(context.Background(), brostar.EndpointUploadTasks, nil)
	require.NoError(t, err)
	assert.Equal(t, "__key__", user, "fixed basic auth user expected")
	assert.Equal(t, "secret", pass, "api key is the password")
}

func TestGetAllFollowsNext(t *testing.T) {
	e := echo.New()
	client, server := newTestClient(t, e)

	e.GET("/uploadtasks/", func(c echo.Context) error {
		if c.QueryParam("page") == "2" {
			return c.JSON(http.StatusOK, map[string]any{
				"count": 3, "next": nil, "previous": nil,
				"results": []map[string]any{{"uuid": "c"}},
			})
		}
		next := fmt.Sprintf("%s/uploadtasks/?page=2", server.URL)
		return c.JSON(http.StatusOK, map[string]any{
			"count": 3, "next": next, "previous": nil,
			"results": []map[string]any{{"uuid": "a"}, {"uuid": "b"}},
		})
	})

	results, err := client.GetAll(context.Background(), brostar.EndpointUploadTasks, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var last map[string]string
	require.NoError(t, json.Unmarshal(results[2], &last))
	assert.Equal(t, "c", last["uuid"])
}

func TestStatusErrorSurfaced(t *testing.T) {
	e := echo.New()
	e.GET("/uploadtasks/", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "bad filter"})
	})
	client, _ := newTestClient(t, e)

	_, err := client.Get(context.Background(), brostar.EndpointUploadTasks, url.Values{"status": {"NOPE"}})
	require.Error(t, err)

	var statusErr *brostar.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Contains(t, statusErr.Body, "bad filter")
}

func TestPostUpload(t *testing.T) {
	e := echo.New()
	var received map[string]any
	e.POST("/uploadtasks/", func(c echo.Context) error {
		if err := c.Bind(&received); err != nil {
			return err
		}
		received["uuid"] = "task-1"
		received["status"] = "PENDING"
		return c.JSON(http.StatusCreated, received)
	})
	client, _ := newTestClient(t, e)

	task := types.UploadTask{
		BroDomain:        types.BroDomainGLD,
		ProjectNumber:    "1",
		RegistrationType: types.RegistrationTypeGLDAddition,
		RequestType:      types.RequestTypeRegistration,
		Metadata: types.UploadTaskMetadata{
			RequestReference: "ref",
			QualityRegime:    types.QualityRegimeIMBRO,
			BroID:            "GLD000000001",
		},
		SourceDocument: map[string]any{"observationType": "reguliereMeting"},
	}

	created, err := client.PostUpload(context.Background(), &task, true)
	require.NoError(t, err)
	assert.Equal(t, "task-1", created.UUID)
	assert.Equal(t, types.TaskStatusPending, created.Status)

	// the wire payload uses camelCase keys
	metadata, ok := received["metadata"].(map[string]any)
	require.True(t, ok, "metadata missing from wire payload")
	assert.Equal(t, "GLD000000001", metadata["broId"])
	assert.Contains(t, received, "sourcedocumentData")
}

func TestDeleteUploadTask(t *testing.T) {
	e := echo.New()
	deleted := false
	e.DELETE("/uploadtasks/task-1", func(c echo.Context) error {
		deleted = true
		return c.NoContent(http.StatusNoContent)
	})
	client, _ := newTestClient(t, e)

	require.NoError(t, client.DeleteUploadTask(context.Background(), "task-1"))
	assert.True(t, deleted)
}

func TestPostBulkGMN(t *testing.T) {
	e := echo.New()
	var form *multipart.Form
	e.POST("/bulkuploads/", func(c echo.Context) error {
		received, err := c.MultipartForm()
		if err != nil {
			return err
		}
		form = received
		return c.JSON(http.StatusCreated, map[string]any{"status": "PENDING"})
	})
	client, _ := newTestClient(t, e)

	fields := map[string]string{
		"bulk_upload_type": "GMN",
		"project_number":   "1",
		"metadata":         `{"requestReference":"gmn-bulk-1"}`,
	}
	points := strings.NewReader("bro_id,measuringpoint\nGMW000000001,put-001\n")

	_, err := client.PostBulkGMN(context.Background(), fields, points)
	require.NoError(t, err)

	require.NotNil(t, form)
	assert.Equal(t, []string{"GMN"}, form.Value["bulk_upload_type"])
	assert.Equal(t, []string{"1"}, form.Value["project_number"])

	files := form.File["measurement_tvp_file"]
	require.Len(t, files, 1, "measuring point CSV must ride the measurement_tvp_file part")
	part, err := files[0].Open()
	require.NoError(t, err)
	defer part.Close()
	content, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Contains(t, string(content), "GMW000000001")
}
