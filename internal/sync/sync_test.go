package sync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nens/brostar-sync/internal/brostar"
	"github.com/nens/brostar-sync/internal/lizard"
	syncpkg "github.com/nens/brostar-sync/internal/sync"
	"github.com/nens/brostar-sync/internal/types"
)

func TestLocationCode(t *testing.T) {
	assert.Equal(t, "GMW000000001-001", syncpkg.LocationCode("GMW000000001", 1))
	assert.Equal(t, "GMW000000001-012", syncpkg.LocationCode("GMW000000001", 12))
	assert.Equal(t, "GMW000000001-123", syncpkg.LocationCode("GMW000000001", 123))
}

type syncFixture struct {
	registry *brostar.Client
	assets   *lizard.Client

	locations map[string]map[string]any
	patches   []map[string]any
}

func newSyncFixture(t *testing.T, registryTasks []map[string]any) *syncFixture {
	t.Helper()

	f := &syncFixture{locations: map[string]map[string]any{}}

	registryMux := echo.New()
	registryMux.GET("/uploadtasks/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"count": len(registryTasks), "next": nil, "previous": nil, "results": registryTasks,
		})
	})
	registryServer := httptest.NewServer(registryMux)
	t.Cleanup(registryServer.Close)

	registry, err := brostar.NewClient("secret",
		brostar.WithBaseURL(registryServer.URL),
		brostar.WithPollTiming(5*time.Millisecond, 25*time.Millisecond),
	)
	require.NoError(t, err)
	f.registry = registry

	assetMux := echo.New()
	assetMux.GET("/locations/", func(c echo.Context) error {
		results := []map[string]any{}
		if loc, ok := f.locations[c.QueryParam("code")]; ok {
			results = append(results, loc)
		}
		return c.JSON(http.StatusOK, map[string]any{"next": nil, "results": results})
	})
	assetMux.PATCH("/locations/:uuid/", func(c echo.Context) error {
		patch := map[string]any{}
		if err := c.Bind(&patch); err != nil {
			return err
		}
		f.patches = append(f.patches, patch)
		return c.JSON(http.StatusOK, patch)
	})
	assetServer := httptest.NewServer(assetMux)
	t.Cleanup(assetServer.Close)

	assets, err := lizard.NewClient("secret", assetServer.URL)
	require.NoError(t, err)
	f.assets = assets

	f.addLocation(assetServer.URL, "GMW000000001-001", nil)
	return f
}

func (f *syncFixture) addLocation(baseURL, code string, extra map[string]any) {
	f.locations[code] = map[string]any{
		"url":            baseURL + "/locations/loc-" + code + "/",
		"uuid":           "loc-" + code,
		"code":           code,
		"name":           code,
		"extra_metadata": extra,
	}
}

func startRegistrationTask(uuid, broID, regime string) map[string]any {
	return map[string]any{
		"uuid":             uuid,
		"status":           "COMPLETED",
		"registrationType": "GLD_StartRegistration",
		"broId":            broID,
		"metadata": map[string]any{
			"requestReference": "ref-" + uuid,
			"qualityRegime":    regime,
		},
		"sourcedocumentData": map[string]any{
			"gmwBroId":   "GMW000000001",
			"tubeNumber": 1,
		},
	}
}

func TestRecordGLDID(t *testing.T) {
	t.Run("WritesRegimeKey", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		syncer := syncpkg.New(f.registry, f.assets)

		patched, err := syncer.RecordGLDID(
			context.Background(), "GMW000000001-001", "GLD000000042", types.QualityRegimeIMBRO)
		require.NoError(t, err)
		assert.True(t, patched)

		require.Len(t, f.patches, 1)
		metadata := f.patches[0]["extra_metadata"].(map[string]any)
		bro := metadata["bro"].(map[string]any)
		assert.Equal(t, "GLD000000042", bro[syncpkg.MetadataKeyIMBRO])
	})

	t.Run("IMBROAUsesOwnKey", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		syncer := syncpkg.New(f.registry, f.assets)

		patched, err := syncer.RecordGLDID(
			context.Background(), "GMW000000001-001", "GLD000000043", types.QualityRegimeIMBROA)
		require.NoError(t, err)
		assert.True(t, patched)

		metadata := f.patches[0]["extra_metadata"].(map[string]any)
		bro := metadata["bro"].(map[string]any)
		assert.Equal(t, "GLD000000043", bro[syncpkg.MetadataKeyIMBROA])
		assert.NotContains(t, bro, syncpkg.MetadataKeyIMBRO)
	})

	t.Run("KeepsExistingMetadata", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.locations["GMW000000001-001"]["extra_metadata"] = map[string]any{
			"bro":   map[string]any{"gmwId": "GMW000000001"},
			"owner": "vitens",
		}
		syncer := syncpkg.New(f.registry, f.assets)

		_, err := syncer.RecordGLDID(
			context.Background(), "GMW000000001-001", "GLD000000042", types.QualityRegimeIMBRO)
		require.NoError(t, err)

		metadata := f.patches[0]["extra_metadata"].(map[string]any)
		assert.Equal(t, "vitens", metadata["owner"])
		bro := metadata["bro"].(map[string]any)
		assert.Equal(t, "GMW000000001", bro["gmwId"])
		assert.Equal(t, "GLD000000042", bro[syncpkg.MetadataKeyIMBRO])
	})

	t.Run("AlreadyRecordedSkipsPatch", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.locations["GMW000000001-001"]["extra_metadata"] = map[string]any{
			"bro": map[string]any{syncpkg.MetadataKeyIMBRO: "GLD000000042"},
		}
		syncer := syncpkg.New(f.registry, f.assets)

		patched, err := syncer.RecordGLDID(
			context.Background(), "GMW000000001-001", "GLD000000042", types.QualityRegimeIMBRO)
		require.NoError(t, err)
		assert.True(t, patched)
		assert.Empty(t, f.patches, "identical id must not trigger a patch")
	})

	t.Run("UnknownLocation", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		syncer := syncpkg.New(f.registry, f.assets)

		patched, err := syncer.RecordGLDID(
			context.Background(), "GMW000000009-001", "GLD000000042", types.QualityRegimeIMBRO)
		require.NoError(t, err)
		assert.False(t, patched)
	})
}

func TestIngestGLDIDs(t *testing.T) {
	t.Run("PatchesMatchingLocations", func(t *testing.T) {
		f := newSyncFixture(t, []map[string]any{
			startRegistrationTask("task-1", "GLD000000042", "IMBRO"),
		})
		syncer := syncpkg.New(f.registry, f.assets)

		result, err := syncer.IngestGLDIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Patched)
		assert.Zero(t, result.Missing)

		require.Len(t, f.patches, 1)
		metadata := f.patches[0]["extra_metadata"].(map[string]any)
		bro := metadata["bro"].(map[string]any)
		assert.Equal(t, "GLD000000042", bro[syncpkg.MetadataKeyIMBRO])
	})

	t.Run("UnmatchedLocationCounted", func(t *testing.T) {
		task := startRegistrationTask("task-1", "GLD000000042", "IMBRO")
		task["sourcedocumentData"].(map[string]any)["gmwBroId"] = "GMW000000099"
		f := newSyncFixture(t, []map[string]any{task})
		syncer := syncpkg.New(f.registry, f.assets)

		result, err := syncer.IngestGLDIDs(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Patched)
		assert.Equal(t, 1, result.Missing)
		assert.Empty(t, f.patches)
	})

	t.Run("TaskWithoutBroIDSkipped", func(t *testing.T) {
		task := startRegistrationTask("task-1", "", "IMBRO")
		f := newSyncFixture(t, []map[string]any{task})
		syncer := syncpkg.New(f.registry, f.assets)

		result, err := syncer.IngestGLDIDs(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Patched)
		assert.Empty(t, f.patches)
	})
}
