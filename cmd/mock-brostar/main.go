// A local stand-in for the BROSTAR API, for poking at the CLI without
// touching staging. Tasks advance PENDING -> PROCESSING -> COMPLETED one
// step per detail read and get a fake BRO ID on completion.
package main

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func BasicAuthValidator(id, _ string, _ echo.Context) (bool, error) {
	return id == "__key__", nil
}

type taskStore struct {
	mu     sync.Mutex
	tasks  map[string]map[string]any
	order  []string
	serial int
}

func newTaskStore() *taskStore {
	return &taskStore{tasks: map[string]map[string]any{}}
}

func (s *taskStore) create(task map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	task["uuid"] = id
	task["status"] = "PENDING"
	task["progress"] = 0.0
	task["log"] = ""
	s.tasks[id] = task
	s.order = append(s.order, id)
	return task
}

// advance moves a task one lifecycle step forward on every read, so polling
// clients see the PROCESSING phase at least once.
func (s *taskStore) advance(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	switch task["status"] {
	case "PENDING":
		task["status"] = "PROCESSING"
		task["progress"] = 50.0
	case "PROCESSING":
		task["status"] = "COMPLETED"
		task["progress"] = 100.0
		if task["broId"] == nil || task["broId"] == "" {
			s.serial++
			task["broId"] = fmt.Sprintf("GLD%09d", s.serial)
		}
	}
	return task, true
}

func (s *taskStore) list(filter func(map[string]any) bool) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := []map[string]any{}
	for _, id := range s.order {
		task := s.tasks[id]
		if filter(task) {
			results = append(results, task)
		}
	}
	return results
}

func (s *taskStore) patch(id string, fields map[string]any) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	for key, value := range fields {
		task[key] = value
	}
	return task, true
}

func (s *taskStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func stringField(task map[string]any, key string) string {
	v, _ := task[key].(string)
	return v
}

func main() {
	e := echo.New()

	e.Pre(middleware.AddTrailingSlash())
	e.Use(middleware.Logger())

	store := newTaskStore()

	api := e.Group("/api", middleware.BasicAuth(BasicAuthValidator))

	api.POST("/uploadtasks/", func(c echo.Context) error {
		task := map[string]any{}
		if err := c.Bind(&task); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
		}
		return c.JSON(http.StatusCreated, store.create(task))
	})

	api.GET("/uploadtasks/", func(c echo.Context) error {
		status := c.QueryParam("status")
		broID := c.QueryParam("bro_id")
		registrationType := c.QueryParam("registration_type")
		logNeedle := c.QueryParam("log")

		results := store.list(func(task map[string]any) bool {
			if status != "" && stringField(task, "status") != status {
				return false
			}
			if registrationType != "" && stringField(task, "registrationType") != registrationType {
				return false
			}
			if broID != "" {
				metadata, _ := task["metadata"].(map[string]any)
				if metadata == nil || metadata["broId"] != broID {
					return false
				}
			}
			if logNeedle != "" && !strings.Contains(stringField(task, "log"), logNeedle) {
				return false
			}
			return true
		})

		return c.JSON(http.StatusOK, map[string]any{
			"count":    len(results),
			"next":     nil,
			"previous": nil,
			"results":  results,
		})
	})

	api.GET("/uploadtasks/:uuid/", func(c echo.Context) error {
		task, ok := store.advance(c.Param("uuid"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
		}
		return c.JSON(http.StatusOK, task)
	})

	api.PATCH("/uploadtasks/:uuid/", func(c echo.Context) error {
		fields := map[string]any{}
		if err := c.Bind(&fields); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
		}
		task, ok := store.patch(c.Param("uuid"), fields)
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
		}
		return c.JSON(http.StatusOK, task)
	})

	api.DELETE("/uploadtasks/:uuid/", func(c echo.Context) error {
		if !store.delete(c.Param("uuid")) {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
		}
		return c.NoContent(http.StatusNoContent)
	})

	api.POST("/uploadtasks/:uuid/check_status/", func(c echo.Context) error {
		task, ok := store.advance(c.Param("uuid"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
		}
		return c.JSON(http.StatusOK, task)
	})

	api.GET("/gmw/gmws/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"count": 1, "next": nil, "previous": nil,
			"results": []map[string]any{{
				"bro_id":                          c.QueryParam("bro_id"),
				"object_id_accountable_party":     "put-001",
				"delivery_context":                "publiekeTaak",
				"construction_standard":           "onbekend",
				"initial_function":                "stand",
				"number_of_monitoring_tubes":      1,
				"ground_level_stable":             "onbekend",
				"well_head_protector":             "onbekend",
				"well_construction_date":          "2010-06-01",
				"delivered_location":              "100000 400000",
				"horizontal_positioning_method":   "RTKGPS2tot5cm",
				"local_vertical_reference_point":  "NAP",
				"offset":                          0.0,
				"vertical_datum":                  "NAP",
				"ground_level_position":           1.5,
				"ground_level_positioning_method": "RTKGPS0tot4cm",
			}},
		})
	})

	api.GET("/gmw/monitoringtubes/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"count": 1, "next": nil, "previous": nil,
			"results": []map[string]any{{
				"tube_number":                 1,
				"tube_type":                   "standaardbuis",
				"artesian_well_cap_present":   "nee",
				"sediment_sump_present":       "nee",
				"variable_diameter":           "nee",
				"tube_status":                 "gebruiksklaar",
				"tube_top_position":           1.2,
				"tube_top_positioning_method": "RTKGPS0tot4cm",
				"tube_packing_material":       "bentoniet",
				"tube_material":               "pvc",
				"glue":                        "geen",
				"screen_length":               1.0,
				"sock_material":               "geen",
				"plain_tube_part_length":      8.0,
			}},
		})
	})

	e.Logger.Fatal(e.Start(":1323"))
}
