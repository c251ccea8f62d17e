package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasksync/domain"
	"tasksync/session"
	"tasksync/tasks"
)

const requestBodyMaxSize = 1 << 20

// Authenticator validates credentials presented on requests and connections.
type Authenticator interface {
	IdentityFromAuthHeader(h string, adminHint bool) (Identity, error)
	IdentityFromToken(token string, adminHint bool) (Identity, error)
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc *tasks.Service, auth Authenticator, reg SessionRegistry, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET("/api/stream", streamEvents(reg, auth, logger))
	e.GET("/api/tasks", getAllTasks(svc, auth, logger))
	e.GET("/api/tasks/my", getMyTasks(svc, auth))
	e.GET("/api/tasks/:id", getTask(svc, auth))
	e.POST("/api/tasks", createTask(svc, auth))
	e.PUT("/api/tasks/:id", updateTask(svc, auth))
	e.DELETE("/api/tasks/:id", deleteTask(svc, auth))
	e.PATCH("/api/tasks/:id/subtasks/:subtaskId", setSubtaskStatus(svc, auth))
	e.PATCH("/api/tasks/:id/status", setTaskStatus(svc, auth))
	e.GET("/healthz", healthz())
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func authenticate(c echo.Context, auth Authenticator) (Identity, error) {
	return auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization), false)
}

// requireAdmin returns a non-nil *echo.HTTPError on failure so callers can
// return it directly; a nil error means the caller may proceed with the
// mutation.
func requireAdmin(c echo.Context, auth Authenticator) (Identity, error) {
	id, err := authenticate(c, auth)
	if err != nil {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if id.Role != session.RoleAdmin {
		return Identity{}, echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	return id, nil
}

func getAllTasks(svc *tasks.Service, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newTaskRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		id, authErr := authenticate(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		if id.Role != session.RoleAdmin {
			metrics.SetErrorStage("forbidden")
			err = c.JSON(http.StatusForbidden, messageResponse{Message: "admin access required"})
			return err
		}

		page, limit := 1, 0
		if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
			page, err = strconv.Atoi(raw)
			if err != nil || page <= 0 {
				metrics.SetErrorStage("invalid_page")
				err = c.String(http.StatusBadRequest, "invalid page")
				return err
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				metrics.SetErrorStage("invalid_limit")
				err = c.String(http.StatusBadRequest, "invalid limit")
				return err
			}
		}

		fetchStart := time.Now()
		pageSlice, total, fetchErr := svc.List(c.Request().Context(), page, limit)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(pageSlice))
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: pageSlice, Total: total})
		return err
	}
}

func getMyTasks(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		list, err := svc.ListForUser(c.Request().Context(), id.Subject)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getTask(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		task, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if task == nil {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "task not found"})
		}
		return c.JSON(http.StatusOK, task)
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func createTask(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := requireAdmin(c, auth); err != nil {
			return err
		}
		var in tasks.CreateTaskInput
		if err := decodeBody(c, &in); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := svc.Create(c.Request().Context(), in)
		if err != nil {
			return writeMutationError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := requireAdmin(c, auth); err != nil {
			return err
		}
		var in tasks.UpdateTaskInput
		if err := decodeBody(c, &in); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := svc.Update(c.Request().Context(), c.Param("id"), in)
		if err != nil {
			return writeMutationError(c, err)
		}
		if task == nil {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "task not found"})
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := requireAdmin(c, auth); err != nil {
			return err
		}
		ok, err := svc.Delete(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if !ok {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "task not found"})
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "task deleted"})
	}
}

type subtaskStatusRequest struct {
	IsCompleted *bool `json:"isCompleted"`
}

func setSubtaskStatus(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var in subtaskStatusRequest
		if err := decodeBody(c, &in); err != nil || in.IsCompleted == nil {
			return c.String(http.StatusBadRequest, "isCompleted must be a boolean value")
		}
		task, err := svc.SetSubtaskStatus(c.Request().Context(), c.Param("id"), c.Param("subtaskId"), *in.IsCompleted)
		if err != nil {
			return writeMutationError(c, err)
		}
		if task == nil {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "task or subtask not found"})
		}
		return c.JSON(http.StatusOK, task)
	}
}

type taskStatusRequest struct {
	Status domain.Status `json:"status"`
}

func setTaskStatus(svc *tasks.Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var in taskStatusRequest
		if err := decodeBody(c, &in); err != nil || in.Status == "" {
			return c.String(http.StatusBadRequest, "status is required")
		}
		task, err := svc.SetTaskStatus(c.Request().Context(), c.Param("id"), in.Status)
		if err != nil {
			return writeMutationError(c, err)
		}
		if task == nil {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "task not found"})
		}
		return c.JSON(http.StatusOK, task)
	}
}

func writeMutationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, tasks.ErrInvalidStatus),
		errors.Is(err, tasks.ErrInvalidPriority),
		errors.Is(err, tasks.ErrMissingTitle):
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}
