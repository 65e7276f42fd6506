package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mesh-intelligence/tasktree/internal/service"
	"github.com/mesh-intelligence/tasktree/pkg/types"
)

// createTaskRequest mirrors the creation body: a required title plus an
// optional description and initial done flag.
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      bool   `json:"status"`
}

// changeParentRequest carries the move target; a null parent_id moves the
// task to the root.
type changeParentRequest struct {
	ParentID *int64 `json:"parent_id"`
}

// deleteTaskRequest is the fallback body when the id query parameter is
// absent.
type deleteTaskRequest struct {
	ID int64 `json:"id"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listRoots(c echo.Context) error {
	roots, err := s.svc.Roots(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, roots)
}

func (s *Server) getTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	task, err := s.svc.Get(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) createTask(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	params := service.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	}
	if raw := c.QueryParam("parent"); raw != "" {
		parentID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "parent must be an integer"})
		}
		params.ParentID = &parentID
	}

	task, err := s.svc.Create(c.Request().Context(), params)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	var id int64
	if raw := c.QueryParam("id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "id must be an integer"})
		}
		id = parsed
	} else {
		var req deleteTaskRequest
		if err := c.Bind(&req); err != nil || req.ID == 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "id is required"})
		}
		id = req.ID
	}

	task, err := s.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) toggleTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	// Accepted for compatibility with existing clients; the cascade rule
	// decides what actually happens, so the value is only logged.
	if raw := c.QueryParam("with_childs"); raw != "" {
		withChilds, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "with_childs must be a boolean"})
		}
		s.log.Debug().Int64("task_id", id).Bool("with_childs", withChilds).Msg("toggle requested")
	}

	task, err := s.svc.Toggle(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) changeParent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	var req changeParentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	task, err := s.svc.ChangeParent(c.Request().Context(), id, req.ParentID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) health(c echo.Context) error {
	if err := s.svc.Ping(c.Request().Context()); err != nil {
		s.log.Error().Err(err).Msg("store ping failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id must be an integer: %w", types.ErrInvalidRequest)
	}
	return id, nil
}

// writeError maps domain errors onto HTTP status codes. Unrecognized
// errors become an opaque 500; the detail goes to the log, not the client.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrInvalidRequest),
		errors.Is(err, types.ErrCycleDetected),
		errors.Is(err, types.ErrTitleEmpty):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
