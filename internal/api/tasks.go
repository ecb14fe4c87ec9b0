package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sadopc/taskdeck/internal/model"
)

// PageSize is the largest page the server hands out.
const PageSize = 100

const maxPages = 1000

// Pagination mirrors the server's paging metadata.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// TaskPage is the only accepted shape for GET /api/tasks:
//
//	{"data": [...tasks], "pagination": {...}}
type TaskPage struct {
	Data       *[]model.Task `json:"data"`
	Pagination *Pagination   `json:"pagination"`
}

func taskPath(id string) string {
	return "/api/tasks/" + url.PathEscape(id)
}

// ListTaskPage fetches a single page of tasks.
func (c *Client) ListTaskPage(ctx context.Context, page, limit int) ([]model.Task, Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out TaskPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/tasks?" + q.Encode()}, &out); err != nil {
		return nil, Pagination{}, err
	}
	if out.Data == nil || out.Pagination == nil {
		return nil, Pagination{}, &Error{
			StatusCode: http.StatusOK,
			Message:    "list tasks: response is missing data or pagination",
			Err:        ErrUnexpectedShape,
		}
	}
	return *out.Data, *out.Pagination, nil
}

// ListTasks walks every page and returns the tasks in server order.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	for page := 1; page <= maxPages; page++ {
		batch, p, err := c.ListTaskPage(ctx, page, PageSize)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, batch...)
		if !p.HasNext {
			return tasks, nil
		}
	}
	return nil, &Error{Message: fmt.Sprintf("list tasks: more than %d pages", maxPages)}
}

func (c *Client) CreateTask(ctx context.Context, d model.Draft) (model.Task, error) {
	req, err := jsonRequest(http.MethodPost, "/api/tasks", d)
	if err != nil {
		return model.Task{}, err
	}
	var t model.Task
	if err := c.do(ctx, req, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, p model.Patch) (model.Task, error) {
	req, err := jsonRequest(http.MethodPut, taskPath(id), p)
	if err != nil {
		return model.Task{}, err
	}
	var t model.Task
	if err := c.do(ctx, req, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// CompleteTask flips the task's completion state on the server. No target
// state is sent.
func (c *Client) CompleteTask(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	if err := c.do(ctx, request{method: http.MethodPatch, path: taskPath(id) + "/complete"}, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: taskPath(id)}, nil)
}
