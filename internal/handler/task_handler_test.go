package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

// 最小内存 store：handler 测试只关心 HTTP 形状，不关心存储细节

type memTasks struct {
	nextID int64
	byID   map[int64]*model.Task
}

func (m *memTasks) Insert(ctx context.Context, tx pgx.Tx, t *model.Task) error {
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTasks) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) List(ctx context.Context, f repository.TaskFilter) ([]model.Task, int, error) {
	var out []model.Task
	for _, t := range m.byID {
		out = append(out, *t)
	}
	if out == nil {
		out = []model.Task{}
	}
	return out, len(out), nil
}

func (m *memTasks) Update(ctx context.Context, tx pgx.Tx, t *model.Task) error {
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTasks) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error) {
	t, ok := m.byID[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return t.UpdatedAt, nil
}

type memProjects struct{}

func (memProjects) Insert(ctx context.Context, tx pgx.Tx, p *model.Project) error { return nil }
func (memProjects) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	return nil, pgx.ErrNoRows
}
func (memProjects) Exists(ctx context.Context, id int64) (bool, error) { return id == 1, nil }
func (memProjects) List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int, error) {
	return nil, 0, nil
}
func (memProjects) Update(ctx context.Context, tx pgx.Tx, p *model.Project) error { return nil }
func (memProjects) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error) {
	return time.Time{}, pgx.ErrNoRows
}

type memUsers struct{}

func (memUsers) Insert(ctx context.Context, u *model.User) error { return nil }
func (memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return nil, pgx.ErrNoRows
}
func (memUsers) Exists(ctx context.Context, id int64) (bool, error) { return false, nil }
func (memUsers) List(ctx context.Context, page, limit int) ([]model.User, int, error) {
	return nil, 0, nil
}

type noopEmitter struct{}

func (noopEmitter) EmitInTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID *int64, routingKey string, payload interface{}) error {
	return nil
}

// stubTx / stubBeginner 让事务路径在内存 store 上空转
type stubTx struct{ pgx.Tx }

func (stubTx) Commit(ctx context.Context) error   { return nil }
func (stubTx) Rollback(ctx context.Context) error { return nil }

type stubBeginner struct{}

func (stubBeginner) Begin(ctx context.Context) (pgx.Tx, error) { return stubTx{}, nil }

func newTaskRouter() (*gin.Engine, *memTasks) {
	gin.SetMode(gin.TestMode)
	tasks := &memTasks{byID: make(map[int64]*model.Task)}
	svc := service.NewTaskService(stubBeginner{}, tasks, memProjects{}, memUsers{}, noopEmitter{}, zap.NewNop())
	h := NewTaskHandler(svc, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, &auth.Principal{Subject: "user-1"})
	})
	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks", h.ListTasks)
	r.GET("/tasks/:id", h.GetTask)
	r.PATCH("/tasks/:id", h.UpdateTask)
	r.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
	return r, tasks
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTaskEndpoint(t *testing.T) {
	r, _ := newTaskRouter()

	w := perform(r, http.MethodPost, "/tasks", `{"title":"Ship release","project_id":1,"priority":"high"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}

	var task model.Task
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("response should carry the new id")
	}
	if task.Status != model.TaskStatusTodo {
		t.Fatalf("status = %q, want todo", task.Status)
	}
}

func TestCreateTaskEndpointBadBody(t *testing.T) {
	r, _ := newTaskRouter()

	w := perform(r, http.MethodPost, "/tasks", `{broken`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var env apperr.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil || env.Error == nil {
		t.Fatalf("expected error envelope, body %s", w.Body.String())
	}
	if env.Error.Code != apperr.CodeInvalidParameter {
		t.Fatalf("code = %q", env.Error.Code)
	}
}

func TestCreateTaskEndpointUnknownProject(t *testing.T) {
	r, _ := newTaskRouter()

	w := perform(r, http.MethodPost, "/tasks", `{"title":"T","project_id":999}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var env apperr.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil || env.Error == nil {
		t.Fatalf("expected error envelope, body %s", w.Body.String())
	}
	if env.Error.Code != apperr.CodeInvalidReference {
		t.Fatalf("code = %q, want InvalidReference", env.Error.Code)
	}
}

func TestGetTaskEndpointNotFound(t *testing.T) {
	r, _ := newTaskRouter()

	w := perform(r, http.MethodGet, "/tasks/42", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetTaskEndpointBadID(t *testing.T) {
	r, _ := newTaskRouter()

	w := perform(r, http.MethodGet, "/tasks/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListTasksEndpointShape(t *testing.T) {
	r, _ := newTaskRouter()
	perform(r, http.MethodPost, "/tasks", `{"title":"T","project_id":1}`)

	w := perform(r, http.MethodGet, "/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded["tasks"]; !ok {
		t.Fatal("response missing tasks key")
	}
	var pg service.Pagination
	if err := json.Unmarshal(decoded["pagination"], &pg); err != nil {
		t.Fatalf("decode pagination: %v", err)
	}
	if pg.Page != 1 || pg.Limit != 20 {
		t.Fatalf("pagination = %+v", pg)
	}
}

func TestListTasksEndpointBadQuery(t *testing.T) {
	r, _ := newTaskRouter()

	w := perform(r, http.MethodGet, "/tasks?page=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// 显式 "?page=0" 不等于没传，必须拒绝而不是套默认值
func TestListTasksEndpointExplicitZeroPagination(t *testing.T) {
	r, _ := newTaskRouter()

	for _, path := range []string{"/tasks?page=0", "/tasks?limit=0", "/tasks?page=-3"} {
		w := perform(r, http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", path, w.Code)
		}

		var env apperr.Envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil || env.Error == nil {
			t.Fatalf("%s: expected error envelope, body %s", path, w.Body.String())
		}
		if env.Error.Code != apperr.CodeInvalidParameter {
			t.Fatalf("%s: code = %q", path, env.Error.Code)
		}
	}
}

func TestUpdateTaskStatusEndpoint(t *testing.T) {
	r, store := newTaskRouter()
	perform(r, http.MethodPost, "/tasks", `{"title":"T","project_id":1}`)

	w := perform(r, http.MethodPatch, "/tasks/1/status", `{"status":"completed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if store.byID[1].Status != model.TaskStatusCompleted {
		t.Fatalf("stored status = %q", store.byID[1].Status)
	}
}
