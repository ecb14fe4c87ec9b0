// Package apitest runs an in-memory task API over httptest for client and
// command tests.
package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sadopc/taskdeck/internal/model"
)

const secret = "apitest-secret"

// TokenTTL is how long issued tokens are valid.
const TokenTTL = time.Hour

type user struct {
	model.User
	password string
}

type failure struct {
	status int
	detail string
}

// Server is a fake of the task API. Tasks are kept newest first, as the
// real server lists them.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*user // by email
	tasks    map[string][]model.Task
	failures map[string]failure // "METHOD /path" -> one-shot failure
	calls    map[string]int
	now      func() time.Time
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:    map[string]*user{},
		tasks:    map[string][]model.Task{},
		failures: map[string]failure{},
		calls:    map[string]int{},
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("GET /user/profile", s.authed(s.profile))
	mux.HandleFunc("GET /api/tasks", s.authed(s.list))
	mux.HandleFunc("POST /api/tasks", s.authed(s.create))
	mux.HandleFunc("PUT /api/tasks/{id}", s.authed(s.update))
	mux.HandleFunc("PATCH /api/tasks/{id}/complete", s.authed(s.complete))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.authed(s.remove))

	s.Server = httptest.NewServer(s.count(mux))
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account directly and returns it.
func (s *Server) AddUser(email, password string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUser(email, password)
}

func (s *Server) addUser(email, password string) model.User {
	u := &user{
		User:     model.User{ID: uuid.NewString(), Email: email, CreatedAt: model.Timestamp{Time: s.now().UTC()}},
		password: password,
	}
	s.users[email] = u
	return u.User
}

// Token issues a token for the user, expiring ttl from now. A negative ttl
// gives an already expired token.
func (s *Server) Token(u model.User, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   u.ID,
		ExpiresAt: jwt.NewNumericDate(s.now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(s.now()),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return tok
}

// SetTasks replaces the user's tasks. Missing ids and user ids are filled.
func (s *Server) SetTasks(u model.User, tasks ...model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.Task, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.UserID = u.ID
		list[i] = t
	}
	s.tasks[u.ID] = list
}

// Tasks returns a copy of the user's tasks.
func (s *Server) Tasks(u model.User) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), s.tasks[u.ID]...)
}

// FailNext makes the next request matching method and path fail with
// status. path is matched exactly, without the query string.
func (s *Server) FailNext(method, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, detail: detail}
}

// Calls reports how many requests hit method and path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls[key]++
		f, fail := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if fail {
			writeError(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, claims.Subject)
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[body.Email]; exists {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	writeJSON(w, http.StatusCreated, s.addUser(body.Email, body.Password))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}
	s.mu.Lock()
	u, ok := s.users[r.PostForm.Get("username")]
	s.mu.Unlock()
	if !ok || u.password != r.PostForm.Get("password") {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.Token(u.User, TokenTTL),
		"token_type":   "bearer",
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			writeJSON(w, http.StatusOK, u.User)
			return
		}
	}
	writeError(w, http.StatusNotFound, "User not found")
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, userID string) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)
	if page < 1 || limit < 1 || limit > 100 {
		writeError(w, http.StatusUnprocessableEntity, "invalid paging")
		return
	}

	s.mu.Lock()
	all := s.tasks[userID]
	s.mu.Unlock()

	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	pages := (len(all) + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]any{
		"data": append([]model.Task{}, all[start:end]...),
		"pagination": map[string]any{
			"page":     page,
			"limit":    limit,
			"total":    len(all),
			"pages":    pages,
			"has_next": page < pages,
			"has_prev": page > 1,
		},
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required and cannot be empty")
		return
	}

	now := model.Timestamp{Time: s.now().UTC()}
	t := model.Task{ID: uuid.NewString(), Title: body.Title, CreatedAt: now, UpdatedAt: now, UserID: userID}
	if body.Description != nil {
		t.Description = *body.Description
	}

	s.mu.Lock()
	s.tasks[userID] = append([]model.Task{t}, s.tasks[userID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, userID string) {
	var p model.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.modify(w, userID, r.PathValue("id"), func(t *model.Task) {
		if p.Title != nil {
			t.Title = *p.Title
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.IsCompleted != nil {
			t.IsCompleted = *p.IsCompleted
		}
	})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request, userID string) {
	s.modify(w, userID, r.PathValue("id"), func(t *model.Task) {
		t.IsCompleted = !t.IsCompleted
	})
}

func (s *Server) modify(w http.ResponseWriter, userID, id string, change func(*model.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tasks[userID]
	for i := range list {
		if list[i].ID == id {
			change(&list[i])
			list[i].UpdatedAt = model.Timestamp{Time: s.now().UTC()}
			writeJSON(w, http.StatusOK, list[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tasks[userID]
	for i := range list {
		if list[i].ID == id {
			s.tasks[userID] = append(list[:i:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
