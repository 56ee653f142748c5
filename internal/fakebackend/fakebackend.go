// Package fakebackend is an in-memory stand-in for the REST backend, served
// over httptest for tests of the HTTP and Lambda surfaces.
package fakebackend

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/zms-erp/ledgertree/client"
	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
)

// Server is a fake backend
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string][]models.Account
	statuses  map[string]string
	balances  []models.OpeningBalance
	nextID    int
	failList  bool
	locked    map[string]bool
	requestID string
}

// New starts a fake backend. Close it when done.
func New() *Server {
	s := &Server{
		resources: make(map[string][]models.Account),
		statuses:  make(map[string]string),
		locked:    make(map[string]bool),
		nextID:    1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Seed appends accounts to a resource
func (s *Server) Seed(resource string, accounts ...models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resource] = append(s.resources[resource], accounts...)
}

// Accounts returns the stored accounts of a resource
func (s *Server) Accounts(resource string) []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.NormalizeAccounts(s.resources[resource])
}

// Balances returns the posted opening balances
func (s *Server) Balances() []models.OpeningBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OpeningBalance(nil), s.balances...)
}

// Status returns the last status set for a record
func (s *Server) Status(resource, id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[resource+"/"+id]
}

// LastRequestID returns the request id of the last request
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

// FailList makes list calls answer 503
func (s *Server) FailList(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = fail
}

// Lock makes status updates of id fail
func (s *Server) Lock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[id] = true
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestID = r.Header.Get(client.RequestIDHeader)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	resource := parts[0]
	id := ""
	if len(parts) > 1 {
		id = parts[1]
	}

	switch {
	case r.Method == http.MethodGet && id == "":
		s.list(w, r, resource)
	case r.Method == http.MethodPost && resource == client.OpeningBalanceResource:
		var balance models.OpeningBalance
		if err := json.NewDecoder(r.Body).Decode(&balance); err != nil {
			reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		s.balances = append(s.balances, balance)
		reply(w, http.StatusCreated, map[string]any{"data": balance})
	case r.Method == http.MethodPost && id == "":
		s.create(w, r, resource)
	case r.Method == http.MethodPut && id != "":
		s.update(w, r, resource, id)
	case r.Method == http.MethodDelete && id != "":
		s.delete(w, resource, id)
	case r.Method == http.MethodPatch && id != "":
		s.patch(w, r, resource, id)
	default:
		reply(w, http.StatusMethodNotAllowed, map[string]string{"message": "unsupported"})
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, resource string) {
	if s.failList {
		reply(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("pageIndex"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	all := s.resources[resource]
	total := len(all)
	totalPages := (total + size - 1) / size
	from := min((page-1)*size, total)
	to := min(from+size, total)

	reply(w, http.StatusOK, client.ListResponse{
		Data: append([]models.Account{}, all[from:to]...),
		Misc: client.Pagination{TotalPages: totalPages, Total: total, PageIndex: page, PageSize: size},
	})
}

type payload struct {
	ListID          string  `json:"listid"`
	Description     string  `json:"description"`
	ParentAccountID *string `json:"parentAccountId"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, resource string) {
	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Description == "" {
		reply(w, http.StatusBadRequest, map[string]string{"message": "description is required"})
		return
	}
	s.nextID++
	account := models.Account{
		ID:              strconv.Itoa(s.nextID),
		ListID:          strconv.Itoa(s.nextID),
		Description:     p.Description,
		ParentAccountID: p.ParentAccountID,
	}
	s.resources[resource] = append(s.resources[resource], account)
	reply(w, http.StatusCreated, map[string]any{"data": account})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, resource, id string) {
	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	for i, a := range s.resources[resource] {
		if a.ID == id {
			a.ListID = p.ListID
			a.Description = p.Description
			a.ParentAccountID = p.ParentAccountID
			s.resources[resource][i] = a
			reply(w, http.StatusOK, map[string]any{"data": a})
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"message": "account not found"})
}

func (s *Server) delete(w http.ResponseWriter, resource, id string) {
	forest, _ := hierarchy.NewForest(s.resources[resource])
	next, err := hierarchy.Reduce(forest, hierarchy.Delete{ID: id})
	if err != nil {
		reply(w, http.StatusNotFound, map[string]string{"message": "account not found"})
		return
	}
	s.resources[resource] = next.Flat()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request, resource, id string) {
	if s.locked[id] {
		reply(w, http.StatusConflict, map[string]string{"message": "record is locked"})
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.statuses[resource+"/"+id] = body.Status
	w.WriteHeader(http.StatusNoContent)
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
