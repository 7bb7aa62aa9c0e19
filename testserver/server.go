// Package testserver serves a small CRM-like web application with the login,
// account and password reset screens the page objects drive. It keeps users'
// sessions and accounts in memory.
package testserver

import (
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pageflow/internal/pages"
)

const (
	LoginPath          = "/login"
	HomePath           = "/home"
	LogoutPath         = "/secur/logout.jsp"
	ForgotPasswordPath = "/secur/forgotpassword.jsp"
	NewAccountPath     = "/lightning/o/Account/new"

	sessionCookie = "sid"

	LoginErrorText    = "Please check your username and password. If you still can't log in, contact your Salesforce administrator."
	RequiredFieldText = "Complete this field."
)

var (
	AccountTypes = []string{"Customer - Direct", "Customer - Channel", "Prospect", "Partner", "Other"}
	Industries   = []string{"Technology", "Healthcare", "Finance", "Retail", "Manufacturing"}
)

// Config holds the accepted credentials and page behavior.
type Config struct {
	Username string
	Password string
	// Delay is added before every page response.
	Delay  time.Duration
	Logger zerolog.Logger
}

// Account is a stored account record.
type Account struct {
	ID       string
	Name     string
	Type     string
	Industry string
	Phone    string
	Website  string
	Created  time.Time
}

// Server is the CRM test application.
type Server struct {
	cfg       Config
	mux       *http.ServeMux
	pages     map[string]*template.Template
	requestID atomic.Int64

	mu       sync.Mutex
	sessions map[string]string
	accounts map[string]Account
	nextID   int
}

// NewServer creates a server that accepts cfg's credentials.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		pages:    parsePages(),
		sessions: make(map[string]string),
		accounts: make(map[string]Account),
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
	s.mux.HandleFunc("GET "+LoginPath, s.handleLoginForm)
	s.mux.HandleFunc("POST "+LoginPath, s.handleLogin)
	s.mux.HandleFunc("GET "+LogoutPath, s.handleLogout)
	s.mux.HandleFunc("GET "+ForgotPasswordPath, s.handleForgotPassword)
	s.mux.HandleFunc("POST "+ForgotPasswordPath, s.handleForgotPassword)
	s.mux.HandleFunc("GET "+HomePath, s.requireUser(s.handleHome))
	s.mux.HandleFunc("GET "+pages.AccountListPath, s.requireUser(s.handleAccountList))
	s.mux.HandleFunc("GET "+NewAccountPath, s.requireUser(s.handleAccountForm))
	s.mux.HandleFunc("POST "+NewAccountPath, s.requireUser(s.handleAccountCreate))
	s.mux.HandleFunc("GET /lightning/r/Account/{id}/view", s.requireUser(s.handleAccountView))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.requestID.Add(1)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.cfg.Logger.Debug().
			Int64("request", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// pageData is the view model every template receives.
type pageData struct {
	Title    string
	User     string
	ShowTabs bool

	Error    string
	Username string
	Sent     bool

	Accounts    []Account
	Account     Account
	Created     bool
	Form        Account
	TypeBox     combobox
	IndustryBox combobox
}

type combobox struct {
	Field   string
	Value   string
	Options []string
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	if s.cfg.Delay > 0 {
		time.Sleep(s.cfg.Delay)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		s.cfg.Logger.Error().Err(err).Str("page", page).Msg("render failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", pageData{Title: "Login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("pw")
	if !s.validCredentials(username, password) {
		s.render(w, http.StatusUnauthorized, "login", pageData{Title: "Login", Error: LoginErrorText, Username: username})
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = username
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (s *Server) validCredentials(username, password string) bool {
	return s.cfg.Username != "" && s.cfg.Password != "" &&
		username == s.cfg.Username && password == s.cfg.Password
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Path: "/", MaxAge: -1})
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	sent := r.Method == http.MethodPost && strings.TrimSpace(r.FormValue("un")) != ""
	s.render(w, http.StatusOK, "forgot", pageData{Title: "Forgot Your Password", Sent: sent})
}

// user returns the signed-in username for r, or "".
func (s *Server) user(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c.Value]
}

type userHandler func(w http.ResponseWriter, r *http.Request, user string)

func (s *Server) requireUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.user(r)
		if user == "" {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		h(w, r, user)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request, user string) {
	s.render(w, http.StatusOK, "home", pageData{Title: "Home", User: user})
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request, user string) {
	s.render(w, http.StatusOK, "list", pageData{Title: "Accounts", User: user, ShowTabs: true, Accounts: s.Accounts()})
}

func (s *Server) handleAccountForm(w http.ResponseWriter, r *http.Request, user string) {
	s.render(w, http.StatusOK, "form", s.formData(user, Account{}, ""))
}

func (s *Server) formData(user string, form Account, errText string) pageData {
	return pageData{
		Title:       "New Account",
		User:        user,
		ShowTabs:    true,
		Error:       errText,
		Form:        form,
		TypeBox:     combobox{Field: "Type", Value: form.Type, Options: AccountTypes},
		IndustryBox: combobox{Field: "Industry", Value: form.Industry, Options: Industries},
	}
}

func (s *Server) handleAccountCreate(w http.ResponseWriter, r *http.Request, user string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := Account{
		Name:     strings.TrimSpace(r.PostForm.Get("Name")),
		Type:     r.PostForm.Get("Type"),
		Industry: r.PostForm.Get("Industry"),
		Phone:    r.PostForm.Get("Phone"),
		Website:  r.PostForm.Get("Website"),
	}
	if form.Name == "" {
		s.render(w, http.StatusUnprocessableEntity, "form", s.formData(user, form, RequiredFieldText))
		return
	}

	acct := s.create(form)
	if r.PostForm.Get("SaveAndNew") != "" {
		http.Redirect(w, r, NewAccountPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/lightning/r/Account/"+acct.ID+"/view?created=1", http.StatusSeeOther)
}

func (s *Server) create(a Account) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = fmt.Sprintf("001%012d", s.nextID)
	a.Created = time.Now()
	s.accounts[a.ID] = a
	return a
}

func (s *Server) handleAccountView(w http.ResponseWriter, r *http.Request, user string) {
	acct, ok := s.Account(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, "view", pageData{
		Title:    acct.Name,
		User:     user,
		ShowTabs: true,
		Account:  acct,
		Created:  r.URL.Query().Get("created") != "",
	})
}

// Accounts returns the stored accounts, oldest first.
func (s *Server) Accounts() []Account {
	s.mu.Lock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) Account(id string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}
