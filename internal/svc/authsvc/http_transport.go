package authsvc

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mkrupp/sampleapp/internal/domain"
	context_ "github.com/mkrupp/sampleapp/internal/infra/context"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
	http_ "github.com/mkrupp/sampleapp/internal/infra/transport/http"
)

// User-visible rejection messages.
const (
	MsgUsernameTaken      = "username is already taken"
	MsgInvalidCredentials = "invalid username or password"
	MsgMissingFields      = "username and password are required"
	MsgInvalidInput       = "username or password is not acceptable"
)

// Route paths.
const (
	PathIndex    = "/"
	PathRegister = "/register"
	PathLogin    = "/login"
	PathLogout   = "/logout"
	PathUsers    = "/api/users"
	PathAPIDocs  = "/apidocs"
	PathOpenAPI  = "/apidocs/openapi.yaml"
)

var (
	// ErrNoUsername is returned when the username is missing from the request.
	ErrNoUsername = errors.New("no username")
	// ErrNoPassword is returned when the password is missing from the request.
	ErrNoPassword = errors.New("no password")
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed openapi.yaml
var openAPIDocument []byte

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"session"`

	// CookieSecure restricts the session cookie to HTTPS
	CookieSecure bool `env:"COOKIE_SECURE" default:"false"`

	// UsersAPIPublic exposes GET /api/users without a session.
	// When false the endpoint answers 401 to anonymous requests.
	UsersAPIPublic bool `env:"USERS_API_PUBLIC" default:"true"`
}

// HTTPTransport serves the registration, login and landing pages and the user listing API.
type HTTPTransport struct {
	authSvc  *AuthService
	sessions *SessionManager
	log      logging.Logger
	cfg      HTTPTransportConfig
	pages    *template.Template
	router   *mux.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthService for credentials and a SessionManager for login state.
func NewHTTPTransport(
	authSvc *AuthService,
	sessions *SessionManager,
	cfg HTTPTransportConfig,
) (*HTTPTransport, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	ht := &HTTPTransport{
		authSvc:  authSvc,
		sessions: sessions,
		log:      logging.GetLogger("svc.authsvc.http_transport"),
		cfg:      cfg,
		pages:    pages,
	}

	ht.router = ht.routes()

	return ht, nil
}

// routes sets up the endpoints:
// - GET, POST /register: registration form and submit
// - GET, POST /login: login form and submit
// - GET /logout: end the session
// - GET /: landing page, login required
// - GET /api/users: JSON user listing
// - GET /apidocs, /apidocs/openapi.yaml: OpenAPI description of the JSON API.
func (ht *HTTPTransport) routes() *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http_.SessionMiddleware(next, ht.sessions, ht.cfg.CookieName, ht.log)
	})

	router.HandleFunc(PathRegister, ht.HandleRegisterForm).Methods(http.MethodGet)
	router.HandleFunc(PathRegister, ht.HandleRegister).Methods(http.MethodPost)
	router.HandleFunc(PathLogin, ht.HandleLoginForm).Methods(http.MethodGet)
	router.HandleFunc(PathLogin, ht.HandleLogin).Methods(http.MethodPost)
	router.HandleFunc(PathLogout, ht.HandleLogout).Methods(http.MethodGet)
	router.HandleFunc(PathIndex, ht.HandleIndex).Methods(http.MethodGet)
	router.HandleFunc(PathUsers, ht.HandleListUsers).Methods(http.MethodGet)
	router.Handle(PathAPIDocs, http.RedirectHandler(PathOpenAPI, http.StatusFound)).Methods(http.MethodGet)
	router.HandleFunc(PathOpenAPI, ht.HandleOpenAPI).Methods(http.MethodGet)

	return router
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleRegisterForm renders the registration form.
func (ht *HTTPTransport) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	ht.render(w, r, "register.html", nil)
}

// HandleRegister processes user registration requests.
// Expects form parameters: username, password.
// Redirects to the login page on success.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		switch {
		case err == nil:
			log.DebugContext(ctx, "user registered")
		case clientError(err):
			log.InfoContext(ctx, "user register rejected", "error", err)
		default:
			log.ErrorContext(ctx, "user register failed", "error", err)
		}
	}(r.Context())

	username, password, err := credentialsFromForm(w, r)
	if err != nil {
		return err
	}

	log = log.With(logging.Group("user", "username", username))

	if _, err := ht.authSvc.RegisterUser(r.Context(), username, password); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists):
			http.Error(w, MsgUsernameTaken, http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, MsgInvalidInput, http.StatusBadRequest)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("register user: %w", err)
	}

	http.Redirect(w, r, PathLogin, http.StatusFound)

	return nil
}

// HandleLoginForm renders the login form.
func (ht *HTTPTransport) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	ht.render(w, r, "login.html", nil)
}

// HandleLogin processes user login requests.
// Expects form parameters: username, password.
// Sets the session cookie and redirects to the landing page on success.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		switch {
		case err == nil:
			log.DebugContext(ctx, "user logged in")
		case clientError(err):
			log.InfoContext(ctx, "user login rejected", "error", err)
		default:
			log.ErrorContext(ctx, "user login failed", "error", err)
		}
	}(r.Context())

	username, password, err := credentialsFromForm(w, r)
	if err != nil {
		return err
	}

	log = log.With(logging.Group("user", "username", username))

	user, err := ht.authSvc.Authenticate(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			http.Error(w, MsgInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, MsgInvalidInput, http.StatusBadRequest)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("authenticate: %w", err)
	}

	token, expiresAt, err := ht.sessions.Establish(r.Context(), user.ID)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("establish session: %w", err)
	}

	http.SetCookie(w, ht.sessionCookie(token, expiresAt))
	http.Redirect(w, r, PathIndex, http.StatusFound)

	return nil
}

// HandleLogout clears the session and redirects to the login page.
// Logging out without a session is allowed.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		if err != nil {
			ht.log.ErrorContext(ctx, "user logout failed", "error", err)
		} else {
			ht.log.DebugContext(ctx, "user logged out")
		}
	}(r.Context())

	if cookie, err := r.Cookie(ht.cfg.CookieName); err == nil {
		if err := ht.sessions.Clear(r.Context(), cookie.Value); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return fmt.Errorf("clear session: %w", err)
		}
	}

	http.SetCookie(w, ht.expiredCookie())
	http.Redirect(w, r, PathLogin, http.StatusFound)

	return nil
}

// HandleIndex renders the landing page for logged-in users and redirects
// everyone else to the login page.
func (ht *HTTPTransport) HandleIndex(w http.ResponseWriter, r *http.Request) {
	identity, ok := context_.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, PathLogin, http.StatusFound)

		return
	}

	ht.render(w, r, "welcome.html", identity)
}

// HandleListUsers returns all users as a JSON array of {id, username}.
func (ht *HTTPTransport) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleListUsers(w, r)
}

func (ht *HTTPTransport) handleListUsers(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		if err != nil {
			ht.log.ErrorContext(ctx, "list users failed", "error", err)
		}
	}(r.Context())

	if _, ok := context_.IdentityFromContext(r.Context()); !ok && !ht.cfg.UsersAPIPublic {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return nil
	}

	users, err := ht.authSvc.ListUsers(r.Context())
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("list users: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(users); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// clientError reports whether err stems from the submitted form rather than
// from the server.
func clientError(err error) bool {
	return rejected(err) || errors.Is(err, ErrNoUsername) || errors.Is(err, ErrNoPassword)
}

// HandleOpenAPI serves the OpenAPI document for the JSON endpoints.
func (ht *HTTPTransport) HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")

	if _, err := w.Write(openAPIDocument); err != nil {
		ht.log.WarnContext(r.Context(), "write openapi document failed", "error", err)
	}
}

func credentialsFromForm(w http.ResponseWriter, r *http.Request) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return "", "", fmt.Errorf("parse form: %w", err)
	}

	username := r.PostFormValue("username")
	if username == "" {
		http.Error(w, MsgMissingFields, http.StatusBadRequest)

		return "", "", ErrNoUsername
	}

	password := r.PostFormValue("password")
	if password == "" {
		http.Error(w, MsgMissingFields, http.StatusBadRequest)

		return "", "", ErrNoPassword
	}

	return username, password, nil
}

func (ht *HTTPTransport) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer

	if err := ht.pages.ExecuteTemplate(&buf, name, data); err != nil {
		ht.log.ErrorContext(r.Context(), "render page failed", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if _, err := buf.WriteTo(w); err != nil {
		ht.log.WarnContext(r.Context(), "write page failed", "page", name, "error", err)
	}
}

func (ht *HTTPTransport) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     ht.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(ht.sessions.Now()).Seconds()),
		HttpOnly: true,
		Secure:   ht.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (ht *HTTPTransport) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     ht.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ht.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
