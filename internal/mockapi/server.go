// Package mockapi is an in-memory stand-in for the remote reservation service.
// It speaks the same envelope protocol and is used by tests and local development.
package mockapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spacebook/client/internal/models"
)

// BasePath is where the service mounts its routes.
const BasePath = "/api/v1"

const timeLayout = "2006-01-02T15:04:05"

// Options configures a mock service.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// PasswordCost is the bcrypt cost; tests use bcrypt.MinCost.
	PasswordCost int

	// SeedSpaces loads a small demo catalog.
	SeedSpaces bool

	Now    func() time.Time
	Logger *zap.Logger
}

type account struct {
	models.User
	passwordHash []byte
	deleted      bool
}

type booking struct {
	models.Reservation
	start time.Time
	end   time.Time
}

// Server is the mock reservation service. It implements http.Handler.
type Server struct {
	mu sync.Mutex

	router *mux.Router
	tokens *tokenIssuer
	cost   int
	now    func() time.Time
	logger *zap.Logger

	generation    int64
	accounts      map[int64]*account
	emails        map[string]int64
	refreshTokens map[int64]string
	spaces        []*models.Space
	bookings      []*booking

	nextUserID        int64
	nextSpaceID       int64
	nextReservationID int64

	reissues atomic.Int64
}

// New creates a mock service.
func New(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "spacebook-mock-secret"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 14 * 24 * time.Hour
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		tokens: &tokenIssuer{
			secret:     []byte(opts.Secret),
			accessTTL:  opts.AccessTTL,
			refreshTTL: opts.RefreshTTL,
			now:        opts.Now,
		},
		cost:          opts.PasswordCost,
		now:           opts.Now,
		logger:        opts.Logger.Named("mockapi"),
		accounts:      make(map[int64]*account),
		emails:        make(map[string]int64),
		refreshTokens: make(map[int64]string),
	}
	if opts.SeedSpaces {
		s.seed()
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix(BasePath).Subrouter()

	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/reissue", s.handleReissue).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.authenticated(s.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/withdraw", s.authenticated(s.handleWithdraw)).Methods(http.MethodDelete)

	api.HandleFunc("/users/me", s.authenticated(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/users/me", s.authenticated(s.handleUpdateMe)).Methods(http.MethodPatch)

	api.HandleFunc("/spaces", s.handleListSpaces).Methods(http.MethodGet)
	api.HandleFunc("/spaces/{id:[0-9]+}", s.handleGetSpace).Methods(http.MethodGet)
	api.HandleFunc("/spaces/{id:[0-9]+}/reserved-times", s.handleReservedTimes).Methods(http.MethodGet)

	api.HandleFunc("/reservations", s.authenticated(s.handleCreateReservation)).Methods(http.MethodPost)
	api.HandleFunc("/reservations/my", s.authenticated(s.handleMyReservations)).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id:[0-9]+}", s.authenticated(s.handleGetReservation)).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id:[0-9]+}/cancel", s.authenticated(s.handleCancelReservation)).Methods(http.MethodPatch)

	api.HandleFunc("/recommendations", s.authenticated(s.handleRecommendations)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "resource not found")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ExpireAccessTokens invalidates every access token issued so far.
// Refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every stored refresh token, so the next
// renewal fails.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshTokens = make(map[int64]string)
	s.mu.Unlock()
}

// ReissueCount returns how many times /auth/reissue was called.
func (s *Server) ReissueCount() int64 {
	return s.reissues.Load()
}

// AddSpace inserts a space and returns it with its assigned ID.
func (s *Server) AddSpace(space models.Space) models.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addSpaceLocked(space)
}

func (s *Server) addSpaceLocked(space models.Space) *models.Space {
	s.nextSpaceID++
	space.ID = s.nextSpaceID
	if space.SpaceStatus == "" {
		space.SpaceStatus = models.SpaceOpen
	}
	if space.CreatedAt == "" {
		space.CreatedAt = s.now().Format(timeLayout)
	}
	stored := space
	s.spaces = append(s.spaces, &stored)
	return &stored
}

func (s *Server) seed() {
	for _, space := range []models.Space{
		{SpaceName: "Quiet Study Room", Description: "Silent room with desk lamps", SpaceType: models.SpaceTypeStudy, PricePerHour: 8000, Location: "Gangnam", Capacity: 4},
		{SpaceName: "Party Lounge", Description: "Sound system and kitchen", SpaceType: models.SpaceTypeParty, PricePerHour: 30000, Location: "Hongdae", Capacity: 20},
		{SpaceName: "Meeting Room B", Description: "Whiteboard and projector", SpaceType: models.SpaceTypeMeeting, PricePerHour: 20000, Location: "Gangnam", Capacity: 8},
		{SpaceName: "Seminar Hall", Description: "Projector for presentations", SpaceType: models.SpaceTypeMeeting, PricePerHour: 50000, Location: "Jongno", Capacity: 40},
	} {
		s.addSpaceLocked(space)
	}
}

func (s *Server) findSpace(id int64) *models.Space {
	for _, space := range s.spaces {
		if space.ID == id {
			return space
		}
	}
	return nil
}

func (s *Server) findBooking(id int64) *booking {
	for _, b := range s.bookings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// envelope mirrors the service's response wrapper.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: false, Message: message})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now().Format(timeLayout)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// paginate cuts one page out of items. page is zero-based.
func paginate[T any](items []T, page, size int) models.Page[T] {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}

	total := len(items)
	from := page * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}

	totalPages := (total + size - 1) / size
	content := make([]T, to-from)
	copy(content, items[from:to])

	return models.Page[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: int64(total),
		TotalPages:    totalPages,
		Last:          page >= totalPages-1,
	}
}

// sortSpaces orders spaces by a "field,direction" sort key; unknown fields keep newest first.
func sortSpaces(spaces []*models.Space, order string) {
	field, dir, _ := strings.Cut(order, ",")
	desc := strings.EqualFold(dir, "desc")

	var less func(a, b *models.Space) bool
	switch field {
	case "pricePerHour":
		less = func(a, b *models.Space) bool { return a.PricePerHour < b.PricePerHour }
	case "capacity":
		less = func(a, b *models.Space) bool { return a.Capacity < b.Capacity }
	case "spaceName":
		less = func(a, b *models.Space) bool { return a.SpaceName < b.SpaceName }
	default:
		less = func(a, b *models.Space) bool { return a.ID < b.ID }
		desc = true
	}

	sort.SliceStable(spaces, func(i, j int) bool {
		if desc {
			return less(spaces[j], spaces[i])
		}
		return less(spaces[i], spaces[j])
	})
}
