package issuance

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	"github.com/nimblebank/cardissuer/internal/auth"
	"github.com/nimblebank/cardissuer/issuance/models"
)

// API is the HTTP boundary of the issuance service. It owns wire-format
// translation: categorized errors become status codes and JSON bodies with a
// correlation id; anything uncategorized becomes a generic 500.
type API struct {
	service *Service
	logger  *slog.Logger
}

func NewAPI(service *Service, logger *slog.Logger) *API {
	return &API{
		service: service,
		logger:  logger.With(slog.String("component", "api")),
	}
}

// AppendRoutes mounts the API. authn guards the card routes; createLimit,
// when non-nil, additionally throttles card creation.
func (a *API) AppendRoutes(r chi.Router, authn, createLimit func(http.Handler) http.Handler) {
	r.Post("/users", a.registerUser)

	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Route("/cards", func(r chi.Router) {
			if createLimit != nil {
				r.With(createLimit).Post("/", a.createCard)
			} else {
				r.Post("/", a.createCard)
			}
			r.Get("/", a.listCards)
			r.Get("/{cardID}", a.getCard)
		})
	})
}

type createCardRequest struct {
	Color string `json:"color"`
}

func (a *API) registerUser(w http.ResponseWriter, r *http.Request) {
	req := models.RegisterUser{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, newError(ErrInvalidInput, "request body must be valid JSON", err))
		return
	}

	user, err := a.service.RegisterUser(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, user)
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		a.writeError(w, r, errors.New("no authenticated user on request context"))
		return
	}

	req := createCardRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, newError(ErrInvalidInput, "request body must be valid JSON", err))
		return
	}

	color := models.Color(req.Color)
	if !color.Valid() {
		a.writeError(w, r, newError(ErrInvalidInput, "color must be one of: black, pink", nil))
		return
	}

	card, err := a.service.IssueCard(r.Context(), user, color)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, card)
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		a.writeError(w, r, errors.New("no authenticated user on request context"))
		return
	}

	cards, err := a.service.ListCards(r.Context(), user)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusOK, cards)
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		a.writeError(w, r, errors.New("no authenticated user on request context"))
		return
	}

	card, err := a.service.GetCard(r.Context(), user, chi.URLParam(r, "cardID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusOK, card)
}

type errorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := chimw.GetReqID(r.Context())

	var cerr *Error
	if errors.As(err, &cerr) {
		a.writeJSON(w, cerr.HTTPStatus(), errorResponse{
			Error:         string(cerr.Kind),
			Message:       cerr.Message,
			CorrelationID: correlationID,
		})
		return
	}

	// Uncategorized failure: detail stays in the log, never on the wire.
	a.logger.Error("unexpected error",
		slog.String("correlation_id", correlationID),
		slog.Any("err", err))
	a.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:         "internal_error",
		Message:       "An unexpected error occurred.",
		CorrelationID: correlationID,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encoding response", slog.Any("err", err))
	}
}
