package product

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/api"
	appctx "github.com/jangteo/marketplace/backend/internal/context"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// Handler handles HTTP requests for product listings
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new product Handler instance
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// ListingRequest is the request body for creating or updating a listing
type ListingRequest struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	Price       json.Number `json:"price" validate:"required"`
}

// ProductResponse is the API representation of a listing
type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int       `json:"price"`
	SellerID    uuid.UUID `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProductResponse(p *repository.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		SellerID:    p.SellerID,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) decodeListing(w http.ResponseWriter, r *http.Request) (ListingInput, bool) {
	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return ListingInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "title and price are required", nil)
		return ListingInput{}, false
	}
	return ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price.String(),
	}, true
}

// Create handles POST /products
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	in, ok := h.decodeListing(w, r)
	if !ok {
		return
	}

	product, err := h.service.Create(r.Context(), sellerID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusCreated, toProductResponse(product))
}

// Get handles GET /products/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid product id", nil)
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, toProductResponse(product))
}

// List handles GET /products with an optional ?q= search query
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

// Update handles PUT /products/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid product id", nil)
		return
	}

	in, ok := h.decodeListing(w, r)
	if !ok {
		return
	}

	product, err := h.service.Update(r.Context(), requesterID, id, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, toProductResponse(product))
}

// Delete handles DELETE /products/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid product id", nil)
		return
	}

	if err := h.service.Delete(r.Context(), requesterID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTitleRequired):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "title is required", nil)
	case errors.Is(err, ErrTitleTooLong):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "title must be at most 100 characters", nil)
	case errors.Is(err, ErrDescTooLong):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "description must be at most 500 characters", nil)
	case errors.Is(err, ErrInvalidPrice):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "price must be a non-negative integer", nil)
	case errors.Is(err, ErrNotOwner):
		api.WriteError(w, http.StatusForbidden, "FORBIDDEN", "only the seller may modify this listing", nil)
	case errors.Is(err, ErrProductNotFound):
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	default:
		h.logger.Error("product operation failed", "error", err)
		api.WriteInternalError(w)
	}
}

func requesterFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "authentication required", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		api.WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "invalid session", nil)
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers product routes on the router. Listing and
// detail reads are public; mutations require a session.
func RegisterRoutes(r chi.Router, h *Handler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}
