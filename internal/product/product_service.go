// Package product implements marketplace listing management. All
// user-supplied text passes through the sanitizer before storage, and
// mutations are restricted to the listing's seller.
package product

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/repository"
	"github.com/jangteo/marketplace/backend/internal/sanitizer"
)

// Listing constraints
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Product service errors
var (
	ErrTitleRequired   = errors.New("title is required")
	ErrTitleTooLong    = errors.New("title is too long")
	ErrDescTooLong     = errors.New("description is too long")
	ErrInvalidPrice    = errors.New("price must be a non-negative integer")
	ErrNotOwner        = errors.New("only the seller may modify this listing")
	ErrProductNotFound = repository.ErrProductNotFound
)

// Service handles product listing business logic
type Service struct {
	repo   repository.ProductRepositoryInterface
	logger *slog.Logger
}

// NewService creates a new product Service instance
func NewService(repo repository.ProductRepositoryInterface, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ListingInput carries the user-supplied fields of a listing. Price is
// kept as raw text so the service can reject non-numeric input rather
// than silently zeroing it.
type ListingInput struct {
	Title       string
	Description string
	Price       string
}

func (s *Service) validate(in ListingInput) (title, description string, price int, err error) {
	title = strings.TrimSpace(sanitizer.Sanitize(in.Title))
	description = strings.TrimSpace(sanitizer.Sanitize(in.Description))

	if title == "" {
		return "", "", 0, ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", 0, ErrTitleTooLong
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", 0, ErrDescTooLong
	}

	price, perr := sanitizer.StrictInt(in.Price)
	if perr != nil || price < 0 {
		return "", "", 0, ErrInvalidPrice
	}
	return title, description, price, nil
}

// Create validates and stores a new listing owned by sellerID
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, in ListingInput) (*repository.Product, error) {
	title, description, price, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	product := &repository.Product{
		Title:       title,
		Description: description,
		Price:       price,
		SellerID:    sellerID,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product created", "product_id", product.ID, "seller_id", sellerID)
	return product, nil
}

// Get retrieves a single listing by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all listings, newest first. A non-empty query switches
// to a case-insensitive title search.
func (s *Service) List(ctx context.Context, query string) ([]repository.Product, error) {
	query = strings.TrimSpace(sanitizer.Sanitize(query))
	if query != "" {
		return s.repo.Search(ctx, query)
	}
	return s.repo.List(ctx)
}

// Update replaces the mutable fields of a listing. Only the seller may
// update their own listing.
func (s *Service) Update(ctx context.Context, requesterID, productID uuid.UUID, in ListingInput) (*repository.Product, error) {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != requesterID {
		return nil, ErrNotOwner
	}

	title, description, price, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	product.Title = title
	product.Description = description
	product.Price = price
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes a listing. Only the seller may delete their own
// listing; admin deletion goes through the moderation service.
func (s *Service) Delete(ctx context.Context, requesterID, productID uuid.UUID) error {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != requesterID {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return err
	}

	s.logger.Info("product deleted", "product_id", productID, "seller_id", requesterID)
	return nil
}
