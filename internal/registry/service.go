package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"faceattend/internal/embedder"
	"faceattend/internal/matcher"
)

// Store is the persistence surface the enrollment service needs.
// *Repository satisfies it; tests use an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, name, email, photoURL string, encoding []float32) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListActiveEncodings(ctx context.Context) ([]Enrollment, error)
	Deactivate(ctx context.Context, id string) error
	AddSample(ctx context.Context, userID string, encoding []float32) error
}

var _ Store = (*Repository)(nil)

// PhotoStore uploads enrollment photos and returns a public URL.
// Optional; enrollment proceeds without one.
type PhotoStore interface {
	UploadBase64(data string) (string, error)
}

// Service handles enrollment: extracting the primary encoding through the
// embedding provider and persisting the user.
type Service struct {
	store   Store
	encoder embedder.Encoder
	photos  PhotoStore
	dim     int
}

// NewService creates the enrollment service. photos may be nil.
func NewService(store Store, encoder embedder.Encoder, photos PhotoStore, dim int) *Service {
	return &Service{store: store, encoder: encoder, photos: photos, dim: dim}
}

// Enroll registers a user from a base64 face image. The embedding provider
// screens the image first and then extracts the primary encoding; its
// validation failures pass through untouched so the caller can tell a bad
// photo from a service fault.
func (s *Service) Enroll(ctx context.Context, name, email, image string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return User{}, errors.New("name and email required")
	}
	if image == "" {
		return User{}, errors.New("face image required")
	}

	if err := s.encoder.Validate(ctx, image); err != nil {
		return User{}, err
	}
	encoding, err := s.encoder.Encode(ctx, image)
	if err != nil {
		return User{}, err
	}
	if len(encoding) != s.dim {
		return User{}, fmt.Errorf("%w: provider returned %d dimensions, want %d",
			matcher.ErrInvalidEncoding, len(encoding), s.dim)
	}

	photoURL := ""
	if s.photos != nil {
		url, err := s.photos.UploadBase64(image)
		if err != nil {
			// Photo storage is best-effort; the encoding is what matters.
			log.Printf("enrollment photo upload failed for %s: %v", email, err)
		} else {
			photoURL = url
		}
	}

	return s.store.CreateUser(ctx, name, email, photoURL, encoding)
}

// AddSample stores an auxiliary encoding for an enrolled user after
// verifying the user exists and the vector has the system dimensionality.
func (s *Service) AddSample(ctx context.Context, userID string, encoding []float32) error {
	if len(encoding) != s.dim {
		return fmt.Errorf("%w: sample has %d dimensions, want %d",
			matcher.ErrInvalidEncoding, len(encoding), s.dim)
	}
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.store.AddSample(ctx, userID, encoding)
}

// Users lists active users.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// User returns a single user by id.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

// Remove deactivates a user.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.Deactivate(ctx, id)
}
