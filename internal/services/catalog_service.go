package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	domain "github.com/luxeplan/api/internal/domain"
	pstorage "github.com/luxeplan/api/internal/platform/storage"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

const (
	maxServiceFieldRunes   = 120
	maxDescriptionRunes    = 2000
	defaultUploadExpiresIn = 15 * time.Minute
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp"}

var (
	// ErrServiceNotFound indicates the catalog entry does not exist.
	ErrServiceNotFound = errors.New("catalog: service not found")
	// ErrUploadsDisabled indicates no assets bucket or signer is configured.
	ErrUploadsDisabled = errors.New("catalog: uploads are not configured")
)

// UploadSigner issues signed upload URLs for objects in a bucket.
type UploadSigner interface {
	SignedUploadURL(ctx context.Context, bucket, object string, opts pstorage.UploadOptions) (pstorage.SignedUpload, error)
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Services        repositories.ServiceRepository
	Uploads         UploadSigner
	AssetsBucket    string
	UploadTTL       time.Duration
	DefaultCurrency string
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	services  repositories.ServiceRepository
	uploads   UploadSigner
	bucket    string
	uploadTTL time.Duration
	currency  string
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService assembles the catalog service. Uploads are optional.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Services == nil {
		return nil, errors.New("catalog service: service repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.UploadTTL
	if ttl <= 0 {
		ttl = defaultUploadExpiresIn
	}
	currency := strings.ToLower(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "usd"
	}
	return &catalogService{
		services:  deps.Services,
		uploads:   deps.Uploads,
		bucket:    strings.TrimSpace(deps.AssetsBucket),
		uploadTTL: ttl,
		currency:  currency,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *catalogService) List(ctx context.Context, query CatalogQuery) (Page[Service], error) {
	sort := domain.ServiceSort(strings.TrimSpace(query.Sort))
	if sort == "" {
		sort = domain.ServiceSortNewest
	}

	v := newValidator("catalog")
	switch sort {
	case domain.ServiceSortNewest, domain.ServiceSortCostAsc, domain.ServiceSortCostDesc, domain.ServiceSortRatingDesc:
	default:
		v.fail("sort", "must be one of newest, cost_asc, cost_desc, rating_desc")
	}
	if query.MinPrice != nil && query.MaxPrice != nil && *query.MinPrice > *query.MaxPrice {
		v.fail("minPrice", "must not exceed maxPrice")
	}
	if err := v.err(); err != nil {
		return Page[Service]{}, err
	}

	page, err := s.services.List(ctx, repositories.ServiceListFilter{
		Search:   strings.TrimSpace(query.Search),
		Category: strings.TrimSpace(query.Category),
		MinPrice: query.MinPrice,
		MaxPrice: query.MaxPrice,
		Sort:     sort,
		Page:     query.Page,
	})
	if err != nil {
		return Page[Service]{}, mapRepositoryError(err, nil, nil)
	}
	return page, nil
}

func (s *catalogService) Get(ctx context.Context, serviceID string) (Service, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return Service{}, fmt.Errorf("%w: id is required", ErrServiceNotFound)
	}
	service, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		return Service{}, mapRepositoryError(err, ErrServiceNotFound, nil)
	}
	return service, nil
}

func (s *catalogService) Create(ctx context.Context, cmd ServiceCommand) (Service, error) {
	service, err := s.buildService(cmd)
	if err != nil {
		return Service{}, err
	}
	now := s.now()
	service.ID = s.newID()
	service.CreatedByEmail = textutil.LowerKey(cmd.Actor.Email)
	service.CreatedAt = now
	service.UpdatedAt = now

	if err := s.services.Insert(ctx, service); err != nil {
		return Service{}, mapRepositoryError(err, nil, nil)
	}
	s.logger(ctx, "catalog.service_created", map[string]any{"serviceId": service.ID, "category": service.Category})
	return service, nil
}

func (s *catalogService) Update(ctx context.Context, serviceID string, cmd ServiceCommand) (Service, error) {
	current, err := s.Get(ctx, serviceID)
	if err != nil {
		return Service{}, err
	}
	updated, err := s.buildService(cmd)
	if err != nil {
		return Service{}, err
	}
	updated.ID = current.ID
	updated.CreatedByEmail = current.CreatedByEmail
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = s.now()

	if err := s.services.Update(ctx, updated); err != nil {
		return Service{}, mapRepositoryError(err, ErrServiceNotFound, nil)
	}
	return updated, nil
}

func (s *catalogService) Delete(ctx context.Context, serviceID string) error {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return fmt.Errorf("%w: id is required", ErrServiceNotFound)
	}
	if err := s.services.Delete(ctx, serviceID); err != nil {
		return mapRepositoryError(err, ErrServiceNotFound, nil)
	}
	s.logger(ctx, "catalog.service_deleted", map[string]any{"serviceId": serviceID})
	return nil
}

func (s *catalogService) UploadURL(ctx context.Context, cmd UploadCommand) (UploadTicket, error) {
	if s.uploads == nil || s.bucket == "" {
		return UploadTicket{}, ErrUploadsDisabled
	}

	v := newValidator("catalog")
	contentType := textutil.LowerKey(cmd.ContentType)
	v.check(contentType != "", "contentType", "is required")
	object, pathErr := pstorage.ServiceImagePath(s.newID(), strings.TrimSpace(cmd.FileName))
	if pathErr != nil {
		v.fail("fileName", "is invalid")
	}
	if err := v.err(); err != nil {
		return UploadTicket{}, err
	}

	signed, err := s.uploads.SignedUploadURL(ctx, s.bucket, object, pstorage.UploadOptions{
		ContentType:         contentType,
		AllowedContentTypes: allowedImageTypes,
		ExpiresIn:           s.uploadTTL,
	})
	if err != nil {
		if errors.Is(err, pstorage.ErrContentTypeDenied) {
			return UploadTicket{}, &ValidationError{Op: "catalog", Fields: map[string]string{
				"contentType": "must be one of " + strings.Join(allowedImageTypes, ", "),
			}}
		}
		return UploadTicket{}, fmt.Errorf("catalog: sign upload: %w", err)
	}

	return UploadTicket{
		URL:        signed.URL,
		Method:     signed.Method,
		Headers:    signed.Headers,
		ObjectPath: object,
		PublicURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object),
		ExpiresAt:  signed.ExpiresAt,
	}, nil
}

func (s *catalogService) buildService(cmd ServiceCommand) (Service, error) {
	name := textutil.PlainText(cmd.Name, 0)
	category := textutil.PlainText(cmd.Category, 0)

	v := newValidator("catalog")
	v.check(name != "", "service_name", "is required")
	v.check(utf8.RuneCountInString(name) <= maxServiceFieldRunes, "service_name", "must be at most 120 characters")
	v.check(utf8.RuneCountInString(category) <= maxServiceFieldRunes, "service_category", "must be at most 120 characters")
	v.check(cmd.Cost >= 0, "cost", "must not be negative")
	v.check(cmd.Ratings >= 0 && cmd.Ratings <= 5, "ratings", "must be between 0 and 5")
	if err := v.err(); err != nil {
		return Service{}, err
	}

	currency := textutil.LowerKey(cmd.Currency)
	if currency == "" {
		currency = s.currency
	}
	return Service{
		Name:        name,
		Category:    category,
		Description: textutil.PlainText(cmd.Description, maxDescriptionRunes),
		Cost:        roundCents(cmd.Cost),
		Currency:    currency,
		Unit:        textutil.PlainText(cmd.Unit, maxServiceFieldRunes),
		Image:       strings.TrimSpace(cmd.Image),
		Ratings:     cmd.Ratings,
	}, nil
}
