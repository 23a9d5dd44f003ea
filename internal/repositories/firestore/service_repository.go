package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/luxeplan/api/internal/domain"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/platform/textutil"
	"github.com/luxeplan/api/internal/repositories"
)

const servicesCollection = "service"

type serviceDocument struct {
	ID             string    `firestore:"-"`
	Name           string    `firestore:"service_name"`
	Category       string    `firestore:"service_category"`
	Description    string    `firestore:"description"`
	Cost           float64   `firestore:"cost"`
	Currency       string    `firestore:"currency"`
	Unit           string    `firestore:"unit"`
	Image          string    `firestore:"image"`
	Ratings        float64   `firestore:"ratings"`
	CreatedByEmail string    `firestore:"createdByEmail"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

// ServiceRepository stores catalog entries in the service collection.
type ServiceRepository struct {
	services *pfirestore.Collection[serviceDocument]
}

var _ repositories.ServiceRepository = (*ServiceRepository)(nil)

// NewServiceRepository constructs a Firestore-backed catalog repository.
func NewServiceRepository(provider *pfirestore.Provider) (*ServiceRepository, error) {
	if provider == nil {
		return nil, errors.New("service repository requires firestore provider")
	}
	return &ServiceRepository{
		services: pfirestore.NewCollection[serviceDocument](provider, servicesCollection, func(d *serviceDocument, id string) { d.ID = id }),
	}, nil
}

func (r *ServiceRepository) Insert(ctx context.Context, service domain.Service) error {
	return r.services.Create(ctx, service.ID, fromDomainService(service))
}

func (r *ServiceRepository) Update(ctx context.Context, service domain.Service) error {
	doc := fromDomainService(service)
	return r.services.Update(ctx, service.ID, []firestore.Update{
		{Path: "service_name", Value: doc.Name},
		{Path: "service_category", Value: doc.Category},
		{Path: "description", Value: doc.Description},
		{Path: "cost", Value: doc.Cost},
		{Path: "currency", Value: doc.Currency},
		{Path: "unit", Value: doc.Unit},
		{Path: "image", Value: doc.Image},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	})
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	return r.services.Delete(ctx, serviceID)
}

func (r *ServiceRepository) FindByID(ctx context.Context, serviceID string) (domain.Service, error) {
	doc, err := r.services.Get(ctx, serviceID)
	if err != nil {
		return domain.Service{}, err
	}
	return toDomainService(doc), nil
}

// List serves category-only queries sorted by createdAt or cost natively. Text search, price
// bounds and rating order are applied in memory over the category-filtered set.
func (r *ServiceRepository) List(ctx context.Context, filter repositories.ServiceListFilter) (domain.Page[domain.Service], error) {
	ref, err := r.services.Ref(ctx)
	if err != nil {
		return domain.Page[domain.Service]{}, err
	}
	page := pagination.Must(filter.Page)
	query := ref.Query
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("service_category", "==", category)
	}

	if field, dir, ok := nativeServiceOrder(filter); ok {
		total, err := r.services.Count(ctx, query)
		if err != nil {
			return domain.Page[domain.Service]{}, err
		}
		docs, err := r.services.Page(ctx, query.OrderBy(field, dir), page.Offset(), page.Size)
		if err != nil {
			return domain.Page[domain.Service]{}, err
		}
		return domain.Page[domain.Service]{Items: toDomainServices(docs), Count: total}, nil
	}

	docs, err := r.services.All(ctx, query)
	if err != nil {
		return domain.Page[domain.Service]{}, err
	}
	matched := make([]domain.Service, 0, len(docs))
	for _, doc := range docs {
		if !textutil.ContainsFold(doc.Name, filter.Search) {
			continue
		}
		if filter.MinPrice != nil && doc.Cost < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && doc.Cost > *filter.MaxPrice {
			continue
		}
		matched = append(matched, toDomainService(doc))
	}
	sortServices(matched, filter.Sort)
	return domain.Page[domain.Service]{
		Items: pagination.Window(matched, page),
		Count: int64(len(matched)),
	}, nil
}

func nativeServiceOrder(filter repositories.ServiceListFilter) (string, firestore.Direction, bool) {
	if strings.TrimSpace(filter.Search) != "" || filter.MinPrice != nil || filter.MaxPrice != nil {
		return "", 0, false
	}
	switch filter.Sort {
	case domain.ServiceSortCostAsc:
		return "cost", firestore.Asc, true
	case domain.ServiceSortCostDesc:
		return "cost", firestore.Desc, true
	case domain.ServiceSortNewest, "":
		return "createdAt", firestore.Desc, true
	default:
		return "", 0, false
	}
}

func sortServices(items []domain.Service, order domain.ServiceSort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case domain.ServiceSortCostAsc:
			return a.Cost < b.Cost
		case domain.ServiceSortCostDesc:
			return a.Cost > b.Cost
		case domain.ServiceSortRatingDesc:
			return a.Ratings > b.Ratings
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}

func toDomainServices(docs []serviceDocument) []domain.Service {
	out := make([]domain.Service, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDomainService(doc))
	}
	return out
}

func toDomainService(doc serviceDocument) domain.Service {
	return domain.Service{
		ID:             doc.ID,
		Name:           doc.Name,
		Category:       doc.Category,
		Description:    doc.Description,
		Cost:           doc.Cost,
		Currency:       doc.Currency,
		Unit:           doc.Unit,
		Image:          doc.Image,
		Ratings:        doc.Ratings,
		CreatedByEmail: doc.CreatedByEmail,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func fromDomainService(s domain.Service) serviceDocument {
	return serviceDocument{
		Name:           s.Name,
		Category:       s.Category,
		Description:    s.Description,
		Cost:           s.Cost,
		Currency:       s.Currency,
		Unit:           s.Unit,
		Image:          s.Image,
		Ratings:        s.Ratings,
		CreatedByEmail: s.CreatedByEmail,
		CreatedAt:      s.CreatedAt.UTC(),
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
}
