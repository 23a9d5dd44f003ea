package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/luxeplan/api/internal/domain"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/platform/pagination"
	"github.com/luxeplan/api/internal/repositories"
)

const decoratorsCollection = "decorator"

type decoratorDocument struct {
	ID         string    `firestore:"-"`
	UserID     string    `firestore:"userId"`
	Email      string    `firestore:"email"`
	Name       string    `firestore:"name"`
	PhotoURL   string    `firestore:"photoURL"`
	Specialty  string    `firestore:"specialty"`
	Experience int       `firestore:"experience"`
	Rating     float64   `firestore:"rating"`
	Status     string    `firestore:"status"`
	WorkStatus string    `firestore:"workStatus"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

// DecoratorRepository stores applications under decorator/{UserKey(email)}.
type DecoratorRepository struct {
	provider   *pfirestore.Provider
	decorators *pfirestore.Collection[decoratorDocument]
	users      *pfirestore.Collection[userDocument]
	bookings   *pfirestore.Collection[bookingDocument]
}

var _ repositories.DecoratorRepository = (*DecoratorRepository)(nil)

// NewDecoratorRepository constructs a Firestore-backed decorator repository.
func NewDecoratorRepository(provider *pfirestore.Provider) (*DecoratorRepository, error) {
	if provider == nil {
		return nil, errors.New("decorator repository requires firestore provider")
	}
	return &DecoratorRepository{
		provider:   provider,
		decorators: newDecoratorCollection(provider),
		users:      pfirestore.NewCollection[userDocument](provider, usersCollection, func(d *userDocument, id string) { d.ID = id }),
		bookings:   newBookingCollection(provider),
	}, nil
}

func newDecoratorCollection(provider *pfirestore.Provider) *pfirestore.Collection[decoratorDocument] {
	return pfirestore.NewCollection[decoratorDocument](provider, decoratorsCollection, func(d *decoratorDocument, id string) { d.ID = id })
}

func (r *DecoratorRepository) Insert(ctx context.Context, decorator domain.Decorator) error {
	return r.decorators.Create(ctx, decorator.ID, fromDomainDecorator(decorator))
}

func (r *DecoratorRepository) FindByID(ctx context.Context, decoratorID string) (domain.Decorator, error) {
	doc, err := r.decorators.Get(ctx, strings.TrimSpace(decoratorID))
	if err != nil {
		return domain.Decorator{}, err
	}
	return toDomainDecorator(doc), nil
}

func (r *DecoratorRepository) List(ctx context.Context, filter repositories.DecoratorListFilter) (domain.Page[domain.Decorator], error) {
	ref, err := r.decorators.Ref(ctx)
	if err != nil {
		return domain.Page[domain.Decorator]{}, err
	}
	query := ref.Query
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if specialty := strings.TrimSpace(filter.Specialty); specialty != "" {
		query = query.Where("specialty", "==", specialty)
	}
	if filter.WorkStatus != "" {
		query = query.Where("workStatus", "==", string(filter.WorkStatus))
	}

	total, err := r.decorators.Count(ctx, query)
	if err != nil {
		return domain.Page[domain.Decorator]{}, err
	}
	page := pagination.Must(filter.Page)
	docs, err := r.decorators.Page(ctx, query.OrderBy("createdAt", firestore.Desc), page.Offset(), page.Size)
	if err != nil {
		return domain.Page[domain.Decorator]{}, err
	}
	items := make([]domain.Decorator, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainDecorator(doc))
	}
	return domain.Page[domain.Decorator]{Items: items, Count: total}, nil
}

func (r *DecoratorRepository) Decide(ctx context.Context, decision repositories.DecoratorDecision) (domain.Decorator, error) {
	id := strings.TrimSpace(decision.DecoratorID)
	if id == "" {
		return domain.Decorator{}, errors.New("decorator repository: id is required")
	}
	now := decision.Now.UTC()

	var saved decoratorDocument
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		decoratorRef, err := r.decorators.Doc(ctx, id)
		if err != nil {
			return err
		}
		current, err := r.decorators.TxGet(ctx, tx, id)
		if err != nil {
			return err
		}

		bookingsRef, err := r.bookings.Ref(ctx)
		if err != nil {
			return err
		}
		active, err := tx.Documents(bookingsRef.
			Where("decoratorIds", "array-contains", id).
			Where("status", "in", []string{string(domain.BookingAssigned), string(domain.BookingPlanning)})).GetAll()
		if err != nil {
			return err
		}

		userRef, err := r.users.Doc(ctx, id)
		if err != nil {
			return err
		}
		userSnap, err := tx.Get(userRef)
		userMissing := status.Code(err) == codes.NotFound
		if err != nil && !userMissing {
			return err
		}

		if decision.Check != nil {
			if err := decision.Check(toDomainDecorator(current), len(active)); err != nil {
				return err
			}
		}

		current.Status = string(decision.Status)
		current.UpdatedAt = now
		if decision.Status == domain.DecoratorRejected {
			current.WorkStatus = string(domain.WorkAvailable)
		}
		if err := tx.Update(decoratorRef, []firestore.Update{
			{Path: "status", Value: current.Status},
			{Path: "workStatus", Value: current.WorkStatus},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		saved = current

		switch {
		case userMissing && decision.Status == domain.DecoratorAccepted:
			return tx.Create(userRef, userDocument{
				Email:       current.Email,
				DisplayName: current.Name,
				PhotoURL:    current.PhotoURL,
				Role:        domain.RoleDecorator,
				CreatedAt:   now,
				LastLogin:   now,
			})
		case userMissing:
			return nil
		}

		user, err := r.users.Decode(userSnap)
		if err != nil {
			return err
		}
		if role := nextRole(user.Role, decision.Status); role != user.Role {
			return tx.Update(userRef, []firestore.Update{{Path: "role", Value: role}})
		}
		return nil
	})
	if err != nil {
		return domain.Decorator{}, pfirestore.WrapError("decorator.decide", err)
	}
	return toDomainDecorator(saved), nil
}

// nextRole promotes clients on acceptance and demotes decorators on rejection. Admin roles are
// never changed by an application decision.
func nextRole(current string, status domain.DecoratorStatus) string {
	switch {
	case status == domain.DecoratorAccepted && (current == domain.RoleClient || current == ""):
		return domain.RoleDecorator
	case status == domain.DecoratorRejected && current == domain.RoleDecorator:
		return domain.RoleClient
	default:
		return current
	}
}

func toDomainDecorator(doc decoratorDocument) domain.Decorator {
	return domain.Decorator{
		ID:         doc.ID,
		UserID:     doc.UserID,
		Email:      doc.Email,
		Name:       doc.Name,
		PhotoURL:   doc.PhotoURL,
		Specialty:  doc.Specialty,
		Experience: doc.Experience,
		Rating:     doc.Rating,
		Status:     domain.DecoratorStatus(doc.Status),
		WorkStatus: domain.WorkStatus(doc.WorkStatus),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func fromDomainDecorator(d domain.Decorator) decoratorDocument {
	return decoratorDocument{
		UserID:     d.UserID,
		Email:      d.Email,
		Name:       d.Name,
		PhotoURL:   d.PhotoURL,
		Specialty:  d.Specialty,
		Experience: d.Experience,
		Rating:     d.Rating,
		Status:     string(d.Status),
		WorkStatus: string(d.WorkStatus),
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}
