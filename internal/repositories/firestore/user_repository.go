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
	"github.com/luxeplan/api/internal/repositories"
)

const usersCollection = "users"

type userDocument struct {
	ID          string    `firestore:"-"`
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	PhotoURL    string    `firestore:"photoURL"`
	Role        string    `firestore:"role"`
	CreatedAt   time.Time `firestore:"createdAt"`
	LastLogin   time.Time `firestore:"lastLogin"`
}

// UserRepository stores accounts under users/{UserKey(email)}.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewCollection[userDocument](provider, usersCollection, func(d *userDocument, id string) { d.ID = id }),
	}, nil
}

func (r *UserRepository) Upsert(ctx context.Context, in repositories.UserUpsert) (domain.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	id := domain.UserKey(email)
	if id == "" {
		return domain.User{}, false, errors.New("user repository: email is required")
	}
	now := in.Now.UTC()

	var (
		saved   userDocument
		created bool
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.users.Doc(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			saved = userDocument{
				ID:          id,
				Email:       email,
				DisplayName: strings.TrimSpace(in.DisplayName),
				PhotoURL:    strings.TrimSpace(in.PhotoURL),
				Role:        domain.RoleClient,
				CreatedAt:   now,
				LastLogin:   now,
			}
			created = true
			return tx.Create(ref, saved)
		}
		if err != nil {
			return err
		}

		current, err := r.users.Decode(snap)
		if err != nil {
			return err
		}
		updates := []firestore.Update{{Path: "lastLogin", Value: now}}
		current.LastLogin = now
		if name := strings.TrimSpace(in.DisplayName); name != "" {
			updates = append(updates, firestore.Update{Path: "displayName", Value: name})
			current.DisplayName = name
		}
		if photo := strings.TrimSpace(in.PhotoURL); photo != "" {
			updates = append(updates, firestore.Update{Path: "photoURL", Value: photo})
			current.PhotoURL = photo
		}
		saved = current
		created = false
		return tx.Update(ref, updates)
	})
	if err != nil {
		return domain.User{}, false, pfirestore.WrapError("users.upsert", err)
	}
	return toDomainUser(saved), created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	doc, err := r.users.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	id := domain.UserKey(email)
	if id == "" {
		return domain.User{}, pfirestore.NotFound("users.get", "user")
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.Page[domain.User], error) {
	ref, err := r.users.Ref(ctx)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	query := ref.Query
	if exclude := strings.ToLower(strings.TrimSpace(filter.ExcludeEmail)); exclude != "" {
		query = query.Where("email", "!=", exclude)
	}

	total, err := r.users.Count(ctx, query)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	// Firestore requires the inequality field to lead the ordering.
	if filter.ExcludeEmail != "" {
		query = query.OrderBy("email", firestore.Asc)
	} else {
		query = query.OrderBy("createdAt", firestore.Desc)
	}
	docs, err := r.users.Page(ctx, query, filter.Page.Offset(), filter.Page.Size)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}

	items := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainUser(doc))
	}
	return domain.Page[domain.User]{Items: items, Count: total}, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role string) (domain.User, error) {
	id := strings.TrimSpace(userID)
	if err := r.users.Update(ctx, id, []firestore.Update{{Path: "role", Value: role}}); err != nil {
		return domain.User{}, err
	}
	return r.FindByID(ctx, id)
}

func toDomainUser(doc userDocument) domain.User {
	return domain.User{
		ID:          doc.ID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
		Role:        doc.Role,
		CreatedAt:   doc.CreatedAt,
		LastLogin:   doc.LastLogin,
	}
}
