package services

import (
	"context"

	"riskadmin/internal/domain"
	"riskadmin/internal/repositories"
	"riskadmin/internal/requestctx"
	"riskadmin/internal/utils"
	"riskadmin/internal/workflow"
)

// AuthorizeInput is a checker decision.
type AuthorizeInput struct {
	Decision string `json:"decision" validate:"required,oneof=approve deny"`
	Remarks  string `json:"remarks" validate:"max=1000"`
}

// EntityService validates requests for one entity before handing them to
// its repository.
type EntityService[T any] struct {
	Repo *repositories.Repository[T]
}

func NewEntityService[T any](repo *repositories.Repository[T]) *EntityService[T] {
	return &EntityService[T]{Repo: repo}
}

func (s *EntityService[T]) Name() string { return s.Repo.Name() }

func (s *EntityService[T]) log(ctx context.Context, action, message string) {
	utils.LogEvent(requestctx.RequestIDFromContext(ctx), s.Repo.Name(), action, message)
}

func (s *EntityService[T]) Create(ctx context.Context, item T) (repositories.Entry[T], error) {
	if err := ValidateStruct(item); err != nil {
		return repositories.Entry[T]{}, err
	}
	entry, err := s.Repo.Create(ctx, item)
	if err != nil {
		return entry, err
	}
	s.log(ctx, "create", "pending insert recorded")
	return entry, nil
}

// Update validates item with the path key applied, then records it as pending.
func (s *EntityService[T]) Update(ctx context.Context, rawKey string, item T) (repositories.Entry[T], error) {
	keys, err := s.Repo.ParseKey(rawKey)
	if err != nil {
		return repositories.Entry[T]{}, err
	}
	codec := s.Repo.Codec
	for name, v := range codec.Keys(item) {
		if str, ok := v.(string); ok && str != "" && str != keys[name] {
			return repositories.Entry[T]{}, domain.InvalidArgument(name, "body key %q does not match path key %v", str, keys[name])
		}
	}
	item = codec.Decode(keys, codec.Fields(item))
	if err := ValidateStruct(item); err != nil {
		return repositories.Entry[T]{}, err
	}
	entry, err := s.Repo.Update(ctx, keys, item)
	if err != nil {
		return entry, err
	}
	s.log(ctx, "update", "pending update recorded key="+rawKey)
	return entry, nil
}

func (s *EntityService[T]) Delete(ctx context.Context, rawKey string) (repositories.Entry[T], error) {
	keys, err := s.Repo.ParseKey(rawKey)
	if err != nil {
		return repositories.Entry[T]{}, err
	}
	entry, err := s.Repo.Delete(ctx, keys)
	if err != nil {
		return entry, err
	}
	s.log(ctx, "delete", "pending delete recorded key="+rawKey)
	return entry, nil
}

func (s *EntityService[T]) Authorize(ctx context.Context, rawKey string, in AuthorizeInput) (repositories.Entry[T], error) {
	keys, err := s.Repo.ParseKey(rawKey)
	if err != nil {
		return repositories.Entry[T]{}, err
	}
	if err := ValidateStruct(in); err != nil {
		return repositories.Entry[T]{}, err
	}
	entry, err := s.Repo.Authorize(ctx, keys, domain.Decision(in.Decision), in.Remarks)
	if err != nil {
		return entry, err
	}
	s.log(ctx, "authorize", in.Decision+" key="+rawKey)
	return entry, nil
}

func (s *EntityService[T]) Get(ctx context.Context, rawKey string) (repositories.Entry[T], error) {
	keys, err := s.Repo.ParseKey(rawKey)
	if err != nil {
		return repositories.Entry[T]{}, err
	}
	return s.Repo.Get(ctx, keys)
}

func (s *EntityService[T]) List(ctx context.Context, req workflow.ListRequest) (domain.PageResult[repositories.Entry[T]], error) {
	return s.Repo.List(ctx, req)
}

func (s *EntityService[T]) History(ctx context.Context, rawKey string, page domain.PageRequest) (domain.PageResult[domain.AuditEntry], error) {
	keys, err := s.Repo.ParseKey(rawKey)
	if err != nil {
		return domain.PageResult[domain.AuditEntry]{}, err
	}
	return s.Repo.History(ctx, keys, page)
}
