package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/query"
	"github.com/roamly/tours-api/internal/repository"
)

// Store is the capability set a repository exposes to the generic resource
// handlers: identify, list, mutate.  DeleteByID returns the removed row so
// post-mutation steps (rating recomputation) know which parent to touch.
type Store[T any] interface {
	FindByID(ctx context.Context, id uint64) (T, error)
	FindAll(ctx context.Context, spec query.Spec) ([]T, error)
	UpdateByID(ctx context.Context, id uint64, fields map[string]any) (T, error)
	DeleteByID(ctx context.Context, id uint64) (T, error)
}

// Resource builds the generic create/read/update/delete/list handlers for
// one entity type.  Authorize, when set, gates single-document mutations
// (ownership checks); AfterChange, when set, runs synchronously after every
// successful mutation and before the response; the review resource hooks
// the rating aggregator here.
type Resource[T any] struct {
	Name        string // entity name used in messages, e.g. "tour"
	Store       Store[T]
	Authorize   func(c echo.Context, doc T) error
	AfterChange func(ctx context.Context, doc T) error
}

// reqCtx bounds every storage call the way the rest of the handlers do.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// storeErr translates repository sentinels into the HTTP taxonomy.
func storeErr(err error, name string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("no " + name + " found with that ID")
	case errors.Is(err, repository.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), repository.ErrValidation.Error()+": ")
		return apperr.BadRequest(msg)
	case errors.Is(err, repository.ErrDuplicateReview),
		errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrTourNameExists):
		return apperr.Conflict(err.Error())
	default:
		return apperr.Internal("could not access "+name, err)
	}
}

// GetOne answers 200 with the document or 404 when the id matches nothing.
func (r Resource[T]) GetOne() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		ctx, cancel := reqCtx(c)
		defer cancel()

		doc, err := r.Store.FindByID(ctx, id)
		if err != nil {
			return storeErr(err, r.Name)
		}
		return respond(c, 200, "", doc)
	}
}

// GetAll composes the query engine against the base scope.  baseFilter,
// when non-nil, contributes conditions derived from the route; the nested
// review listing scopes by its parent tour this way.  The response carries
// the window and its cardinality; a page past the end is an empty success.
func (r Resource[T]) GetAll(baseFilter func(c echo.Context) ([]query.Cond, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		spec := query.Parse(c.QueryParams())
		if baseFilter != nil {
			conds, err := baseFilter(c)
			if err != nil {
				return err
			}
			spec.Conds = append(spec.Conds, conds...)
		}

		ctx, cancel := reqCtx(c)
		defer cancel()

		docs, err := r.Store.FindAll(ctx, spec)
		if err != nil {
			return storeErr(err, r.Name)
		}
		return respondList(c, len(docs), spec.Project(docs))
	}
}

// CreateOne validates and persists a new document through the given create
// function, then runs the post-mutation step.  The create function owns
// binding because the input shape is entity-specific.
func (r Resource[T]) CreateOne(create func(c echo.Context, ctx context.Context) (T, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := reqCtx(c)
		defer cancel()

		doc, err := create(c, ctx)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return err
			}
			return storeErr(err, r.Name)
		}
		if r.AfterChange != nil {
			if err := r.AfterChange(ctx, doc); err != nil {
				return apperr.Internal("could not update derived fields", err)
			}
		}
		return respond(c, 201, titled(r.Name)+" created successfully", doc)
	}
}

// UpdateOne patches a document by id.  The field filter drops any payload
// keys the route does not allow before they reach storage.
func (r Resource[T]) UpdateOne(allowed ...string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		var fields map[string]any
		if err := c.Bind(&fields); err != nil || len(fields) == 0 {
			return apperr.BadRequest("invalid body")
		}
		if len(allowed) > 0 {
			fields = filterFields(fields, allowed...)
		}

		ctx, cancel := reqCtx(c)
		defer cancel()

		doc, err := r.Store.FindByID(ctx, id)
		if err != nil {
			return storeErr(err, r.Name)
		}
		if r.Authorize != nil {
			if err := r.Authorize(c, doc); err != nil {
				return err
			}
		}

		updated, err := r.Store.UpdateByID(ctx, id, fields)
		if err != nil {
			return storeErr(err, r.Name)
		}
		if r.AfterChange != nil {
			if err := r.AfterChange(ctx, updated); err != nil {
				return apperr.Internal("could not update derived fields", err)
			}
		}
		return respond(c, 200, titled(r.Name)+" updated successfully", updated)
	}
}

// DeleteOne removes a document by id and answers 204.  This is a hard
// delete; entity types with soft-delete semantics (users) go through their
// own endpoints instead.
func (r Resource[T]) DeleteOne() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		ctx, cancel := reqCtx(c)
		defer cancel()

		doc, err := r.Store.FindByID(ctx, id)
		if err != nil {
			return storeErr(err, r.Name)
		}
		if r.Authorize != nil {
			if err := r.Authorize(c, doc); err != nil {
				return err
			}
		}

		deleted, err := r.Store.DeleteByID(ctx, id)
		if err != nil {
			return storeErr(err, r.Name)
		}
		if r.AfterChange != nil {
			if err := r.AfterChange(ctx, deleted); err != nil {
				return apperr.Internal("could not update derived fields", err)
			}
		}
		return c.NoContent(204)
	}
}

// titled upper-cases the first letter for response messages ("tour" ->
// "Tour").  Entity names are plain ASCII.
func titled(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// filterFields keeps only the allowed keys of a bound payload.
func filterFields(fields map[string]any, allowed ...string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, f := range allowed {
		if v, ok := fields[f]; ok {
			out[f] = v
		}
	}
	return out
}
