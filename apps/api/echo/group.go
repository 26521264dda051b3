package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core/group"
)

var errGrpNotFoundInCtx = errors.New("group object not found in echo.Context")

type groupApi struct {
	svc      group.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, api *groupApi, mdw ...echo.MiddlewareFunc) {
	gg := g.Group("/groups", mdw...)
	gg.GET("", api.query)
	gg.POST("", api.create)

	// detail endpoints
	dg := gg.Group("/:id", groupObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *groupApi) query(ctx echo.Context) error {
	groups, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(group.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(group.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}

	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(grp, api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Update(ctx.Request().Context(), grp, data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(group.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), grp.ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func groupObjectMiddleware(svc group.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			grp, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == group.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding group by ID")
			}
			ctx.Set("object", grp)
			return next(ctx)
		}
	}
}
