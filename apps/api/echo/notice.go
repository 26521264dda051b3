package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core/notice"
)

type noticeApi struct {
	svc      notice.Service
	validate *validator.Validate
}

func registerNoticeAPI(g *echo.Group, api *noticeApi, mdw ...echo.MiddlewareFunc) {
	ng := g.Group("/notices", mdw...)

	// composing
	ng.POST("", api.create)
	ng.GET("/recipients", api.queryCandidates)

	// listings
	ng.GET("/inbox", api.queryInbox)
	ng.GET("/sent", api.querySent)
	ng.GET("/unread-count", api.countUnread)

	// read state
	ng.POST("/read-all", api.markAllRead)
	ng.PUT("/:id/read", api.markRead)
	ng.PUT("/:id/unread", api.markUnread)

	ng.DELETE("/:id", api.destroy)
}

// Handlers

func (api *noticeApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *noticeApi) queryInbox(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter notice.InboxFilter
	if filter.IsRead, err = bindOptionalBool(ctx, "is_read"); err != nil {
		return err
	}
	page, err := bindPagination(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, notice.OrderingFields)

	res, err := api.svc.QueryInbox(ctx.Request().Context(), claims.Subject, filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *noticeApi) querySent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	page, err := bindPagination(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, notice.OrderingFields)

	res, err := api.svc.QuerySent(ctx.Request().Context(), claims.Subject, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying sent notices")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *noticeApi) countUnread(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	n, err := api.svc.CountUnread(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "counting unread notices")
	}
	return ctx.JSON(http.StatusOK, notice.CountResult{Count: n})
}

func (api *noticeApi) markAllRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	n, err := api.svc.MarkAllRead(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking all notices read")
	}
	return ctx.JSON(http.StatusOK, notice.CountResult{Count: n})
}

func (api *noticeApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	d, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking notice read")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *noticeApi) markUnread(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	d, err := api.svc.MarkUnread(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking notice unread")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Subject, claims.Roles); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *noticeApi) queryCandidates(ctx echo.Context) error {
	res, err := api.svc.QueryCandidates(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying recipient candidates")
	}
	return ctx.JSON(http.StatusOK, res)
}
