package echoapi

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core/user"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var (
	// role inheritance: child, parent
	rbacRoleLinks = [][]string{
		{user.RoleAdminOwner, user.RoleAdmin},
		{user.RoleAdminPrincipal, user.RoleAdmin},
	}

	// inbox routes every authenticated role may call
	inboxRules = [][]string{
		{"/api/notices/inbox", http.MethodGet},
		{"/api/notices/sent", http.MethodGet},
		{"/api/notices/unread-count", http.MethodGet},
		{"/api/notices/read-all", http.MethodPost},
		{"/api/notices/:id/read", http.MethodPut},
		{"/api/notices/:id/unread", http.MethodPut},
		{"/api/notices/:id", http.MethodDelete}, // ownership is checked by the notice service
	}

	// composing routes for admins & teachers
	composeRules = [][]string{
		{"/api/notices", http.MethodPost},
		{"/api/notices/recipients", http.MethodGet},
	}

	// group administration for admins
	groupRules = [][]string{
		{"/api/groups", "*"},
		{"/api/groups/:id", "*"},
	}
)

// NewEnforcer builds the route policy.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "loading rbac model")
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "creating rbac enforcer")
	}

	var policies [][]string
	for _, role := range []string{user.RoleAdmin, user.RoleTeacher, user.RoleStudent} {
		policies = append(policies, withSubject(role, inboxRules)...)
	}
	for _, role := range []string{user.RoleAdmin, user.RoleTeacher} {
		policies = append(policies, withSubject(role, composeRules)...)
	}
	policies = append(policies, withSubject(user.RoleAdmin, groupRules)...)

	if _, err = enforcer.AddPolicies(policies); err != nil {
		return nil, errors.Wrap(err, "adding rbac policies")
	}
	if _, err = enforcer.AddGroupingPolicies(rbacRoleLinks); err != nil {
		return nil, errors.Wrap(err, "adding rbac roles")
	}
	return enforcer, nil
}

func withSubject(sub string, rules [][]string) [][]string {
	policies := make([][]string, 0, len(rules))
	for _, rule := range rules {
		policies = append(policies, []string{sub, rule[0], rule[1]})
	}
	return policies
}

// rbacMiddleware lets the request through if any of the context user's roles may call the route.
func rbacMiddleware(enforcer *casbin.Enforcer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			path, method := ctx.Request().URL.Path, ctx.Request().Method
			for _, role := range claims.Roles {
				allowed, err := enforcer.Enforce(role, path, method)
				if err != nil {
					return errors.Wrap(err, "enforcing rbac policy")
				}
				if allowed {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
