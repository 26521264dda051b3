package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/masomo-notices/apps/api/echo"
)

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	path := "/api/users/login"

	runHTTPTests(t, f, []httpTest{
		{
			name:     "missing credentials",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: testPassword}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, LoginRequest{Username: "teacher", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "inactive user",
			method:   http.MethodPost,
			path:     path,
			body:     marchallObj(t, LoginRequest{Username: "gone", Password: testPassword}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("by username or email", func(t *testing.T) {
		is := assert.New(t)
		for _, uname := range []string{"Teacher ", "teacher@masomo.test"} {
			req, rec := newRequest(http.MethodPost, path, marchallObj(t, LoginRequest{Username: uname, Password: testPassword}))
			f.app.ServeHTTP(rec, req)
			is.Equal(http.StatusOK, rec.Code)

			var res LoginResponse
			unmarshal(t, rec, &res)
			is.NotEmpty(res.Token)

			// the token opens the inbox
			is.Equal(http.StatusOK, f.do(http.MethodGet, "/api/notices/inbox", res.Token).Code)
		}
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	f := setup(t)
	path := "/api/users/token-refresh"

	runHTTPTests(t, f, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     path,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "invalid token",
			method:   http.MethodPost,
			path:     path,
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "inactive user",
			method:   http.MethodPost,
			path:     path,
			token:    f.token(t, f.inactive),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("refreshed", func(t *testing.T) {
		is := assert.New(t)
		rec := f.do(http.MethodPost, path, f.token(t, f.student1))
		is.Equal(http.StatusOK, rec.Code)

		var res LoginResponse
		unmarshal(t, rec, &res)
		is.NotEmpty(res.Token)
	})
}
