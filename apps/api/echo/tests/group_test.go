package tests

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-notices/core/group"
)

func Test_groupApi_permissions(t *testing.T) {
	f := setup(t)

	var tests []httpTest
	for _, path := range []string{"/api/groups", "/api/groups/" + f.class.ID} {
		tests = append(tests,
			httpTest{
				name:     "teacher GET " + path,
				method:   http.MethodGet,
				path:     path,
				token:    f.token(t, f.teacher),
				wantCode: http.StatusForbidden,
			},
			httpTest{
				name:     "student GET " + path,
				method:   http.MethodGet,
				path:     path,
				token:    f.token(t, f.student1),
				wantCode: http.StatusForbidden,
			},
			httpTest{
				name:     "anonymous GET " + path,
				method:   http.MethodGet,
				path:     path,
				wantCode: http.StatusUnauthorized,
			},
		)
	}
	runHTTPTests(t, f, tests)
}

func Test_groupApi_crud(t *testing.T) {
	is := assert.New(t)
	f := setup(t)
	token := f.token(t, f.admin)

	// create
	rec := f.do(http.MethodPost, "/api/groups", token, marchallObj(t, group.NewGroup{
		Name:      "  Class 2B ",
		MemberIDs: []string{f.student1.ID, f.student1.ID},
	}))
	is.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var grp group.Group
	unmarshal(t, rec, &grp)
	is.NotEmpty(grp.ID)
	is.Equal("Class 2B", grp.Name)
	is.Equal([]string{f.student1.ID}, grp.MemberIDs)

	runHTTPTests(t, f, []httpTest{
		{
			name:     "duplicate name",
			method:   http.MethodPost,
			path:     "/api/groups",
			token:    token,
			body:     marchallObj(t, group.NewGroup{Name: "Class 2B"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown member",
			method:   http.MethodPost,
			path:     "/api/groups",
			token:    token,
			body:     marchallObj(t, group.NewGroup{Name: "Ghosts", MemberIDs: []string{uuid.New().String()}}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "blank name",
			method:   http.MethodPost,
			path:     "/api/groups",
			token:    token,
			body:     marchallObj(t, group.NewGroup{Name: " "}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name:     "unknown group",
			method:   http.MethodGet,
			path:     "/api/groups/" + uuid.New().String(),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	})

	// list
	rec = f.do(http.MethodGet, "/api/groups", token)
	is.Equal(http.StatusOK, rec.Code)
	var groups []group.Group
	unmarshal(t, rec, &groups)
	is.Len(groups, 2)

	// rename & replace members
	rec = f.do(http.MethodPut, "/api/groups/"+grp.ID, token, []byte(
		`{"name": "Class 2C", "member_ids": ["`+f.student2.ID+`", "`+f.teacher.ID+`"]}`,
	))
	is.Equal(http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &grp)
	is.Equal("Class 2C", grp.Name)
	is.ElementsMatch([]string{f.student2.ID, f.teacher.ID}, grp.MemberIDs)

	// members untouched when omitted
	rec = f.do(http.MethodPut, "/api/groups/"+grp.ID, token, []byte(`{"name": "Class 2D"}`))
	is.Equal(http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &grp)
	is.Equal("Class 2D", grp.Name)
	is.Len(grp.MemberIDs, 2)

	rec = f.do(http.MethodGet, "/api/groups/"+grp.ID, token)
	is.Equal(http.StatusOK, rec.Code)
	var got group.Group
	unmarshal(t, rec, &got)
	is.Equal(grp.ID, got.ID)
	is.Equal("Class 2D", got.Name)

	// delete
	is.Equal(http.StatusNoContent, f.do(http.MethodDelete, "/api/groups/"+grp.ID, token).Code)
	is.Equal(http.StatusNotFound, f.do(http.MethodDelete, "/api/groups/"+grp.ID, token).Code)
}
