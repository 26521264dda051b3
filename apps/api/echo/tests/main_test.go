package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-notices/apps/api/echo"
	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/notice"
	"github.com/trezcool/masomo-notices/core/user"
	"github.com/trezcool/masomo-notices/services/cache"
	"github.com/trezcool/masomo-notices/storage/database/inmem"
	"github.com/trezcool/masomo-notices/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

const testPassword = "sup3r-s3cret"

type fixture struct {
	app     Server
	conf    *core.Config
	usrRepo user.Repository
	grpSvc  group.Service

	admin    user.User
	teacher  user.User
	student1 user.User
	student2 user.User
	inactive user.User
	class    group.Group // student1 & student2
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	// set up cache
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	unreadCache := cachesvc.NewUnreadCacheWithClient(client, time.Minute)

	// set up services
	usrSvc := user.NewService(usrRepo)
	grpSvc := group.NewService(db, inmemdb.NewGroupRepository(db))
	noticeSvc := notice.NewService(db, inmemdb.NewNoticeRepository(db), grpSvc, usrSvc, unreadCache, testutil.NopLogger{})

	enforcer, err := NewEnforcer()
	require.NoError(t, err)

	// set up server
	app := NewServer(&Deps{
		Conf:           conf,
		Logger:         testutil.NopLogger{},
		UserSvc:        usrSvc,
		GroupSvc:       grpSvc,
		NoticeSvc:      noticeSvc,
		Enforcer:       enforcer,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = app.Close() })

	f := &fixture{app: app, conf: conf, usrRepo: usrRepo, grpSvc: grpSvc}
	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@masomo.test", testPassword, []string{user.RoleAdminOwner}, true)
	f.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@masomo.test", testPassword, []string{user.RoleTeacher}, true)
	f.student1 = testutil.CreateUser(t, usrRepo, "Student 1", "student1", "student1@masomo.test", testPassword, []string{user.RoleStudent}, true)
	f.student2 = testutil.CreateUser(t, usrRepo, "Student 2", "student2", "student2@masomo.test", testPassword, []string{user.RoleStudent}, true)
	f.inactive = testutil.CreateUser(t, usrRepo, "Gone", "gone", "gone@masomo.test", testPassword, []string{user.RoleStudent}, false)

	f.class, err = grpSvc.Create(
		context.Background(),
		group.NewGroup{Name: "Class 1A", MemberIDs: []string{f.student1.ID, f.student2.ID}},
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	return getToken(t, f.conf, usr)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal(): %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
