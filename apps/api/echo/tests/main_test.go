package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/tuyishimwe/umurinzi/apps/api/echo"
	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/risk"
	emailsvc "github.com/tuyishimwe/umurinzi/services/email"
	smssvc "github.com/tuyishimwe/umurinzi/services/sms"
	dummydb "github.com/tuyishimwe/umurinzi/storage/database/dummy"
	testutil "github.com/tuyishimwe/umurinzi/tests"
)

var (
	conf        *core.Config
	app         Server
	studentRepo testutil.StudentFixtureRepo
	flagRepo    risk.Repository
	messageRepo alert.Repository
	riskSvc     risk.Service
	alertSvc    alert.Service
)

type testLogger struct{}

func (testLogger) Enable(bool)                        {}
func (testLogger) Debug(string, ...interface{})       {}
func (testLogger) Info(string, ...interface{})        {}
func (testLogger) Warn(string, ...interface{})        {}
func (testLogger) Error(string, ...interface{})       {}
func (testLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		panic(err)
	}
	studentRepo = dummydb.NewStudentRepository(db)
	flagRepo = dummydb.NewFlagRepository(db)
	messageRepo = dummydb.NewMessageRepository(db)

	// set up services
	logger := testLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	smsSvc := smssvc.NewConsoleServiceMock(conf)
	alertSvc = alert.NewService(messageRepo, studentRepo, mailSvc, smsSvc, logger, conf)
	notifier := alert.NewFlagNotifierMock(alertSvc, logger)
	riskSvc = risk.NewServiceMock(flagRepo, studentRepo, notifier, logger, conf)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	risk.InitValidators(validate, translator)
	alert.InitValidators(validate, translator)

	// set up server
	app = NewServer(
		ServerDeps{
			Conf:       conf,
			Logger:     logger,
			RiskSvc:    riskSvc,
			AlertSvc:   alertSvc,
			Translator: translator,
		},
	)

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func dayZero() time.Time {
	return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
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
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
