package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/student"
	testutil "github.com/tuyishimwe/umurinzi/tests"
)

func Test_alertApi_send(t *testing.T) {
	st := testutil.CreateStudent(t, studentRepo, "sch-api-4", "Diane", "Umutoni", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Mugwaneza", "+250780000024", "mugwaneza@test.rw", true)})

	var sent alert.Message

	t.Run("send", func(t *testing.T) {
		body := marchallObj(t, alert.SendRequest{
			StudentID: st.ID,
			ActorID:   "staff1",
			Channel:   alert.ChannelBoth,
			Type:      alert.TemplateGeneral,
			Variables: map[string]string{"message": "PTA meeting on Friday"},
		})
		req, rec := newRequest(http.MethodPost, "/v1/messages", body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v, want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sent); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if sent.Status != alert.StatusSent {
			t.Errorf("status = %v, want %v", sent.Status, alert.StatusSent)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		body := marchallObj(t, alert.SendRequest{StudentID: st.ID})
		req, rec := newRequest(http.MethodPost, "/v1/messages", body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v, want %v: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		body := marchallObj(t, alert.SendRequest{
			StudentID: "nope", ActorID: "staff1", Channel: alert.ChannelSMS, Type: alert.TemplateGeneral,
		})
		req, rec := newRequest(http.MethodPost, "/v1/messages", body)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		stored, err := alertSvc.GetMessage(context.Background(), sent.ID)
		if err != nil {
			t.Fatalf("GetMessage(): %v", err)
		}
		req, rec := newRequest(http.MethodGet, "/v1/messages/"+sent.ID)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, stored)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("retry delivered message is a no-op", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/messages/"+sent.ID+"/retry")
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}
		var got alert.Message
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.Status != alert.StatusSent {
			t.Errorf("status = %v, want %v", got.Status, alert.StatusSent)
		}
	})

	t.Run("retry unknown message", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/messages/nope/retry")
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("process pending", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/messages/process-pending")
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v: %s", rec.Code, rec.Body.String())
		}
	})
}
