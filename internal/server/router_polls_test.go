package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreatePollEndpoint(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	bearer := harness.bearerFor(t, "user-1")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/polls", strings.NewReader(`{"question":"Lunch?","options":["Pizza","Sushi"]}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", bearer)
	harness.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		Poll struct {
			ID      string   `json:"id"`
			OwnerID string   `json:"owner_id"`
			Options []string `json:"options"`
		} `json:"poll"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Poll.OwnerID != "user-1" {
		t.Fatalf("owner must come from the session, got %q", response.Poll.OwnerID)
	}
	if len(response.Poll.Options) != 2 {
		t.Fatalf("unexpected options: %v", response.Poll.Options)
	}
}

func TestCreatePollValidationFailure(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	bearer := harness.bearerFor(t, "user-1")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/polls", strings.NewReader(`{"question":"Lunch?","options":["Pizza"]}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", bearer)
	harness.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestGetPollIsPublic(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	poll := harness.createPoll(t, "owner", "Lunch?", []string{"Pizza", "Sushi"})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/polls/"+poll.ID, http.NoBody)
	harness.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	request = httptest.NewRequest(http.MethodGet, "/polls/missing", http.NoBody)
	harness.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing poll: unexpected status %d", recorder.Code)
	}
}

func TestDeleteNotOwnedIndistinguishableFromMissing(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	poll := harness.createPoll(t, "owner", "Lunch?", []string{"Pizza", "Sushi"})
	bearer := harness.bearerFor(t, "intruder")

	deleteRequest := func(pollID string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodDelete, "/polls/"+pollID, http.NoBody)
		request.Header.Set("Authorization", bearer)
		harness.handler.ServeHTTP(recorder, request)
		return recorder
	}

	notOwned := deleteRequest(poll.ID)
	missing := deleteRequest("no-such-poll")

	if notOwned.Code != missing.Code {
		t.Fatalf("statuses differ: %d vs %d", notOwned.Code, missing.Code)
	}
	if notOwned.Body.String() != missing.Body.String() {
		t.Fatalf("bodies must not leak existence: %q vs %q", notOwned.Body.String(), missing.Body.String())
	}
	if notOwned.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", notOwned.Code)
	}
}

func TestUpdatePollByOwner(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	poll := harness.createPoll(t, "owner", "Lunch?", []string{"Pizza", "Sushi"})
	bearer := harness.bearerFor(t, "owner")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPut, "/polls/"+poll.ID, strings.NewReader(`{"question":"Dinner?","options":["Pizza","Sushi","Tacos"]}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", bearer)
	harness.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", recorder.Code, recorder.Body.String())
	}
}

func TestVoteEndpointStatuses(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	poll := harness.createPoll(t, "owner", "Lunch?", []string{"Pizza", "Sushi"})

	vote := func(pollID, body, bearer string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/polls/%s/vote", pollID), strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			request.Header.Set("Authorization", bearer)
		}
		harness.handler.ServeHTTP(recorder, request)
		return recorder
	}

	// Anonymous votes are accepted, repeatedly.
	if got := vote(poll.ID, `{"optionIndex":0}`, "").Code; got != http.StatusCreated {
		t.Fatalf("anonymous vote: unexpected status %d", got)
	}
	if got := vote(poll.ID, `{"optionIndex":0}`, "").Code; got != http.StatusCreated {
		t.Fatalf("second anonymous vote: unexpected status %d", got)
	}

	if got := vote(poll.ID, `{"optionIndex":5}`, "").Code; got != http.StatusBadRequest {
		t.Fatalf("out-of-range vote: unexpected status %d", got)
	}
	if got := vote(poll.ID, `{}`, "").Code; got != http.StatusBadRequest {
		t.Fatalf("missing index: unexpected status %d", got)
	}
	if got := vote("no-such-poll", `{"optionIndex":0}`, "").Code; got != http.StatusNotFound {
		t.Fatalf("missing poll: unexpected status %d", got)
	}

	bearer := harness.bearerFor(t, "voter-1")
	if got := vote(poll.ID, `{"optionIndex":1}`, bearer).Code; got != http.StatusCreated {
		t.Fatalf("authenticated vote: unexpected status %d", got)
	}
	if got := vote(poll.ID, `{"optionIndex":1}`, bearer).Code; got != http.StatusConflict {
		t.Fatalf("duplicate vote: unexpected status %d", got)
	}

	// An offered-but-invalid token is rejected rather than downgraded to
	// anonymous.
	if got := vote(poll.ID, `{"optionIndex":0}`, "Bearer garbage").Code; got != http.StatusUnauthorized {
		t.Fatalf("invalid bearer on vote: unexpected status %d", got)
	}
}

func TestResultsEndpoint(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	poll := harness.createPoll(t, "owner", "Lunch?", []string{"A", "B", "C"})

	for _, voter := range []string{"v1", "v2"} {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/polls/%s/vote", poll.ID), strings.NewReader(`{"optionIndex":0}`))
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Authorization", harness.bearerFor(t, voter))
		harness.handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("vote failed with status %d", recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/polls/%s/results", poll.ID), http.NoBody)
	harness.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}

	var response struct {
		Results struct {
			Counts      []int `json:"counts"`
			Percentages []int `json:"percentages"`
			Total       int   `json:"total"`
		} `json:"results"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Results.Total != 2 || response.Results.Counts[0] != 2 {
		t.Fatalf("unexpected tally: %+v", response.Results)
	}
	if response.Results.Percentages[0] != 100 {
		t.Fatalf("unexpected percentages: %v", response.Results.Percentages)
	}
}

func TestAdminListingGatedByRoleClaim(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	harness.createPoll(t, "owner", "Lunch?", []string{"A", "B"})

	listWith := func(bearer string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/admin/polls", http.NoBody)
		request.Header.Set("Authorization", bearer)
		harness.handler.ServeHTTP(recorder, request)
		return recorder
	}

	nonAdmin := listWith(harness.bearerFor(t, "regular-user"))
	if nonAdmin.Code != http.StatusForbidden {
		t.Fatalf("authenticated non-admin must get 403, got %d", nonAdmin.Code)
	}
	if strings.Contains(nonAdmin.Body.String(), "owner") {
		t.Fatalf("non-admin response must not include poll data: %s", nonAdmin.Body.String())
	}

	admin := listWith(harness.bearerFor(t, "root", "admin"))
	if admin.Code != http.StatusOK {
		t.Fatalf("admin must get the listing, got %d", admin.Code)
	}
	if !strings.Contains(admin.Body.String(), "owner_id") {
		t.Fatalf("admin listing must include owner identifiers: %s", admin.Body.String())
	}
}

func TestListPollsScopedToCaller(t *testing.T) {
	harness := newRouterHarness(t, &stubAccounts{}, 10)
	harness.createPoll(t, "user-a", "Mine?", []string{"x", "y"})
	harness.createPoll(t, "user-b", "Theirs?", []string{"x", "y"})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/polls", http.NoBody)
	request.Header.Set("Authorization", harness.bearerFor(t, "user-a"))
	harness.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "Mine?") || strings.Contains(body, "Theirs?") {
		t.Fatalf("listing must be scoped to the caller: %s", body)
	}
}
