package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeGQL struct {
	body  string
	err   error
	query string
	vars  map[string]interface{}
}

func (f *fakeGQL) DoWithContext(_ context.Context, query string, vars map[string]interface{}, resp interface{}) error {
	f.query = query
	f.vars = vars
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.body), resp)
}

func newTestClient(f *fakeGQL) *Client {
	return &Client{
		gql: f,
		now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestIsGraphQLUserNotFound(t *testing.T) {
	t.Parallel()

	err := errors.New("GraphQL: Could not resolve to a User with the login of 'korosuke6131'. (user)")
	if !isGraphQLUserNotFound(err) {
		t.Fatalf("expected true for user-not-found GraphQL error")
	}
	if isGraphQLUserNotFound(errors.New("HTTP 502")) {
		t.Fatalf("expected false for unrelated error")
	}
}

func TestUserNotFoundError_IsUserNotFound(t *testing.T) {
	t.Parallel()

	base := &UserNotFoundError{Login: "someone"}
	wrapped := fmt.Errorf("wrap: %w", base)

	if !IsUserNotFound(base) {
		t.Fatalf("expected IsUserNotFound to be true")
	}
	if !IsUserNotFound(wrapped) {
		t.Fatalf("expected IsUserNotFound to be true for wrapped error")
	}
}

func TestFetchCalendar_ValidatesWeeks(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeGQL{})
	for _, w := range []int{0, -1, 53} {
		if _, _, err := c.FetchCalendar(context.Background(), "", w); err == nil {
			t.Fatalf("weeks=%d: expected error", w)
		}
	}
}

func TestFetchCalendar_Viewer(t *testing.T) {
	t.Parallel()

	f := &fakeGQL{body: `{"viewer":{"login":"me","contributionsCollection":{"contributionCalendar":{"weeks":[{"contributionDays":[{"date":"2025-05-25","weekday":0,"contributionCount":3}]}]}}}}`}
	login, cal, err := newTestClient(f).FetchCalendar(context.Background(), "", 4)
	if err != nil {
		t.Fatalf("FetchCalendar: %v", err)
	}
	if login != "me" || len(cal.Weeks) != 1 || cal.Weeks[0].ContributionDays[0].ContributionCount != 3 {
		t.Fatalf("got %q %+v", login, cal)
	}
	if !strings.Contains(f.query, "viewer") {
		t.Fatalf("expected viewer query, got %s", f.query)
	}
	from := f.vars["from"].(time.Time)
	if want := time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Fatalf("from = %v, want %v", from, want)
	}
}

func TestFetchCalendar_UserNotFound(t *testing.T) {
	t.Parallel()

	f := &fakeGQL{err: errors.New("GraphQL: Could not resolve to a User with the login of 'ghost'. (user)")}
	_, _, err := newTestClient(f).FetchCalendar(context.Background(), "ghost", 4)
	if !IsUserNotFound(err) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if f.vars["login"] != "ghost" {
		t.Fatalf("login var = %v", f.vars["login"])
	}

	f = &fakeGQL{body: `{"user":null}`}
	_, _, err = newTestClient(f).FetchCalendar(context.Background(), "ghost", 4)
	if !IsUserNotFound(err) {
		t.Fatalf("expected user not found for null user, got %v", err)
	}
}
