// Package github fetches contribution calendars used to lay out bricks.
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
)

// Day is a single day entry from GitHub's Contribution Calendar.
type Day struct {
	Date              string `json:"date"`
	Weekday           int    `json:"weekday"`
	ContributionCount int    `json:"contributionCount"`
}

type Week struct {
	ContributionDays []Day `json:"contributionDays"`
}

type Calendar struct {
	Weeks []Week `json:"weeks"`
}

// UserNotFoundError indicates that the requested GitHub user does not exist.
type UserNotFoundError struct {
	Login string
	cause error
}

func (e *UserNotFoundError) Error() string {
	if e == nil || e.Login == "" {
		return "user not found"
	}
	return fmt.Sprintf("user %q not found", e.Login)
}

func (e *UserNotFoundError) Unwrap() error { return e.cause }

func IsUserNotFound(err error) bool {
	var e *UserNotFoundError
	return errors.As(err, &e)
}

// Observed from GitHub GraphQL:
// "GraphQL: Could not resolve to a User with the login of 'xxx'. (user)"
func isGraphQLUserNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Could not resolve to a User")
}

type graphQLDoer interface {
	DoWithContext(ctx context.Context, query string, variables map[string]interface{}, response interface{}) error
}

// Client reads contribution calendars through the gh GraphQL client, which
// picks up GH_TOKEN, GITHUB_TOKEN or the gh CLI login.
type Client struct {
	gql graphQLDoer
	now func() time.Time
}

func NewClient() (*Client, error) {
	gql, err := api.DefaultGraphQLClient()
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	return &Client{gql: gql, now: time.Now}, nil
}

const calendarFields = `
    login
    contributionsCollection(from: $from, to: $to) {
      contributionCalendar {
        weeks {
          contributionDays {
            date
            weekday
            contributionCount
          }
        }
      }
    }`

type account struct {
	Login                   string `json:"login"`
	ContributionsCollection struct {
		ContributionCalendar Calendar `json:"contributionCalendar"`
	} `json:"contributionsCollection"`
}

func validateWeeks(weeks int) error {
	// contributionsCollection(from,to) cannot span more than a year.
	if weeks <= 0 || weeks > 52 {
		return fmt.Errorf("weeks must be between 1 and 52, got %d", weeks)
	}
	return nil
}

// FetchCalendar returns the login and contribution calendar of the past
// weeks for login, or for the authenticated user when login is empty.
func (c *Client) FetchCalendar(ctx context.Context, login string, weeks int) (string, Calendar, error) {
	if err := validateWeeks(weeks); err != nil {
		return "", Calendar{}, err
	}
	to := c.now().UTC()
	vars := map[string]interface{}{
		"from": to.AddDate(0, 0, -7*weeks),
		"to":   to,
	}

	if login == "" {
		var resp struct {
			Viewer account `json:"viewer"`
		}
		q := "query($from: DateTime!, $to: DateTime!) {\n  viewer {" + calendarFields + "\n  }\n}"
		if err := c.gql.DoWithContext(ctx, q, vars, &resp); err != nil {
			return "", Calendar{}, fmt.Errorf("fetch viewer calendar: %w", err)
		}
		return resp.Viewer.Login, resp.Viewer.ContributionsCollection.ContributionCalendar, nil
	}

	vars["login"] = login
	var resp struct {
		User *account `json:"user"`
	}
	q := "query($login: String!, $from: DateTime!, $to: DateTime!) {\n  user(login: $login) {" + calendarFields + "\n  }\n}"
	if err := c.gql.DoWithContext(ctx, q, vars, &resp); err != nil {
		if isGraphQLUserNotFound(err) {
			return "", Calendar{}, &UserNotFoundError{Login: login, cause: err}
		}
		return "", Calendar{}, fmt.Errorf("fetch calendar for %s: %w", login, err)
	}
	if resp.User == nil || resp.User.Login == "" {
		return "", Calendar{}, &UserNotFoundError{Login: login}
	}
	return resp.User.Login, resp.User.ContributionsCollection.ContributionCalendar, nil
}
