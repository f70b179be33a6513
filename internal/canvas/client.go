// Package canvas is a minimal client for the Canvas LMS REST API, covering
// the dashboard course list and per-course assignment groups.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hsakai/coursetask/internal/model"
)

const defaultTimeout = 30 * time.Second

// Client calls the Canvas API with a bearer token. No retries are performed;
// a failed call surfaces as the enclosing course's failure.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient creates a Client for the given base URL (scheme and host, no
// trailing slash required).
func NewClient(baseURL, token string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// dashboardCard is the wire shape of one dashboard course card.
type dashboardCard struct {
	ID         int64  `json:"id"`
	CourseCode string `json:"courseCode"`
}

// apiError is the Canvas error payload.
type apiError struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ListCourses returns the courses on the user's dashboard. The course code
// becomes the task store project name.
func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	endpoint := c.baseURL + "/api/v1/dashboard/dashboard_cards"

	var courses []model.Course
	for endpoint != "" {
		var cards []dashboardCard
		next, err := c.getJSON(ctx, endpoint, &cards)
		if err != nil {
			return nil, fmt.Errorf("fetch dashboard cards: %w", err)
		}
		for _, card := range cards {
			courses = append(courses, model.Course{ID: card.ID, Name: card.CourseCode})
		}
		endpoint = next
	}

	c.logger.WithField("courses", len(courses)).Debug("dashboard cards fetched")
	return courses, nil
}

// ListAssignmentGroups returns every assignment group of one course with its
// assignments included and heavy response fields excluded.
func (c *Client) ListAssignmentGroups(ctx context.Context, courseID int64) ([]model.AssignmentGroup, error) {
	params := url.Values{}
	params.Add("include[]", "assignments")
	params.Add("include[]", "discussion_topic")
	params.Add("exclude_response_fields[]", "description")
	params.Add("exclude_response_fields[]", "rubric")
	params.Set("override_assignment_dates", "true")

	endpoint := fmt.Sprintf("%s/api/v1/courses/%d/assignment_groups?%s", c.baseURL, courseID, params.Encode())

	var groups []model.AssignmentGroup
	for endpoint != "" {
		var page []model.AssignmentGroup
		next, err := c.getJSON(ctx, endpoint, &page)
		if err != nil {
			return nil, fmt.Errorf("fetch assignment groups for course %d: %w", courseID, err)
		}
		groups = append(groups, page...)
		endpoint = next
	}

	c.logger.WithFields(logrus.Fields{
		"course_id": courseID,
		"groups":    len(groups),
	}).Debug("assignment groups fetched")
	return groups, nil
}

// getJSON performs one authenticated GET, decodes the body into out, and
// returns the rel="next" pagination link when the server provides one.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (next string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
			return "", fmt.Errorf("canvas API status %d: %s", resp.StatusCode, apiErr.Errors[0].Message)
		}
		return "", fmt.Errorf("canvas API status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return parseNextLink(resp.Header.Get("Link")), nil
}

// parseNextLink extracts the rel="next" URL from an RFC 5988 Link header.
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if strings.TrimSpace(section[1]) != `rel="next"` {
			continue
		}
		link := strings.TrimSpace(section[0])
		return strings.Trim(link, "<>")
	}
	return ""
}
