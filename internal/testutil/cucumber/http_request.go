package cucumber

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

// requestTimeout bounds every request a scenario sends so a hung server fails
// the step instead of the whole suite.
const requestTimeout = 30 * time.Second

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^I (GET|POST|PUT|DELETE|PATCH) path "([^"]*)"$`, s.sendHTTPRequest)
		ctx.Step(`^I (GET|POST|PUT|DELETE|PATCH) path "([^"]*)" with json body:$`, s.SendHTTPRequestWithJSONBody)
	})
}

func (s *TestScenario) sendHTTPRequest(method, path string) error {
	return s.SendHTTPRequestWithJSONBody(method, path, nil)
}

// SendHTTPRequestWithJSONBody sends method to path as the current user and
// records the response in the session. ${var} references in the path and body
// are expanded first.
func (s *TestScenario) SendHTTPRequestWithJSONBody(method, path string, doc *godog.DocString) error {
	session := s.Session()

	var body io.Reader
	if doc != nil {
		expanded, err := s.Expand(doc.Content)
		if err != nil {
			return err
		}
		body = bytes.NewBufferString(expanded)
	}

	target, err := s.requestURL(path)
	if err != nil {
		return err
	}

	session.Resp = nil
	session.SetRespBytes(nil)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header = session.Header.Clone()
	if req.Header.Get("Authorization") == "" && session.TestUser != nil && session.TestUser.Subject != "" {
		req.Header.Set("Authorization", "Bearer "+session.TestUser.Subject)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := session.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	session.Resp = resp
	session.SetRespBytes(data)
	return nil
}

func (s *TestScenario) requestURL(path string) (string, error) {
	expanded, err := s.Expand(path)
	if err != nil {
		return "", err
	}
	if u, err := url.Parse(expanded); err == nil && u.Scheme != "" {
		return expanded, nil
	}
	return s.Suite.APIURL + s.PathPrefix + expanded, nil
}
