package cucumber

import (
	"fmt"

	"github.com/cucumber/godog"
	"github.com/itchyny/gojq"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^the response code should be (\d+)$`, s.theResponseCodeShouldBe)
		ctx.Step(`^the response should match json:$`, s.theResponseShouldMatchJSON)
		ctx.Step(`^the response should contain json:$`, s.theResponseShouldContainJSON)
		ctx.Step(`^I store the "([^"]*)" selection from the response as \${([^}]*)}$`, s.iStoreTheSelectionFromTheResponseAs)
	})
}

func (s *TestScenario) theResponseCodeShouldBe(expected int) error {
	session := s.Session()
	if session.Resp == nil {
		return fmt.Errorf("no HTTP response available")
	}
	if actual := session.Resp.StatusCode; actual != expected {
		return fmt.Errorf("expected response code %d, got %d, body: %s", expected, actual, session.RespBytes)
	}
	return nil
}

func (s *TestScenario) theResponseShouldMatchJSON(expected *godog.DocString) error {
	session := s.Session()
	if len(session.RespBytes) == 0 {
		return fmt.Errorf("got an empty response from server, expected a json body")
	}
	return s.JSONMustMatch(string(session.RespBytes), expected.Content, true)
}

func (s *TestScenario) theResponseShouldContainJSON(expected *godog.DocString) error {
	session := s.Session()
	if len(session.RespBytes) == 0 {
		return fmt.Errorf("got an empty response from server, expected a json body")
	}
	return s.JSONMustContain(string(session.RespBytes), expected.Content, true)
}

// iStoreTheSelectionFromTheResponseAs evaluates a jq selector against the last
// response and saves the first result as ${as}.
func (s *TestScenario) iStoreTheSelectionFromTheResponseAs(selector, as string) error {
	doc, err := s.Session().RespJSON()
	if err != nil {
		return err
	}
	query, err := gojq.Parse(selector)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	value, ok := query.Run(doc).Next()
	if !ok {
		return fmt.Errorf("response has no node matching selector: %s", selector)
	}
	if err, isErr := value.(error); isErr {
		return fmt.Errorf("selector %q: %w", selector, err)
	}
	s.Variables[as] = value
	return nil
}
