package bdd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chirino/social-service/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		d := &domainAssertionSteps{s: s}

		// Response status
		ctx.Step(`^the response status should be (\d+)$`, d.theResponseStatusShouldBe)

		// Response body assertions (JSON matching)
		ctx.Step(`^the response body should contain json:$`, d.theResponseBodyShouldContainJSON)
		ctx.Step(`^the response body should contain "([^"]*)"$`, d.theResponseBodyShouldContainText)
		ctx.Step(`^the response body should not contain "([^"]*)"$`, d.theResponseBodyShouldNotContainText)

		// Response body field assertions
		ctx.Step(`^the response body field "([^"]*)" should be "([^"]*)"$`, d.theResponseBodyFieldShouldBe)
		ctx.Step(`^the response body field "([^"]*)" should be null$`, d.theResponseBodyFieldShouldBeNull)
		ctx.Step(`^the response body field "([^"]*)" should not be null$`, d.theResponseBodyFieldShouldNotBeNull)
		ctx.Step(`^the response body field "([^"]*)" should have (\d+) items?$`, d.theResponseBodyFieldShouldHaveItems)

		// Collection size assertions
		ctx.Step(`^the response should contain (\d+) tweets?$`, d.theResponseShouldContainTweets)
		ctx.Step(`^the response should contain (\d+) chat messages?$`, d.theResponseShouldContainChatMessages)
		ctx.Step(`^tweet at index (\d+) should have text "([^"]*)"$`, d.tweetAtIndexShouldHaveText)
		ctx.Step(`^chat message at index (\d+) should have message "([^"]*)"$`, d.chatMessageAtIndexShouldHaveMessage)

		// Error assertions
		ctx.Step(`^the response should contain error code "([^"]*)"$`, d.theResponseShouldContainErrorCode)
		ctx.Step(`^the response should report an invalid "([^"]*)"$`, d.theResponseShouldReportInvalidField)

		// Variable management
		ctx.Step(`^set "([^"]*)" to the json response field "([^"]*)"$`, d.setContextVariableToJSONResponseField)
	})
}

type domainAssertionSteps struct {
	s *cucumber.TestScenario
}

func (d *domainAssertionSteps) theResponseStatusShouldBe(expected int) error {
	session := d.s.Session()
	if session.Resp == nil {
		return fmt.Errorf("no HTTP response available")
	}
	actual := session.Resp.StatusCode
	if expected != actual {
		return fmt.Errorf("expected response code to be: %d, but actual is: %d, body: %s", expected, actual, string(session.RespBytes))
	}
	return nil
}

func (d *domainAssertionSteps) theResponseBodyShouldContainJSON(expected *godog.DocString) error {
	session := d.s.Session()
	if len(session.RespBytes) == 0 {
		return fmt.Errorf("got an empty response from server, expected a json body")
	}
	return d.s.JSONMustContain(string(session.RespBytes), expected.Content, true)
}

func (d *domainAssertionSteps) theResponseBodyShouldContainText(expected string) error {
	expanded, err := d.s.Expand(expected)
	if err != nil {
		return err
	}
	body := string(d.s.Session().RespBytes)
	if !strings.Contains(body, expanded) {
		return fmt.Errorf("expected response to contain '%s', but it does not. Response body: %s", expanded, body)
	}
	return nil
}

func (d *domainAssertionSteps) theResponseBodyShouldNotContainText(expected string) error {
	expanded, err := d.s.Expand(expected)
	if err != nil {
		return err
	}
	body := string(d.s.Session().RespBytes)
	if strings.Contains(body, expanded) {
		return fmt.Errorf("expected response not to contain '%s', but it does. Response body: %s", expanded, body)
	}
	return nil
}

func (d *domainAssertionSteps) field(path string) (interface{}, error) {
	respJSON, err := d.s.Session().RespJSON()
	if err != nil {
		return nil, err
	}
	return jsonPathGet(respJSON, path), nil
}

func (d *domainAssertionSteps) theResponseBodyFieldShouldBe(path, expected string) error {
	expanded, err := d.s.Expand(expected)
	if err != nil {
		return err
	}
	value, err := d.field(path)
	if err != nil {
		return err
	}
	body := string(d.s.Session().RespBytes)
	if value == nil {
		if expanded == "null" {
			return nil
		}
		return fmt.Errorf("field '%s' is null, expected '%s'. Response: %s", path, expanded, body)
	}
	actual, err := cucumber.ToString(value, path)
	if err != nil {
		return err
	}
	if actual != expanded {
		return fmt.Errorf("field '%s' expected '%s', got '%s'. Response: %s", path, expanded, actual, body)
	}
	return nil
}

func (d *domainAssertionSteps) theResponseBodyFieldShouldBeNull(path string) error {
	value, err := d.field(path)
	if err != nil {
		return err
	}
	if value != nil {
		return fmt.Errorf("field '%s' should be null but is '%v'", path, value)
	}
	return nil
}

func (d *domainAssertionSteps) theResponseBodyFieldShouldNotBeNull(path string) error {
	value, err := d.field(path)
	if err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("field '%s' should not be null. Response: %s", path, string(d.s.Session().RespBytes))
	}
	return nil
}

func (d *domainAssertionSteps) theResponseBodyFieldShouldHaveItems(path string, count int) error {
	value, err := d.field(path)
	if err != nil {
		return err
	}
	arr, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("field '%s' is not an array. Response: %s", path, string(d.s.Session().RespBytes))
	}
	if len(arr) != count {
		return fmt.Errorf("expected %d items in '%s', got %d. Response: %s", count, path, len(arr), string(d.s.Session().RespBytes))
	}
	return nil
}

func (d *domainAssertionSteps) theResponseShouldContainTweets(count int) error {
	return d.theResponseBodyFieldShouldHaveItems("tweets.results", count)
}

func (d *domainAssertionSteps) theResponseShouldContainChatMessages(count int) error {
	return d.theResponseBodyFieldShouldHaveItems("chatMessage.results", count)
}

func (d *domainAssertionSteps) tweetAtIndexShouldHaveText(index int, expected string) error {
	return d.theResponseBodyFieldShouldBe(fmt.Sprintf("tweets.results.%d.tweetText", index), expected)
}

func (d *domainAssertionSteps) chatMessageAtIndexShouldHaveMessage(index int, expected string) error {
	return d.theResponseBodyFieldShouldBe(fmt.Sprintf("chatMessage.results.%d.message", index), expected)
}

func (d *domainAssertionSteps) theResponseShouldContainErrorCode(code string) error {
	value, err := d.field("code")
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != code {
		return fmt.Errorf("expected error code '%s', got '%v'. Response: %s", code, value, string(d.s.Session().RespBytes))
	}
	return nil
}

func (d *domainAssertionSteps) theResponseShouldReportInvalidField(field string) error {
	if err := d.theResponseShouldContainErrorCode("validation_error"); err != nil {
		return err
	}
	return d.theResponseBodyFieldShouldBe("field", field)
}

func (d *domainAssertionSteps) setContextVariableToJSONResponseField(name, path string) error {
	value, err := d.field(path)
	if err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("JSON response field '%s' is null or does not exist. Response: %s", path, string(d.s.Session().RespBytes))
	}
	d.s.Variables[name] = value
	return nil
}

// jsonPathGet navigates a JSON structure using dot-separated path with array index support.
// e.g. "tweets.results.0.likes.0.id" or "tweets.results[0].likes[0].id"
func jsonPathGet(obj interface{}, path string) interface{} {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")

	current := obj
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[part]
		case []interface{}:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err == nil && idx >= 0 && idx < len(v) {
				current = v[idx]
			} else {
				return nil
			}
		case string:
			// Fields holding embedded JSON documents can be navigated too.
			var parsed map[string]interface{}
			if json.Unmarshal([]byte(v), &parsed) != nil {
				return nil
			}
			current = parsed[part]
		default:
			return nil
		}
	}
	return current
}
