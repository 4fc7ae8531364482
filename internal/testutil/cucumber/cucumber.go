// Package cucumber provides a godog-based BDD test framework with HTTP API testing support.
//
// Variables are scoped to the scenario. HTTP response state is stored in the user's session.
// Switching users switches the session. Scenarios are executed concurrently.
//
// Variable references:
//   - ${variableName}     scenario variable lookup
//   - ${response}         the last response body
//   - ${response.field}   a response body field, selected with gojq
package cucumber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"github.com/itchyny/gojq"
	"github.com/pmezard/go-difflib/difflib"
)

func NewTestSuite() *TestSuite {
	return &TestSuite{
		APIURL: "http://localhost:8080",
		Extra:  map[string]interface{}{},
	}
}

func DefaultOptions() godog.Options {
	return godog.Options{
		Output:      colors.Colored(os.Stdout),
		Format:      "progress",
		Paths:       []string{"features"},
		Randomize:   time.Now().UTC().UnixNano(),
		Concurrency: 10,
	}
}

// ApplyReportOptions switches output to junit XML under GODOG_REPORT_DIR when
// that variable is set. The returned func closes the report file.
func ApplyReportOptions(opts *godog.Options, testName string) func() {
	dir := os.Getenv("GODOG_REPORT_DIR")
	if dir == "" {
		return func() {}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return func() {}
	}
	f, err := os.Create(filepath.Join(dir, strings.ReplaceAll(testName, "/", "-")+".xml"))
	if err != nil {
		return func() {}
	}
	opts.Output = f
	opts.Format = "junit"
	return func() { _ = f.Close() }
}

// TestDB resets backend state between scenarios. Each runner injects the one
// matching its datastore.
type TestDB interface {
	ClearAll(ctx context.Context) error
}

// TestSuite holds state global to all test scenarios.
// Accessed concurrently from all test scenarios.
type TestSuite struct {
	Context  interface{} // opaque application context
	APIURL   string
	Mu       sync.Mutex
	TestingT *testing.T
	Extra    map[string]interface{} // runner specific settings, e.g. the redis url for event steps
	DB       TestDB
}

// TestUser represents a user that can interact with the API.
type TestUser struct {
	Name    string
	Subject string // bearer token value
}

// TestScenario holds state for a single scenario. Not accessed concurrently.
type TestScenario struct {
	Suite       *TestSuite
	CurrentUser string
	PathPrefix  string
	sessions    map[string]*TestSession
	Variables   map[string]interface{}
	Users       map[string]*TestUser
}

func (s *TestScenario) User() *TestUser {
	s.Suite.Mu.Lock()
	defer s.Suite.Mu.Unlock()
	return s.Users[s.CurrentUser]
}

func (s *TestScenario) Session() *TestSession {
	result := s.sessions[s.CurrentUser]
	if result == nil {
		result = &TestSession{
			TestUser: s.User(),
			Client:   &http.Client{},
			Header:   http.Header{},
		}
		s.sessions[s.CurrentUser] = result
	}
	return result
}

func indent(v interface{}) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}

func parseJSONPair(actual, expected string) (interface{}, interface{}, error) {
	var a, e interface{}
	if err := json.Unmarshal([]byte(actual), &a); err != nil {
		return nil, nil, fmt.Errorf("error parsing actual json: %w\njson was:\n%s", err, actual)
	}
	if strings.TrimSpace(expected) == "" {
		return nil, nil, fmt.Errorf("expected json not specified, actual json was:\n%s", indent(a))
	}
	if err := json.Unmarshal([]byte(expected), &e); err != nil {
		return nil, nil, fmt.Errorf("error parsing expected json: %w\njson was:\n%s", err, expected)
	}
	return a, e, nil
}

// JSONMustMatch fails unless actual and expected are the same JSON document.
func (s *TestScenario) JSONMustMatch(actual, expected string, expand bool) error {
	if expand {
		var err error
		if expected, err = s.Expand(expected); err != nil {
			return err
		}
	}
	a, e, err := parseJSONPair(actual, expected)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(e, a) {
		return nil
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(indent(e)),
		B:        difflib.SplitLines(indent(a)),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	return fmt.Errorf("actual does not match expected, diff:\n%s", diff)
}

// JSONMustContain fails unless every field of expected is present in actual
// with the same value. Arrays must match in length.
func (s *TestScenario) JSONMustContain(actual, expected string, expand bool) error {
	if expand {
		var err error
		if expected, err = s.Expand(expected); err != nil {
			return err
		}
	}
	a, e, err := parseJSONPair(actual, expected)
	if err != nil {
		return err
	}
	if err := jsonSubset(e, a, "$"); err != nil {
		return fmt.Errorf("actual does not contain expected.\n  mismatch: %s\n  expected:\n%s\n  actual:\n%s", err, indent(e), indent(a))
	}
	return nil
}

func jsonSubset(expected, actual interface{}, path string) error {
	switch exp := expected.(type) {
	case nil:
		if actual != nil {
			return fmt.Errorf("at %s: expected null, got %v", path, actual)
		}
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return fmt.Errorf("at %s: expected object, got %T", path, actual)
		}
		for key, v := range exp {
			got, exists := act[key]
			if !exists {
				return fmt.Errorf("at %s: missing key %q", path, key)
			}
			if err := jsonSubset(v, got, path+"."+key); err != nil {
				return err
			}
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return fmt.Errorf("at %s: expected array, got %T", path, actual)
		}
		if len(exp) != len(act) {
			return fmt.Errorf("at %s: expected array length %d, got %d", path, len(exp), len(act))
		}
		for i := range exp {
			if err := jsonSubset(exp[i], act[i], path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
	default:
		if !reflect.DeepEqual(expected, actual) {
			return fmt.Errorf("at %s: expected %v (%T), got %v (%T)", path, expected, expected, actual, actual)
		}
	}
	return nil
}

// Expand replaces ${var} references in value.
func (s *TestScenario) Expand(value string) (result string, rerr error) {
	return os.Expand(value, func(name string) string {
		res, err := s.ResolveString(name)
		if err != nil && rerr == nil {
			rerr = err
		}
		return res
	}), rerr
}

func (s *TestScenario) ResolveString(name string) (string, error) {
	value, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	return ToString(value, name)
}

// ToString renders a resolved value the way it should appear in a request or
// an assertion: scalars bare, everything else as JSON.
func ToString(value interface{}, name string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case error:
		return "", fmt.Errorf("failed to evaluate selection: %s: %w", name, v)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *TestScenario) Resolve(name string) (interface{}, error) {
	name = strings.TrimSpace(name)
	if name == "response" || strings.HasPrefix(name, "response.") || strings.HasPrefix(name, "response[") {
		session := s.Session()
		doc, err := session.RespJSON()
		if err != nil {
			return nil, err
		}
		query, err := gojq.Parse("." + name)
		if err != nil {
			return nil, err
		}
		if v, ok := query.Run(map[string]interface{}{"response": doc}).Next(); ok {
			return v, nil
		}
		return nil, fmt.Errorf("field ${%s} not found in json response:\n%s", name, session.RespBytes)
	}
	value, found := s.Variables[name]
	if !found {
		return nil, fmt.Errorf("variable ${%s} not defined yet", name)
	}
	return value, nil
}

// TestSession holds the HTTP context for a user, like a browser.
type TestSession struct {
	TestUser  *TestUser
	Client    *http.Client
	Resp      *http.Response
	RespBytes []byte
	respJSON  interface{}
	Header    http.Header
}

// RespJSON returns the last HTTP response body as parsed JSON.
func (s *TestSession) RespJSON() (interface{}, error) {
	if s.respJSON == nil {
		if s.RespBytes == nil {
			return nil, fmt.Errorf("no response body")
		}
		if err := json.Unmarshal(s.RespBytes, &s.respJSON); err != nil {
			return nil, fmt.Errorf("error parsing response json: %w\njson was:\n%s", err, s.RespBytes)
		}
	}
	return s.respJSON, nil
}

func (s *TestSession) SetRespBytes(bytes []byte) {
	s.RespBytes = bytes
	s.respJSON = nil
}

// StepModules is the list of functions used to register steps with a godog.ScenarioContext.
var StepModules []func(ctx *godog.ScenarioContext, s *TestScenario)

func (suite *TestSuite) InitializeScenario(ctx *godog.ScenarioContext) {
	s := &TestScenario{
		Suite:     suite,
		Users:     map[string]*TestUser{},
		sessions:  map[string]*TestSession{},
		Variables: map[string]interface{}{},
	}
	for _, module := range StepModules {
		module(ctx, s)
	}
}
