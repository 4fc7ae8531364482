package bdd

import (
	"github.com/chirino/social-service/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		a := &authSteps{s: s}
		ctx.Step(`^I am authenticated as user "([^"]*)"$`, a.iAmAuthenticatedAsUser)
		ctx.Step(`^I authenticate as user "([^"]*)"$`, a.iAmAuthenticatedAsUser)
		ctx.Step(`^I am not authenticated$`, a.iAmNotAuthenticated)
	})
}

type authSteps struct {
	s *cucumber.TestScenario
}

func (a *authSteps) setUser(userID, subject string) {
	a.s.Suite.Mu.Lock()
	defer a.s.Suite.Mu.Unlock()
	if a.s.Users[userID] == nil {
		a.s.Users[userID] = &cucumber.TestUser{
			Name:    userID,
			Subject: subject, // in testing mode the bearer token is the user id
		}
	}
	a.s.CurrentUser = userID
}

func (a *authSteps) iAmAuthenticatedAsUser(userID string) error {
	a.setUser(userID, userID)
	return nil
}

// iAmNotAuthenticated switches to a session that sends no Authorization header.
func (a *authSteps) iAmNotAuthenticated() error {
	a.setUser("", "")
	return nil
}
