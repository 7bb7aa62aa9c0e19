package scenario_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/internal/artifact"
	"pageflow/internal/core"
	"pageflow/internal/data"
	"pageflow/internal/orchestrator"
	"pageflow/internal/pages/pagestest"
	"pageflow/internal/scenario"
)

const base = "https://crm.test"

var app = pagestest.App{Base: base, Username: "alice@example.com", Password: "secret", RenderDelay: 1}

func run(t *testing.T, app pagestest.App, name, csv string) []core.Outcome {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	fn, ok := scenario.Lookup(name)
	require.True(t, ok, "scenario %q not registered", name)

	driver := app.Driver()
	o := orchestrator.New(orchestrator.Options{
		Driver:       driver,
		Timeout:      100 * time.Millisecond,
		PollInterval: time.Millisecond,
		Store:        artifact.NewStore(t.TempDir()),
	})
	outcomes := o.Run(context.Background(), orchestrator.Job{
		Scenario: name,
		Run:      fn,
		Source:   data.DataSource{Name: name, Path: path},
		BaseURL:  base,
	})
	assert.Zero(t, driver.Live(), "sessions leaked")
	return outcomes
}

func statuses(outcomes []core.Outcome) []core.Status {
	var out []core.Status
	for _, o := range outcomes {
		out = append(out, o.Status)
	}
	return out
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		"account_creation",
		"account_data_driven",
		"account_form_validation",
		"account_navigation",
		"forgot_password",
		"login",
		"login_page_elements",
	}, scenario.Names())

	_, ok := scenario.Lookup("nope")
	assert.False(t, ok)

	for _, info := range scenario.All() {
		assert.NotEmpty(t, info.Description, info.Name)
		assert.NotNil(t, info.Run, info.Name)
	}
}

func TestLogin(t *testing.T) {
	csv := "TestCase,Username,Password,URL,ExpectedResult\n" +
		"ValidLogin,alice@example.com,secret," + base + pagestest.LoginPath + ",Success\n" +
		"InvalidPassword,alice@example.com,wrong," + base + pagestest.LoginPath + ",Failure\n" +
		"WrongExpectation,alice@example.com,wrong," + base + pagestest.LoginPath + ",Success\n" +
		"BadExpectation,alice@example.com,secret," + base + pagestest.LoginPath + ",Maybe\n"

	outcomes := run(t, app, "login", csv)

	require.Len(t, outcomes, 4)
	assert.Equal(t, []core.Status{core.StatusPassed, core.StatusPassed, core.StatusFailed, core.StatusFailed}, statuses(outcomes))
	assert.Contains(t, outcomes[2].Reason, "login should be successful")
	assert.Equal(t, "after_login_attempt", outcomes[2].Artifact.Checkpoint)
	assert.Contains(t, outcomes[3].Reason, `unknown ExpectedResult "Maybe"`)
}

func TestLogin_UsesBaseURLWithoutURLField(t *testing.T) {
	outcomes := run(t, app, "login", "Username,Password\nalice@example.com,secret\n")
	require.Len(t, outcomes, 1)
	// The suite base URL is the application root, which serves no login form.
	assert.Equal(t, core.StatusFailed, outcomes[0].Status)
	assert.Equal(t, "login_page_loaded", outcomes[0].Artifact.Checkpoint)
}

func TestLoginPageElements(t *testing.T) {
	csv := "URL\n" + base + pagestest.LoginPath + "\n" + base + pagestest.HomePath + "\n"
	outcomes := run(t, app, "login_page_elements", csv)

	require.Len(t, outcomes, 2)
	assert.Equal(t, core.StatusPassed, outcomes[0].Status)
	assert.Equal(t, core.StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Reason, "input[name='username']")
}

func TestForgotPassword(t *testing.T) {
	outcomes := run(t, app, "forgot_password", "URL\n"+base+pagestest.LoginPath+"\n")
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.StatusPassed, outcomes[0].Status, outcomes[0].Reason)
}

const accountHeader = "TestCase,Username,Password,URL,AccountName,AccountType,Industry,Phone,Website\n"

func TestAccountCreation_Defaults(t *testing.T) {
	csv := accountHeader + "Generated,alice@example.com,secret," + base + pagestest.LoginPath + ",,,,,\n"
	outcomes := run(t, pagestest.App{Base: base, Username: "alice@example.com", Password: "secret"}, "account_creation", csv)

	require.Len(t, outcomes, 1)
	assert.Equal(t, core.StatusPassed, outcomes[0].Status, outcomes[0].Reason)
}

func TestAccountDataDriven(t *testing.T) {
	login := base + pagestest.LoginPath
	csv := accountHeader +
		"Full,alice@example.com,secret," + login + ",Acme Corp,Prospect,Finance,555-0100,https://acme.test\n" +
		"NameOnly,alice@example.com,secret," + login + ",Solo Ltd,,,,\n" +
		"BadLogin,alice@example.com,nope," + login + ",Never Inc,,,,\n"
	outcomes := run(t, pagestest.App{Base: base, Username: "alice@example.com", Password: "secret"}, "account_data_driven", csv)

	require.Len(t, outcomes, 3)
	assert.Equal(t, core.StatusPassed, outcomes[0].Status, outcomes[0].Reason)
	assert.Equal(t, core.StatusPassed, outcomes[1].Status, outcomes[1].Reason)
	assert.Equal(t, core.StatusFailed, outcomes[2].Status)
	assert.Contains(t, outcomes[2].Reason, "login should be successful before creating an account")
	assert.Equal(t, "after_login", outcomes[2].Artifact.Checkpoint)
}

func TestAccountNavigation_FallsBackToListURL(t *testing.T) {
	a := pagestest.App{Base: base, Username: "alice@example.com", Password: "secret", BrokenLauncher: true}
	csv := "Username,Password,URL\nalice@example.com,secret," + base + pagestest.LoginPath + "\n"
	outcomes := run(t, a, "account_navigation", csv)

	require.Len(t, outcomes, 1)
	assert.Equal(t, core.StatusPassed, outcomes[0].Status, outcomes[0].Reason)
}

func TestAccountFormValidation(t *testing.T) {
	csv := "Username,Password,URL\nalice@example.com,secret," + base + pagestest.LoginPath + "\n"
	outcomes := run(t, pagestest.App{Base: base, Username: "alice@example.com", Password: "secret"}, "account_form_validation", csv)

	require.Len(t, outcomes, 1)
	assert.Equal(t, core.StatusPassed, outcomes[0].Status, outcomes[0].Reason)
}

func TestAssertionError(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&scenario.AssertionError{Msg: "page should load", Err: cause})

	assert.ErrorIs(t, err, scenario.ErrAssertion)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "assertion failed: page should load: timeout", err.Error())

	var ae *scenario.AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "page should load", ae.Msg)
}
