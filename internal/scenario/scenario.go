// Package scenario holds the login and account scenarios a suite can run.
// Each one reads its inputs from the invocation's record.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pageflow/internal/orchestrator"
	"pageflow/internal/pages"
	"pageflow/internal/template"
)

// Info describes a registered scenario.
type Info struct {
	Name        string
	Description string
	// Fields lists the record fields the scenario reads.
	Fields []string
	Run    orchestrator.Func
}

var registry = map[string]Info{}

func register(info Info) {
	if _, dup := registry[info.Name]; dup {
		panic("scenario: duplicate registration of " + info.Name)
	}
	registry[info.Name] = info
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (orchestrator.Func, bool) {
	info, ok := registry[name]
	return info.Run, ok
}

// All returns every registered scenario sorted by name.
func All() []Info {
	out := make([]Info, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered scenario names, sorted.
func Names() []string {
	var names []string
	for _, info := range All() {
		names = append(names, info.Name)
	}
	return names
}

// Defaults used by account_creation when the record leaves a field blank.
const (
	DefaultAccountType     = "Customer - Direct"
	DefaultAccountIndustry = "Technology"
	DefaultAccountPhone    = "123-456-7890"
	DefaultAccountWebsite  = "https://www.testaccount.com"

	// GeneratedAccountName names accounts whose record has no AccountName.
	GeneratedAccountName = "Test Account ${timestamp_ms()}"
)

var loginFields = []string{"Username", "Password", "URL"}

func init() {
	register(Info{
		Name:        "login",
		Description: "log in and check the result against ExpectedResult (Success or Failure)",
		Fields:      append(loginFields, "ExpectedResult", "TestCase"),
		Run:         Login,
	})
	register(Info{
		Name:        "login_page_elements",
		Description: "check that the username, password and login controls render",
		Fields:      []string{"URL"},
		Run:         LoginPageElements,
	})
	register(Info{
		Name:        "forgot_password",
		Description: "follow the forgot password link to the reset form",
		Fields:      []string{"URL"},
		Run:         ForgotPassword,
	})
	register(Info{
		Name:        "account_creation",
		Description: "log in, create an account with generated or default values and verify it",
		Fields:      append(loginFields, "AccountName", "AccountType", "Industry", "Phone", "Website"),
		Run:         AccountCreation,
	})
	register(Info{
		Name:        "account_data_driven",
		Description: "log in, create the account described by the record and verify it",
		Fields:      append(loginFields, "TestCase", "AccountName", "AccountType", "Industry", "Phone", "Website"),
		Run:         AccountDataDriven,
	})
	register(Info{
		Name:        "account_navigation",
		Description: "log in and open the account list",
		Fields:      loginFields,
		Run:         AccountNavigation,
	})
	register(Info{
		Name:        "account_form_validation",
		Description: "save an empty account form and expect a field error",
		Fields:      loginFields,
		Run:         AccountFormValidation,
	})
}

// loginURL is the record's URL, or the suite base URL when the record has none.
func loginURL(env *orchestrator.Env) string {
	if u := env.Field("URL"); u != "" {
		return u
	}
	return env.BaseURL
}

func Login(ctx context.Context, env *orchestrator.Env) error {
	login := env.Login
	if err := login.Open(ctx, loginURL(env)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	env.Checkpoint(ctx, "login_page_loaded")

	if err := login.Login(ctx, env.Field("Username"), env.Field("Password")); err != nil {
		return fmt.Errorf("submit credentials: %w", err)
	}
	env.Checkpoint(ctx, "after_login_attempt")

	switch expected := env.Field("ExpectedResult"); {
	case expected == "" || strings.EqualFold(expected, "Success"):
		if !login.IsLoginSuccessful(ctx) {
			return failf("login should be successful for valid credentials")
		}
	case strings.EqualFold(expected, "Failure"):
		if !login.WaitForLoginError(ctx) {
			return failf("login error should be displayed for invalid credentials")
		}
		msg, err := login.ErrorMessage(ctx)
		if err != nil {
			return fmt.Errorf("read login error: %w", err)
		}
		env.Logger.Info().Str("message", msg).Msg("login rejected as expected")
	default:
		return failf("unknown ExpectedResult %q, want Success or Failure", expected)
	}
	return nil
}

func LoginPageElements(ctx context.Context, env *orchestrator.Env) error {
	if err := env.Login.Open(ctx, loginURL(env)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	env.Checkpoint(ctx, "login_page_elements")

	if missing := env.Login.MissingElements(ctx); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, t := range missing {
			names[i] = string(t)
		}
		return failf("login page is missing %s", strings.Join(names, ", "))
	}
	return nil
}

func ForgotPassword(ctx context.Context, env *orchestrator.Env) error {
	if err := env.Login.Open(ctx, loginURL(env)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := env.Login.ClickForgotPassword(ctx); err != nil {
		return fmt.Errorf("follow forgot password link: %w", err)
	}
	env.Checkpoint(ctx, "forgot_password_page")

	if err := env.UI.WaitUntilVisible(ctx, pages.ForgotUsername, 0); err != nil {
		return &AssertionError{Msg: "forgot password page should be loaded", Err: err}
	}
	return nil
}

// signIn logs in with the record's credentials and requires success.
func signIn(ctx context.Context, env *orchestrator.Env, purpose string) error {
	if err := env.Login.Open(ctx, loginURL(env)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := env.Login.Login(ctx, env.Field("Username"), env.Field("Password")); err != nil {
		return fmt.Errorf("submit credentials: %w", err)
	}
	env.Checkpoint(ctx, "after_login")
	if !env.Login.IsLoginSuccessful(ctx) {
		return failf("login should be successful before %s", purpose)
	}
	return nil
}

func openNewAccountForm(ctx context.Context, env *orchestrator.Env) error {
	if err := env.Account.NavigateToAccounts(ctx); err != nil {
		return fmt.Errorf("navigate to accounts: %w", err)
	}
	env.Checkpoint(ctx, "accounts_page")
	if err := env.Account.ClickNew(ctx); err != nil {
		return fmt.Errorf("open new account form: %w", err)
	}
	env.Checkpoint(ctx, "new_account_form")
	return nil
}

func createAndVerify(ctx context.Context, env *orchestrator.Env, acct pages.Account) error {
	if err := env.Account.Create(ctx, acct); err != nil {
		return fmt.Errorf("create account %q: %w", acct.Name, err)
	}
	env.Checkpoint(ctx, "account_created")

	if !env.Account.IsCreated(ctx) {
		return failf("account %q should be created", acct.Name)
	}
	if err := env.Account.Verify(ctx, acct); err != nil {
		return &AssertionError{Msg: "account details should match the entered values", Err: err}
	}
	env.Logger.Info().Str("account", acct.Name).Msg("account verified")
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// AccountCreation fills blank account fields with defaults and a unique
// generated name.
func AccountCreation(ctx context.Context, env *orchestrator.Env) error {
	if err := signIn(ctx, env, "creating an account"); err != nil {
		return err
	}
	if err := openNewAccountForm(ctx, env); err != nil {
		return err
	}
	name := env.Field("AccountName")
	if name == "" {
		generated, err := template.Substitute(GeneratedAccountName, env.Record)
		if err != nil {
			return fmt.Errorf("generate account name: %w", err)
		}
		name = generated
	}
	acct := pages.Account{
		Name:     name,
		Type:     orDefault(env.Field("AccountType"), DefaultAccountType),
		Industry: orDefault(env.Field("Industry"), DefaultAccountIndustry),
		Phone:    orDefault(env.Field("Phone"), DefaultAccountPhone),
		Website:  orDefault(env.Field("Website"), DefaultAccountWebsite),
	}
	return createAndVerify(ctx, env, acct)
}

// AccountDataDriven uses the record's account fields exactly as given.
func AccountDataDriven(ctx context.Context, env *orchestrator.Env) error {
	if err := signIn(ctx, env, "creating an account"); err != nil {
		return err
	}
	if err := openNewAccountForm(ctx, env); err != nil {
		return err
	}
	return createAndVerify(ctx, env, pages.Account{
		Name:     env.Field("AccountName"),
		Type:     env.Field("AccountType"),
		Industry: env.Field("Industry"),
		Phone:    env.Field("Phone"),
		Website:  env.Field("Website"),
	})
}

func AccountNavigation(ctx context.Context, env *orchestrator.Env) error {
	if err := signIn(ctx, env, "navigating to accounts"); err != nil {
		return err
	}
	if err := env.Account.NavigateToAccounts(ctx); err != nil {
		return fmt.Errorf("navigate to accounts: %w", err)
	}
	env.Checkpoint(ctx, "accounts_page_navigation")

	if err := env.UI.WaitUntilVisible(ctx, pages.NewButton, 0); err != nil {
		return &AssertionError{Msg: "New button should be visible on accounts page", Err: err}
	}
	return nil
}

func AccountFormValidation(ctx context.Context, env *orchestrator.Env) error {
	if err := signIn(ctx, env, "testing form validation"); err != nil {
		return err
	}
	if err := openNewAccountForm(ctx, env); err != nil {
		return err
	}
	if err := env.Account.Save(ctx); err != nil {
		return fmt.Errorf("save empty form: %w", err)
	}
	env.Checkpoint(ctx, "form_validation_error")

	if err := env.UI.WaitUntilVisible(ctx, pages.FormError, 0); err != nil {
		return &AssertionError{Msg: "saving an empty form should show a validation error", Err: err}
	}
	if env.Account.IsCreated(ctx) {
		return failf("an account without a name should not be created")
	}
	return nil
}
