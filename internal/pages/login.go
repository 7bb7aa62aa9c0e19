// Package pages holds the page objects for the application under test. Each
// page is a thin value over an injected interact.Interactor and exposes only
// the operations its screen supports.
package pages

import (
	"context"
	"strings"

	"pageflow/internal/interact"
)

const (
	UsernameInput      interact.Target = "input[name='username']"
	PasswordInput      interact.Target = "input[name='pw']"
	LoginButton        interact.Target = "input[name='Login']"
	RememberMeCheckbox interact.Target = "input[name='rememberUn']"
	ForgotPasswordLink interact.Target = "a[id='forgot_password_link']"
	LoginErrorMessage  interact.Target = "div[id='error']"
	AppLauncher        interact.Target = "div[class*='slds-icon-waffle']"
	UserMenu           interact.Target = "div[class*='slds-global-header__item'] button[class*='slds-button']"
	ForgotUsername     interact.Target = "input[name='un']"
)

type LoginPage struct {
	ui *interact.Interactor
}

func NewLoginPage(ui *interact.Interactor) *LoginPage {
	return &LoginPage{ui: ui}
}

// Open navigates to the login page and waits for it to settle.
func (p *LoginPage) Open(ctx context.Context, url string) error {
	return p.ui.Navigate(ctx, url)
}

func (p *LoginPage) EnterUsername(ctx context.Context, username string) error {
	return p.ui.Fill(ctx, UsernameInput, username, 0)
}

func (p *LoginPage) EnterPassword(ctx context.Context, password string) error {
	return p.ui.Fill(ctx, PasswordInput, password, 0)
}

// CheckRememberMe ticks the checkbox when the page offers it.
func (p *LoginPage) CheckRememberMe(ctx context.Context) error {
	if !p.ui.IsVisible(ctx, RememberMeCheckbox) {
		return nil
	}
	return p.ui.Click(ctx, RememberMeCheckbox, 0)
}

func (p *LoginPage) ClickLogin(ctx context.Context) error {
	if err := p.ui.Click(ctx, LoginButton, 0); err != nil {
		return err
	}
	return p.ui.WaitForStable(ctx, 0)
}

// Login fills the credentials and submits them.
func (p *LoginPage) Login(ctx context.Context, username, password string) error {
	if err := p.EnterUsername(ctx, username); err != nil {
		return err
	}
	if err := p.EnterPassword(ctx, password); err != nil {
		return err
	}
	if err := p.CheckRememberMe(ctx); err != nil {
		return err
	}
	return p.ClickLogin(ctx)
}

// IsLoginSuccessful waits for the app launcher that only signed-in users see.
func (p *LoginPage) IsLoginSuccessful(ctx context.Context) bool {
	if err := p.ui.WaitUntilVisible(ctx, AppLauncher, 0); err != nil {
		return false
	}
	return p.ui.IsVisible(ctx, AppLauncher)
}

func (p *LoginPage) IsLoginErrorDisplayed(ctx context.Context) bool {
	return p.ui.IsVisible(ctx, LoginErrorMessage)
}

// WaitForLoginError waits for the error banner a rejected login renders.
func (p *LoginPage) WaitForLoginError(ctx context.Context) bool {
	return p.ui.WaitUntilVisible(ctx, LoginErrorMessage, 0) == nil
}

// ErrorMessage returns the login error text, or "" when none is shown.
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	if !p.IsLoginErrorDisplayed(ctx) {
		return "", nil
	}
	text, err := p.ui.ReadText(ctx, LoginErrorMessage, 0)
	return strings.TrimSpace(text), err
}

func (p *LoginPage) IsUserMenuVisible(ctx context.Context) bool {
	return p.ui.IsVisible(ctx, UserMenu)
}

func (p *LoginPage) ClickForgotPassword(ctx context.Context) error {
	if err := p.ui.Click(ctx, ForgotPasswordLink, 0); err != nil {
		return err
	}
	return p.ui.WaitForStable(ctx, 0)
}

// IsForgotPasswordPage reports whether the password reset form is shown.
func (p *LoginPage) IsForgotPasswordPage(ctx context.Context) bool {
	return p.ui.IsVisible(ctx, ForgotUsername)
}

// MissingElements returns the required login controls that do not render
// within the wait budget.
func (p *LoginPage) MissingElements(ctx context.Context) []interact.Target {
	var missing []interact.Target
	for _, t := range []interact.Target{UsernameInput, PasswordInput, LoginButton} {
		if p.ui.WaitUntilVisible(ctx, t, 0) != nil {
			missing = append(missing, t)
		}
	}
	return missing
}
