package pages

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pageflow/internal/interact"
)

const (
	AccountsTab             interact.Target = "a[data-label='Accounts']"
	NewButton               interact.Target = "div[title='New']"
	AccountNameInput        interact.Target = "input[placeholder='Account Name']"
	AccountTypeDropdown     interact.Target = "lightning-combobox[data-field-name='Type']"
	AccountIndustryDropdown interact.Target = "lightning-combobox[data-field-name='Industry']"
	AccountPhoneInput       interact.Target = "input[placeholder='Phone']"
	AccountWebsiteInput     interact.Target = "input[placeholder='Website']"
	SaveButton              interact.Target = "button[name='SaveEdit']"
	SaveAndNewButton        interact.Target = "button[name='SaveAndNew']"
	CancelButton            interact.Target = "button[name='CancelEdit']"
	AccountDetailTitle      interact.Target = "h1[class*='slds-page-header__title']"
	SuccessMessage          interact.Target = "div[class*='slds-notify__content']"
	FormError               interact.Target = "div[class*='slds-form-element__help']"
)

// AccountListPath is opened directly when the Accounts tab cannot be reached.
const AccountListPath = "/lightning/o/Account/list"

// ComboboxOption locates a dropdown entry by its value.
func ComboboxOption(value string) interact.Target {
	return interact.Target(fmt.Sprintf("lightning-base-combobox-item[data-value='%s']", cssEscape(value)))
}

// DetailField locates a read-only field on the account detail page.
func DetailField(name string) interact.Target {
	return interact.Target(fmt.Sprintf("span[data-field-name='%s']", cssEscape(name)))
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// Account is the set of fields the account form edits.
type Account struct {
	Name     string
	Type     string
	Industry string
	Phone    string
	Website  string
}

type AccountPage struct {
	ui   *interact.Interactor
	base string
}

// NewAccountPage binds the page to ui. base is any URL of the application; its
// origin is used for direct navigation.
func NewAccountPage(ui *interact.Interactor, base string) *AccountPage {
	return &AccountPage{ui: ui, base: base}
}

// NavigateToAccounts opens the account list through the app launcher when it
// is shown, falling back to the list URL if the tab cannot be used.
func (p *AccountPage) NavigateToAccounts(ctx context.Context) error {
	err := p.viaTab(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	u, perr := url.Parse(p.base)
	if perr != nil || u.Host == "" {
		return fmt.Errorf("navigate to accounts: %w", err)
	}
	return p.ui.Navigate(ctx, u.Scheme+"://"+u.Host+AccountListPath)
}

func (p *AccountPage) viaTab(ctx context.Context) error {
	if p.ui.IsVisible(ctx, AppLauncher) {
		if err := p.ui.Click(ctx, AppLauncher, 0); err != nil {
			return err
		}
		if err := p.ui.WaitUntilVisible(ctx, AccountsTab, 0); err != nil {
			return err
		}
	}
	if err := p.ui.Click(ctx, AccountsTab, 0); err != nil {
		return err
	}
	return p.ui.WaitForStable(ctx, 0)
}

func (p *AccountPage) ClickNew(ctx context.Context) error {
	if err := p.ui.Click(ctx, NewButton, 0); err != nil {
		return err
	}
	return p.ui.WaitForStable(ctx, 0)
}

func (p *AccountPage) EnterName(ctx context.Context, name string) error {
	return p.ui.Fill(ctx, AccountNameInput, name, 0)
}

func (p *AccountPage) SelectType(ctx context.Context, value string) error {
	return p.selectOption(ctx, AccountTypeDropdown, value)
}

func (p *AccountPage) SelectIndustry(ctx context.Context, value string) error {
	return p.selectOption(ctx, AccountIndustryDropdown, value)
}

func (p *AccountPage) selectOption(ctx context.Context, dropdown interact.Target, value string) error {
	if value == "" {
		return nil
	}
	if err := p.ui.Click(ctx, dropdown, 0); err != nil {
		return err
	}
	return p.ui.Click(ctx, ComboboxOption(value), 0)
}

func (p *AccountPage) EnterPhone(ctx context.Context, phone string) error {
	return p.ui.Fill(ctx, AccountPhoneInput, phone, 0)
}

func (p *AccountPage) EnterWebsite(ctx context.Context, website string) error {
	return p.ui.Fill(ctx, AccountWebsiteInput, website, 0)
}

func (p *AccountPage) Save(ctx context.Context) error {
	if err := p.ui.Click(ctx, SaveButton, 0); err != nil {
		return err
	}
	return p.ui.WaitForStable(ctx, 0)
}

func (p *AccountPage) SaveAndNew(ctx context.Context) error {
	if err := p.ui.Click(ctx, SaveAndNewButton, 0); err != nil {
		return err
	}
	return p.ui.WaitForStable(ctx, 0)
}

func (p *AccountPage) Cancel(ctx context.Context) error {
	return p.ui.Click(ctx, CancelButton, 0)
}

// Create fills the new-account form and saves it.
func (p *AccountPage) Create(ctx context.Context, a Account) error {
	steps := []func(context.Context) error{
		func(ctx context.Context) error { return p.EnterName(ctx, a.Name) },
		func(ctx context.Context) error { return p.SelectType(ctx, a.Type) },
		func(ctx context.Context) error { return p.SelectIndustry(ctx, a.Industry) },
		func(ctx context.Context) error { return p.EnterPhone(ctx, a.Phone) },
		func(ctx context.Context) error { return p.EnterWebsite(ctx, a.Website) },
		p.Save,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// IsCreated waits for the detail page of a freshly saved account.
func (p *AccountPage) IsCreated(ctx context.Context) bool {
	if err := p.ui.WaitUntilVisible(ctx, AccountDetailTitle, 0); err != nil {
		return false
	}
	return p.ui.IsVisible(ctx, AccountDetailTitle) || p.ui.IsVisible(ctx, SuccessMessage)
}

// IsNewButtonVisible reports whether the account list is shown.
func (p *AccountPage) IsNewButtonVisible(ctx context.Context) bool {
	return p.ui.IsVisible(ctx, NewButton)
}

// HasValidationError reports whether the form shows a field error.
func (p *AccountPage) HasValidationError(ctx context.Context) bool {
	return p.ui.IsVisible(ctx, FormError)
}

// Details reads the account detail page. Fields that are not shown are "".
func (p *AccountPage) Details(ctx context.Context) Account {
	return Account{
		Name:     p.field(ctx, "Name"),
		Type:     p.field(ctx, "Type"),
		Industry: p.field(ctx, "Industry"),
		Phone:    p.field(ctx, "Phone"),
		Website:  p.field(ctx, "Website"),
	}
}

func (p *AccountPage) field(ctx context.Context, name string) string {
	t := DetailField(name)
	if !p.ui.IsVisible(ctx, t) {
		return ""
	}
	text, err := p.ui.ReadText(ctx, t, 0)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// Verify compares the detail page against want and describes every mismatch.
func (p *AccountPage) Verify(ctx context.Context, want Account) error {
	got := p.Details(ctx)
	var diffs []string
	check := func(field, g, w string) {
		if g != w {
			diffs = append(diffs, fmt.Sprintf("%s: got %q, want %q", field, g, w))
		}
	}
	check("Name", got.Name, want.Name)
	check("Type", got.Type, want.Type)
	check("Industry", got.Industry, want.Industry)
	check("Phone", got.Phone, want.Phone)
	check("Website", got.Website, want.Website)
	if len(diffs) > 0 {
		return fmt.Errorf("account details mismatch: %s", strings.Join(diffs, "; "))
	}
	return nil
}
