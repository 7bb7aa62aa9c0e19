// Package pagestest builds a fake CRM application for browsertest drivers,
// with the screens and locators the page objects expect.
package pagestest

import (
	"pageflow/internal/browser/browsertest"
	"pageflow/internal/interact"
	"pageflow/internal/pages"
)

const (
	LoginPath          = "/login"
	HomePath           = "/home"
	ForgotPasswordPath = "/secur/forgotpassword.jsp"
	NewAccountPath     = "/lightning/o/Account/new"
	AccountViewPath    = "/lightning/r/Account/001/view"

	LoginErrorText = "Please check your username and password. If you still can't log in, contact your Salesforce administrator."
)

var (
	AccountTypes = []string{"Customer - Direct", "Customer - Channel", "Prospect", "Partner", "Other"}
	Industries   = []string{"Technology", "Healthcare", "Finance", "Retail", "Manufacturing"}
)

// App describes the fake application.
type App struct {
	Base     string
	Username string
	Password string
	// BrokenLauncher makes the app launcher open nothing, so the Accounts tab
	// never appears.
	BrokenLauncher bool
	// RenderDelay is the number of visibility probes each element needs
	// before it renders.
	RenderDelay int
}

func (a App) el(text string) *browsertest.Element {
	return &browsertest.Element{Text: text, AppearAfter: a.RenderDelay}
}

func (a App) click(fn func(p *browsertest.Page)) *browsertest.Element {
	return &browsertest.Element{AppearAfter: a.RenderDelay, OnClick: fn}
}

func key(t interact.Target) string { return string(t) }

// Routes returns the route table for a browsertest.Driver.
func (a App) Routes() map[string]browsertest.DOM {
	login := browsertest.DOM{
		key(pages.UsernameInput):      a.el(""),
		key(pages.PasswordInput):      a.el(""),
		key(pages.RememberMeCheckbox): a.el(""),
		key(pages.ForgotPasswordLink): a.click(func(p *browsertest.Page) { p.Goto(a.Base + ForgotPasswordPath) }),
		key(pages.LoginButton): a.click(func(p *browsertest.Page) {
			if p.FormValue(key(pages.UsernameInput)) == a.Username && a.Username != "" &&
				p.FormValue(key(pages.PasswordInput)) == a.Password && a.Password != "" {
				p.Goto(a.Base + HomePath)
				return
			}
			p.Set(key(pages.LoginErrorMessage), a.el(LoginErrorText))
		}),
	}

	toList := func(p *browsertest.Page) { p.Goto(a.Base + pages.AccountListPath) }
	home := browsertest.DOM{
		key(pages.UserMenu): a.el(""),
	}
	home[key(pages.AppLauncher)] = a.click(func(p *browsertest.Page) {
		if !a.BrokenLauncher {
			p.Set(key(pages.AccountsTab), a.click(toList))
		}
	})

	list := browsertest.DOM{
		key(pages.AppLauncher): a.el(""),
		key(pages.AccountsTab): a.click(toList),
		key(pages.NewButton):   a.click(func(p *browsertest.Page) { p.Goto(a.Base + NewAccountPath) }),
	}

	form := browsertest.DOM{
		key(pages.AccountNameInput):        a.el(""),
		key(pages.AccountTypeDropdown):     a.el(""),
		key(pages.AccountIndustryDropdown): a.el(""),
		key(pages.AccountPhoneInput):       a.el(""),
		key(pages.AccountWebsiteInput):     a.el(""),
		key(pages.SaveButton):              a.click(a.save),
		key(pages.SaveAndNewButton):        a.click(a.save),
		key(pages.CancelButton):            a.click(toList),
	}
	for _, v := range AccountTypes {
		v := v
		form[key(pages.ComboboxOption(v))] = a.click(func(p *browsertest.Page) {
			p.SetValue(key(pages.AccountTypeDropdown), v)
		})
	}
	for _, v := range Industries {
		v := v
		form[key(pages.ComboboxOption(v))] = a.click(func(p *browsertest.Page) {
			p.SetValue(key(pages.AccountIndustryDropdown), v)
		})
	}

	return map[string]browsertest.DOM{
		a.Base + LoginPath:             login,
		a.Base + HomePath:              home,
		a.Base + ForgotPasswordPath:    {key(pages.ForgotUsername): a.el("")},
		a.Base + pages.AccountListPath: list,
		a.Base + NewAccountPath:        form,
	}
}

func (a App) save(p *browsertest.Page) {
	acct := pages.Account{
		Name:     p.FormValue(key(pages.AccountNameInput)),
		Type:     p.FormValue(key(pages.AccountTypeDropdown)),
		Industry: p.FormValue(key(pages.AccountIndustryDropdown)),
		Phone:    p.FormValue(key(pages.AccountPhoneInput)),
		Website:  p.FormValue(key(pages.AccountWebsiteInput)),
	}
	if acct.Name == "" {
		p.Set(key(pages.FormError), a.el("Complete this field."))
		return
	}
	p.Goto(a.Base + AccountViewPath)
	p.Set(key(pages.AccountDetailTitle), a.el(acct.Name))
	p.Set(key(pages.SuccessMessage), a.el(`Account "`+acct.Name+`" was created.`))
	for name, v := range map[string]string{
		"Name": acct.Name, "Type": acct.Type, "Industry": acct.Industry,
		"Phone": acct.Phone, "Website": acct.Website,
	} {
		if v != "" {
			p.Set(key(pages.DetailField(name)), a.el(v))
		}
	}
}

// Driver returns a browsertest.Driver serving the app.
func (a App) Driver() *browsertest.Driver {
	return &browsertest.Driver{Routes: a.Routes()}
}
