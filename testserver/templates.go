package testserver

import "html/template"

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
header { display: flex; gap: 1rem; align-items: center; padding: .5rem 1rem; background: #eef1f6; }
main { padding: 1rem; }
.slds-icon-waffle { width: 2rem; height: 2rem; cursor: pointer; background: #0176d3; color: #fff; text-align: center; line-height: 2rem; }
lightning-combobox { display: block; position: relative; min-width: 12rem; padding: .25rem; border: 1px solid #999; cursor: pointer; }
lightning-base-combobox-item { display: block; padding: .25rem; }
lightning-base-combobox-item:hover { background: #eef1f6; }
.combobox-options[hidden] { display: none; }
.slds-form-element__help { color: #c23934; }
.slds-notify__content { padding: .5rem; background: #04844b; color: #fff; }
#error { color: #c23934; }
</style>
<script>
function toggleLauncher() {
  var tab = document.getElementById("accounts-tab");
  tab.hidden = !tab.hidden;
}
function toggleOptions(box) {
  var opts = box.querySelector(".combobox-options");
  opts.hidden = !opts.hidden;
}
function pick(ev, item) {
  ev.stopPropagation();
  var box = item.closest("lightning-combobox");
  box.querySelector("input").value = item.dataset.value;
  box.querySelector(".combobox-value").textContent = item.dataset.value;
  item.parentElement.hidden = true;
}
</script>
</head>
<body>
{{if .User}}<header>
  <div class="slds-icon-waffle" onclick="toggleLauncher()" title="App Launcher">&#9783;</div>
  <nav><a id="accounts-tab" data-label="Accounts" href="/lightning/o/Account/list"{{if not .ShowTabs}} hidden{{end}}>Accounts</a></nav>
  <div class="slds-global-header__item"><button class="slds-button" type="button">{{.User}}</button></div>
  <a href="/secur/logout.jsp">Log Out</a>
</header>{{end}}
<main>{{template "content" .}}</main>
</body>
</html>{{end}}`

const loginHTML = `{{define "content"}}
<h1>Log In</h1>
{{if .Error}}<div id="error">{{.Error}}</div>{{end}}
<form method="post" action="/login">
  <label>Username <input type="text" name="username" value="{{.Username}}"></label>
  <label>Password <input type="password" name="pw"></label>
  <input type="submit" name="Login" value="Log In">
  <label><input type="checkbox" name="rememberUn"> Remember me</label>
</form>
<a id="forgot_password_link" href="/secur/forgotpassword.jsp">Forgot Your Password?</a>
{{end}}`

const homeHTML = `{{define "content"}}
<h1>Home</h1>
<p>Welcome, {{.User}}.</p>
{{end}}`

const forgotHTML = `{{define "content"}}
<h1>Forgot Your Password</h1>
{{if .Sent}}<p class="confirmation">Check your email for a reset link.</p>{{end}}
<form method="post" action="/secur/forgotpassword.jsp">
  <label>Username <input type="text" name="un"></label>
  <input type="submit" name="continue" value="Continue">
</form>
<a href="/login">Cancel</a>
{{end}}`

const listHTML = `{{define "content"}}
<h1>Accounts</h1>
<div title="New" role="button" onclick="location.href='/lightning/o/Account/new'">New</div>
<table>
  <thead><tr><th>Account Name</th><th>Type</th><th>Industry</th><th>Phone</th></tr></thead>
  <tbody>{{range .Accounts}}
    <tr><td><a href="/lightning/r/Account/{{.ID}}/view">{{.Name}}</a></td><td>{{.Type}}</td><td>{{.Industry}}</td><td>{{.Phone}}</td></tr>{{end}}
  </tbody>
</table>
{{end}}`

const formHTML = `{{define "combobox"}}
<lightning-combobox data-field-name="{{.Field}}" onclick="toggleOptions(this)">
  <span class="combobox-value">{{or .Value "--None--"}}</span>
  <input type="hidden" name="{{.Field}}" value="{{.Value}}">
  <div class="combobox-options" hidden>{{range .Options}}
    <lightning-base-combobox-item data-value="{{.}}" onclick="pick(event, this)">{{.}}</lightning-base-combobox-item>{{end}}
  </div>
</lightning-combobox>
{{end}}
{{define "content"}}
<h1>New Account</h1>
<form method="post" action="/lightning/o/Account/new">
  <label>Account Name <input type="text" name="Name" placeholder="Account Name" value="{{.Form.Name}}"></label>
  {{if .Error}}<div class="slds-form-element__help">{{.Error}}</div>{{end}}
  <label>Type</label>{{template "combobox" .TypeBox}}
  <label>Industry</label>{{template "combobox" .IndustryBox}}
  <label>Phone <input type="tel" name="Phone" placeholder="Phone" value="{{.Form.Phone}}"></label>
  <label>Website <input type="text" name="Website" placeholder="Website" value="{{.Form.Website}}"></label>
  <button type="button" name="CancelEdit" onclick="location.href='/lightning/o/Account/list'">Cancel</button>
  <button type="submit" name="SaveAndNew" value="1">Save &amp; New</button>
  <button type="submit" name="SaveEdit" value="1">Save</button>
</form>
{{end}}`

const viewHTML = `{{define "content"}}
{{if .Created}}<div class="slds-notify__content">Account "{{.Account.Name}}" was created.</div>{{end}}
<h1 class="slds-page-header__title">{{.Account.Name}}</h1>
<dl>
  <dt>Account Name</dt><dd><span data-field-name="Name">{{.Account.Name}}</span></dd>
  {{with .Account.Type}}<dt>Type</dt><dd><span data-field-name="Type">{{.}}</span></dd>{{end}}
  {{with .Account.Industry}}<dt>Industry</dt><dd><span data-field-name="Industry">{{.}}</span></dd>{{end}}
  {{with .Account.Phone}}<dt>Phone</dt><dd><span data-field-name="Phone">{{.}}</span></dd>{{end}}
  {{with .Account.Website}}<dt>Website</dt><dd><span data-field-name="Website">{{.}}</span></dd>{{end}}
</dl>
{{end}}`

func parsePages() map[string]*template.Template {
	base := template.Must(template.New("layout").Parse(layoutHTML))
	pages := map[string]string{
		"login":  loginHTML,
		"home":   homeHTML,
		"forgot": forgotHTML,
		"list":   listHTML,
		"form":   formHTML,
		"view":   viewHTML,
	}
	out := make(map[string]*template.Template, len(pages))
	for name, src := range pages {
		out[name] = template.Must(template.Must(base.Clone()).Parse(src))
	}
	return out
}
