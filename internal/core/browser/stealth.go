package browser

import (
	"github.com/playwright-community/playwright-go"
)

// stealthArgs strips the most common automation tells at launch time.
var stealthArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-blink-features=AutomationControlled",
	"--no-first-run",
	"--disable-default-apps",
	"--disable-extensions",
}

// stealthScript papers over the remaining in-page fingerprints before any
// site script runs. Basic bot detection checks exactly these properties.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

if (!window.chrome) {
	window.chrome = { runtime: {} };
}

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters)
);

if (navigator.plugins.length === 0) {
	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
	});
}

if (navigator.languages.length === 0) {
	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
	});
}
`

func applyStealth(context playwright.BrowserContext) error {
	return context.AddInitScript(playwright.Script{
		Content: playwright.String(stealthScript),
	})
}
