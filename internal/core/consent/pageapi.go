package consent

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// pageAPI drives the TCF API of a live page. All scripts are evaluated
// in-page and must not reference anything outside the browser context.
type pageAPI struct {
	page playwright.Page
}

// NewPageAPI wraps a page into the poller's API interface.
func NewPageAPI(page playwright.Page) API {
	return &pageAPI{page: page}
}

func (a *pageAPI) WaitForAPI(timeout time.Duration) error {
	_, err := a.page.WaitForFunction("!!window.__tcfapi", nil, playwright.PageWaitForFunctionOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	return err
}

func (a *pageAPI) PingWaiting() (Ping, error) {
	result, err := a.page.Evaluate(`() => {
		let ret = null;
		window.__tcfapi("ping", 2, (data) => {
			if (!data.cmpLoaded)
				ret = data;
		});
		return ret;
	}`)
	if err != nil {
		return nil, err
	}
	return toPing(result), nil
}

func (a *pageAPI) PingLoaded(deadline time.Duration) (Ping, error) {
	result, err := a.page.Evaluate(`(timeout) => {
		return new Promise((resolve, reject) => {
			const ping = () => {
				window.__tcfapi("ping", 2, (pingReturn) => {
					if (pingReturn && pingReturn.cmpLoaded) {
						resolve(pingReturn);
						clearInterval(cancel);
					}
				});
			};
			setTimeout(() => reject("timeout"), timeout);
			const cancel = setInterval(ping, 100);
			ping();
		});
	}`, ms(deadline))
	if err != nil {
		return nil, err
	}
	return toPing(result), nil
}

func (a *pageAPI) NextEvent(known []string, window, grace time.Duration) (TCData, bool, error) {
	result, err := a.page.Evaluate(`(args) => {
		return new Promise((resolve, reject) => {
			let listenerId = undefined;

			const onEvent = (tcData, success) => {
				listenerId = listenerId || tcData.listenerId;
				const key = success ? tcData.eventStatus : "failed";
				if (!args.known.includes(key)) {
					cleanup();
					resolve({tcData, success});
				}
			};

			const cleanup = () => {
				if (listenerId !== undefined)
					try {
						window.__tcfapi("removeEventListener", 2, () => 0, listenerId);
					} catch (e) {
						console.error("__tcfapi.removeEventListener failed", e);
					}
			};

			setTimeout(() => {
				// Some CMPs screw up addEventListener, so we explicitly try
				// getTCData here again.
				setTimeout(() => {
					cleanup();
					reject("timeout");
				}, args.grace);
				try {
					window.__tcfapi("getTCData", 2, onEvent);
				} catch (e) {
					console.error("__tcfapi.getTCData failed", e);
				}
			}, args.window);
			try {
				window.__tcfapi("addEventListener", 2, onEvent);
			} catch (e) {
				console.error("__tcfapi.addEventListener failed", e);
			}
		});
	}`, map[string]any{
		"known":  known,
		"window": ms(window),
		"grace":  ms(grace),
	})
	if err != nil {
		return nil, false, err
	}
	wrapper, ok := result.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("unexpected TC data shape: %T", result)
	}
	data, _ := wrapper["tcData"].(map[string]any)
	success, _ := wrapper["success"].(bool)
	return TCData(data), success, nil
}

func (a *pageAPI) WaitStable(navTimeout, apiTimeout time.Duration) error {
	// Best-effort: give a navigation time to finish loading.
	_ = a.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(ms(navTimeout)),
	})
	if err := a.WaitForAPI(apiTimeout); err != nil {
		return ErrAPILost
	}
	return nil
}

func toPing(result any) Ping {
	if m, ok := result.(map[string]any); ok {
		return Ping(m)
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
