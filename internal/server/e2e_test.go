package server

import (
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/pefman/w40k-odds/internal/config"
	"github.com/pefman/w40k-odds/internal/form"
)

var withChromeDP = flag.String("with-chromedp", "", "The url of the remote debugging port")

func runStep(t *testing.T, ctx context.Context, description string, actions ...chromedp.Action) {
	t.Helper()
	t.Logf("STEP: %s", description)
	if err := chromedp.Run(ctx, actions...); err != nil {
		t.Fatalf("STEP %s: %v", description, err)
	}
}

func browser(t *testing.T) context.Context {
	t.Helper()
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	ctx, cancel := chromedp.NewRemoteAllocator(t.Context(), *withChromeDP)
	t.Cleanup(cancel)
	ctx, cancel = chromedp.NewContext(ctx)
	t.Cleanup(cancel)
	ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
	t.Cleanup(cancel)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if ev, ok := ev.(*runtime.EventExceptionThrown); ok {
			t.Logf("JS EXCEPTION: %s", ev.ExceptionDetails.Text)
		}
	})
	return ctx
}

func TestBrowser_AutoSubmitAndStep(t *testing.T) {
	ctx := browser(t)
	_, ts, sim := newTestServer(t, nil)

	runStep(t, ctx, "Load with state",
		chromedp.Navigate(ts.URL+"/?q=a%3D1"),
		chromedp.WaitVisible("#pdf-chart svg"),
	)
	if n := sim.calls.Load(); n != 1 {
		t.Errorf("simulator calls after load = %d", n)
	}

	var title, max string
	var ok bool
	runStep(t, ctx, "Range drawn",
		chromedp.Text("#pdf-title", &title),
		chromedp.AttributeValue("#attack_results_number", "max", &max, &ok),
	)
	if !strings.HasPrefix(title, "Expected Total Hits: 1.500") || max != "2" {
		t.Errorf("title %q max %q", title, max)
	}

	var dispatched bool
	runStep(t, ctx, "Move range",
		chromedp.SetValue("#attack_results_number", "1"),
		chromedp.Evaluate(`document.getElementById("attack_results_number").dispatchEvent(new Event("input"))`, &dispatched),
		chromedp.Poll(`document.getElementById("pdf-title").textContent.startsWith("Expected Total Hits: 0.800")`, nil),
	)

	var loc string
	runStep(t, ctx, "Submit pushes history",
		chromedp.Navigate(ts.URL+"/"),
		chromedp.WaitReady("#simulate_fields"),
		chromedp.SendKeys("#simulate_fields", "rounds=2"),
		chromedp.Click("#simulate"),
		chromedp.Poll(`location.search === "?q=a%3D1"`, nil),
		chromedp.Location(&loc),
	)
	if !strings.HasSuffix(loc, "/?q=a%3D1") {
		t.Errorf("location = %q", loc)
	}
}

func TestBrowser_StepperClampedOnScreen(t *testing.T) {
	ctx := browser(t)
	_, ts, _ := newTestServer(t, func(c *config.Config) {
		c.Page.Controls.Steppers = map[string]form.Stepper{"attack0.dice": {Min: 0, Max: 6}}
	})

	var dice, frac string
	runStep(t, ctx, "Out of range value snaps to max",
		chromedp.Navigate(ts.URL+"/"),
		chromedp.WaitReady("#attack0_fields"),
		chromedp.SendKeys("#attack0_fields", "dice=9&rerolls=9"),
		chromedp.Blur("#attack0_fields"),
		chromedp.Value("#attack0_fields", &dice),
	)
	if dice != "dice=6&rerolls=9" {
		t.Errorf("attack0 fields = %q, want dice=6&rerolls=9", dice)
	}

	runStep(t, ctx, "Fractions are kept",
		chromedp.SetValue("#attack0_fields", ""),
		chromedp.SendKeys("#attack0_fields", "dice=2.5"),
		chromedp.Blur("#attack0_fields"),
		chromedp.Value("#attack0_fields", &frac),
	)
	if frac != "dice=2.5" {
		t.Errorf("attack0 fields = %q, want dice=2.5", frac)
	}
}
