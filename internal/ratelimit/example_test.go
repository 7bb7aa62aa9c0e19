package ratelimit_test

import (
	"context"
	"fmt"

	"pageflow/internal/browser"
	"pageflow/internal/browser/browsertest"
	"pageflow/internal/ratelimit"
)

func ExampleLimiter_Driver() {
	// At most two browser launches per second, one at a time.
	limiter := ratelimit.New(2, 1)
	driver := limiter.Driver(&browsertest.Driver{})

	b, err := driver.Launch(context.Background(), browser.LaunchOptions{Headless: true})
	if err != nil {
		fmt.Println("launch failed:", err)
		return
	}
	defer b.Kill()

	fmt.Printf("launched at %.0f per second\n", limiter.Rate())
	// Output: launched at 2 per second
}
