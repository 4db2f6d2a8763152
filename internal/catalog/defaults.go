package catalog

import (
	"time"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// defaultTargets is the built-in detection surface set, one per category plus
// the heavier analysis pages.
func defaultTargets() []schemas.TestTarget {
	return []schemas.TestTarget{
		{
			Name:     "ip_check",
			URL:      "https://api.ipify.org?format=json",
			Category: schemas.CategoryIP,
			BaseWait: 30 * time.Second,
		},
		{
			Name:     "browserleaks_ip",
			URL:      "https://browserleaks.com/ip",
			Category: schemas.CategoryIP,
			BaseWait: 30 * time.Second,
		},
		{
			Name:     "bot_check",
			URL:      "https://bot.sannysoft.com/",
			Category: schemas.CategoryBot,
			BaseWait: 35 * time.Second,
		},
		{
			Name:     "pixelscan",
			URL:      "https://pixelscan.net/",
			Category: schemas.CategoryFingerprint,
			BaseWait: 45 * time.Second,
		},
		{
			Name:     "fingerprint_pro",
			URL:      "https://fingerprint.com/products/bot-detection/",
			Category: schemas.CategoryFingerprint,
			BaseWait: 45 * time.Second,
		},
		{
			Name:     "creepjs",
			URL:      "https://abrahamjuliot.github.io/creepjs/",
			Category: schemas.CategoryComprehensive,
			BaseWait: 30 * time.Second,
		},
		{
			Name:     "workers_check",
			URL:      "https://abrahamjuliot.github.io/creepjs/tests/workers.html",
			Category: schemas.CategoryWorker,
			BaseWait: 25 * time.Second,
		},
	}
}

// defaultLibraries is the built-in evaluation matrix.
func defaultLibraries() []schemas.LibrarySpec {
	return []schemas.LibrarySpec{
		{ID: "playwright", Category: "playwright", Status: "working"},
		{ID: "playwright_stealth", Category: "playwright", Status: "working"},
		{ID: "patchright", Category: "playwright", Status: "testing"},
		{ID: "camoufox", Category: "playwright", Status: "testing"},
		{ID: "selenium", Category: "selenium", Status: "working"},
		{ID: "undetected_chromedriver", Category: "selenium", Status: "working"},
		{ID: "seleniumbase_uc", Category: "selenium", Status: "testing"},
		{ID: "puppeteer", Category: "puppeteer", Status: "working"},
		{ID: "puppeteer_stealth", Category: "puppeteer", Status: "issues"},
		{ID: "nodriver", Category: "specialized", Status: "testing"},
		{ID: "curl_cffi", Category: "specialized", Status: "issues"},
	}
}
