package profiles

import "github.com/xkilldash9x/cloakbench/api/schemas"

// Built-in device rows used when no catalog directory is configured or a CSV
// cannot be read. Values describe real retail devices.

func defaultIPhoneProfiles() []schemas.DeviceProfile {
	return []schemas.DeviceProfile{
		{
			DeviceName:          "iPhone 12 Pro",
			Platform:            schemas.PlatformIOS,
			NavigatorPlatform:   "iPhone",
			OSVersion:           "14.6",
			UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			Viewport:            schemas.Viewport{Width: 390, Height: 844},
			PixelRatio:          3,
			HardwareConcurrency: 6,
			DeviceMemory:        4,
			MaxTouchPoints:      5,
			WebGLVendor:         "Apple Inc.",
			WebGLRenderer:       "Apple GPU",
			CanvasSeed:          4211,
			AudioSeed:           7702,
			Timezone:            "America/Los_Angeles",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.85,
			BatteryCharging:     false,
		},
		{
			DeviceName:          "iPhone 13 Pro Max",
			Platform:            schemas.PlatformIOS,
			NavigatorPlatform:   "iPhone",
			OSVersion:           "15.0",
			UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
			Viewport:            schemas.Viewport{Width: 428, Height: 926},
			PixelRatio:          3,
			HardwareConcurrency: 6,
			DeviceMemory:        6,
			MaxTouchPoints:      5,
			WebGLVendor:         "Apple Inc.",
			WebGLRenderer:       "Apple GPU",
			CanvasSeed:          1937,
			AudioSeed:           5120,
			Timezone:            "America/Los_Angeles",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.72,
			BatteryCharging:     true,
		},
		{
			DeviceName:          "iPhone 14",
			Platform:            schemas.PlatformIOS,
			NavigatorPlatform:   "iPhone",
			OSVersion:           "16.0",
			UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
			Viewport:            schemas.Viewport{Width: 390, Height: 844},
			PixelRatio:          3,
			HardwareConcurrency: 6,
			DeviceMemory:        6,
			MaxTouchPoints:      5,
			WebGLVendor:         "Apple Inc.",
			WebGLRenderer:       "Apple GPU",
			CanvasSeed:          8453,
			AudioSeed:           2286,
			Timezone:            "America/Los_Angeles",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.65,
			BatteryCharging:     false,
		},
		{
			DeviceName:          "iPhone 15 Pro",
			Platform:            schemas.PlatformIOS,
			NavigatorPlatform:   "iPhone",
			OSVersion:           "17.0",
			UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Viewport:            schemas.Viewport{Width: 393, Height: 852},
			PixelRatio:          3,
			HardwareConcurrency: 6,
			DeviceMemory:        8,
			MaxTouchPoints:      5,
			WebGLVendor:         "Apple Inc.",
			WebGLRenderer:       "Apple A17 Pro GPU",
			CanvasSeed:          6614,
			AudioSeed:           3359,
			Timezone:            "America/Chicago",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.91,
			BatteryCharging:     true,
		},
	}
}

func defaultAndroidProfiles() []schemas.DeviceProfile {
	return []schemas.DeviceProfile{
		{
			DeviceName:          "Samsung Galaxy S21",
			Platform:            schemas.PlatformAndroid,
			NavigatorPlatform:   "Linux armv8l",
			OSVersion:           "11",
			UserAgent:           "Mozilla/5.0 (Linux; Android 11; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			Viewport:            schemas.Viewport{Width: 360, Height: 800},
			PixelRatio:          3,
			HardwareConcurrency: 8,
			DeviceMemory:        8,
			MaxTouchPoints:      5,
			WebGLVendor:         "Qualcomm",
			WebGLRenderer:       "Adreno (TM) 660",
			CanvasSeed:          2751,
			AudioSeed:           9040,
			Timezone:            "America/Los_Angeles",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.78,
			BatteryCharging:     false,
		},
		{
			DeviceName:          "Samsung Galaxy S22",
			Platform:            schemas.PlatformAndroid,
			NavigatorPlatform:   "Linux armv8l",
			OSVersion:           "12",
			UserAgent:           "Mozilla/5.0 (Linux; Android 12; SM-S906B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.127 Mobile Safari/537.36",
			Viewport:            schemas.Viewport{Width: 360, Height: 780},
			PixelRatio:          3,
			HardwareConcurrency: 8,
			DeviceMemory:        8,
			MaxTouchPoints:      5,
			WebGLVendor:         "Qualcomm",
			WebGLRenderer:       "Adreno (TM) 730",
			CanvasSeed:          5873,
			AudioSeed:           1428,
			Timezone:            "America/Los_Angeles",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.82,
			BatteryCharging:     true,
		},
		{
			DeviceName:          "Google Pixel 6",
			Platform:            schemas.PlatformAndroid,
			NavigatorPlatform:   "Linux armv8l",
			OSVersion:           "12",
			UserAgent:           "Mozilla/5.0 (Linux; Android 12; Pixel 6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.104 Mobile Safari/537.36",
			Viewport:            schemas.Viewport{Width: 412, Height: 915},
			PixelRatio:          2.625,
			HardwareConcurrency: 8,
			DeviceMemory:        8,
			MaxTouchPoints:      5,
			WebGLVendor:         "ARM",
			WebGLRenderer:       "Mali-G78",
			CanvasSeed:          7196,
			AudioSeed:           6305,
			Timezone:            "America/Denver",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.69,
			BatteryCharging:     false,
		},
		{
			DeviceName:          "Google Pixel 7 Pro",
			Platform:            schemas.PlatformAndroid,
			NavigatorPlatform:   "Linux armv8l",
			OSVersion:           "13",
			UserAgent:           "Mozilla/5.0 (Linux; Android 13; Pixel 7 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Mobile Safari/537.36",
			Viewport:            schemas.Viewport{Width: 412, Height: 892},
			PixelRatio:          3.5,
			HardwareConcurrency: 8,
			DeviceMemory:        12,
			MaxTouchPoints:      5,
			WebGLVendor:         "ARM",
			WebGLRenderer:       "Mali-G710",
			CanvasSeed:          3048,
			AudioSeed:           8517,
			Timezone:            "America/Phoenix",
			Language:            "en-US",
			Languages:           []string{"en-US", "en"},
			BatteryLevel:        0.88,
			BatteryCharging:     true,
		},
	}
}
