// Package injection compiles a FingerprintRecord into the runtime patch
// program installed in every page before any page script runs. The output is
// a pure value: the same record always yields byte-identical text.
package injection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// Builder produces and syntax-checks patch programs.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("injection")}
}

// Build renders the patch program for one identity. Missing optional values
// (GPU descriptor, proxy address) silently omit their blocks; Build itself
// never fails.
func (b *Builder) Build(rec schemas.FingerprintRecord) string {
	var sb strings.Builder
	sb.WriteString("(function() {\n'use strict';\n")

	sb.WriteString(navigatorBlock(rec))
	if rec.WebGLVendor != "" && rec.WebGLRenderer != "" {
		sb.WriteString(webglBlock(rec.WebGLVendor, rec.WebGLRenderer))
	}
	sb.WriteString(screenBlock(rec.ScreenWidth, rec.ScreenHeight))
	sb.WriteString(batteryBlock(rec.Profile.BatteryLevel, rec.Profile.BatteryCharging))
	if rec.Timezone != "" {
		sb.WriteString(timezoneBlock(rec.Timezone))
	}
	sb.WriteString(scrubBlock)
	if rec.MaskWebRTC && rec.ProxyAddress != "" {
		sb.WriteString(webrtcBlock(rec.ProxyAddress))
	}

	sb.WriteString("})();\n")
	return sb.String()
}

// Validate syntax-checks a generated program before it is handed to a
// browser. Catches template regressions without launching anything.
func (b *Builder) Validate(script string) error {
	if _, err := goja.Compile("inject.js", script, true); err != nil {
		return fmt.Errorf("injection script does not compile: %w", err)
	}
	return nil
}

// js encodes a Go value as a JavaScript literal. json.Marshal gives stable,
// properly escaped output for strings, numbers and string slices.
func js(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(out)
}

// defineGetter renders one accessor override. configurable keeps the patch
// replayable; the getter makes direct property reads return the override.
func defineGetter(target, prop string, value any) string {
	return fmt.Sprintf(
		"Object.defineProperty(%s, %s, { get: function() { return %s; }, configurable: true });\n",
		target, js(prop), js(value))
}

func navigatorBlock(rec schemas.FingerprintRecord) string {
	var sb strings.Builder
	sb.WriteString("if (typeof navigator !== 'undefined') {\n")
	sb.WriteString(defineGetter("navigator", "userAgent", rec.UserAgent))
	sb.WriteString(defineGetter("navigator", "platform", rec.NavigatorPlatform))
	sb.WriteString(defineGetter("navigator", "hardwareConcurrency", rec.HardwareConcurrency))
	sb.WriteString(defineGetter("navigator", "deviceMemory", rec.DeviceMemory))
	sb.WriteString(defineGetter("navigator", "maxTouchPoints", rec.MaxTouchPoints))
	sb.WriteString(defineGetter("navigator", "language", rec.Language))
	sb.WriteString(defineGetter("navigator", "languages", rec.Languages))
	sb.WriteString("}\n")
	return sb.String()
}

// webglBlock patches the two GPU-identifying parameter pairs: the
// WEBGL_debug_renderer_info constants (37445/37446) and the core
// VENDOR/RENDERER constants (7936/7937), on both context generations.
func webglBlock(vendor, renderer string) string {
	patch := func(ctx string) string {
		return fmt.Sprintf(`if (typeof %[1]s !== 'undefined') {
var orig_%[1]s = %[1]s.prototype.getParameter;
%[1]s.prototype.getParameter = function(parameter) {
if (parameter === 37445 || parameter === 7936) return %[2]s;
if (parameter === 37446 || parameter === 7937) return %[3]s;
return orig_%[1]s.call(this, parameter);
};
}
`, ctx, js(vendor), js(renderer))
	}
	return patch("WebGLRenderingContext") + patch("WebGL2RenderingContext")
}

func screenBlock(width, height int) string {
	var sb strings.Builder
	sb.WriteString("if (typeof screen !== 'undefined') {\n")
	sb.WriteString(defineGetter("screen", "width", width))
	sb.WriteString(defineGetter("screen", "height", height))
	sb.WriteString(defineGetter("screen", "availWidth", width))
	sb.WriteString(defineGetter("screen", "availHeight", height))
	sb.WriteString("}\n")
	return sb.String()
}

func batteryBlock(level float64, charging bool) string {
	return fmt.Sprintf(`if (typeof navigator !== 'undefined' && navigator.getBattery) {
navigator.getBattery = function() {
return Promise.resolve({
charging: %s,
chargingTime: 0,
dischargingTime: Infinity,
level: %s,
onchargingchange: null,
onchargingtimechange: null,
ondischargingtimechange: null,
onlevelchange: null
});
};
}
`, js(charging), js(level))
}

// timezoneBlock forces the spoofed zone into any DateTimeFormat constructed
// without an explicit one.
func timezoneBlock(tz string) string {
	return fmt.Sprintf(`if (typeof Intl !== 'undefined' && Intl.DateTimeFormat) {
var OrigDTF = Intl.DateTimeFormat;
Intl.DateTimeFormat = function(locales, options) {
options = options || {};
if (!options.timeZone) { options.timeZone = %s; }
return new OrigDTF(locales, options);
};
Intl.DateTimeFormat.prototype = OrigDTF.prototype;
}
`, js(tz))
}

// scrubBlock removes the webdriver flag and the known automation globals.
const scrubBlock = `if (typeof navigator !== 'undefined') {
try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}
Object.defineProperty(navigator, 'webdriver', { get: function() { return undefined; }, configurable: true });
}
if (typeof window !== 'undefined') {
['__nightmare', '_phantom', 'callPhantom', '__selenium_unwrapped', '__webdriver_evaluate', '__driver_evaluate'].forEach(function(k) {
try { delete window[k]; } catch (e) {}
});
}
`

// webrtcBlock wraps the RTCPeerConnection constructor so every candidate
// carrying a private-range address reaches listeners with that address
// rewritten to the proxy egress. Both the onicecandidate property path and
// the addEventListener path deliver a reconstructed event built from the
// rewritten candidate string; the original event is never mutated, so both
// paths observe identical data. Public addresses pass through untouched.
func webrtcBlock(proxyAddr string) string {
	return fmt.Sprintf(`if (typeof window !== 'undefined' && window.RTCPeerConnection) {
var PROXY_IP = %s;
var PRIV4 = /\b(?:10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}|127\.\d{1,3}\.\d{1,3}\.\d{1,3}|169\.254\.\d{1,3}\.\d{1,3})\b/g;
var PRIV6 = /(?:^|[\s])((?:::1)|(?:f[cd][0-9a-f]{2}:[0-9a-f:]*)|(?:fe[89ab][0-9a-f]:[0-9a-f:]*))(?=[\s]|$)/gi;
function maskCandidate(line) {
return line.replace(PRIV4, PROXY_IP).replace(PRIV6, function(m, addr) {
return m.replace(addr, PROXY_IP);
});
}
function rebuildEvent(ev, pc) {
if (!ev || !ev.candidate || !ev.candidate.candidate) { return ev; }
var masked = maskCandidate(ev.candidate.candidate);
if (masked === ev.candidate.candidate) { return ev; }
var cand;
try {
cand = new RTCIceCandidate({
candidate: masked,
sdpMid: ev.candidate.sdpMid,
sdpMLineIndex: ev.candidate.sdpMLineIndex,
usernameFragment: ev.candidate.usernameFragment
});
} catch (e) {
cand = {
candidate: masked,
sdpMid: ev.candidate.sdpMid,
sdpMLineIndex: ev.candidate.sdpMLineIndex,
usernameFragment: ev.candidate.usernameFragment,
component: ev.candidate.component,
priority: ev.candidate.priority,
port: ev.candidate.port,
protocol: ev.candidate.protocol,
type: ev.candidate.type
};
}
var out;
try { out = new Event('icecandidate'); } catch (e) { out = { type: 'icecandidate' }; }
Object.defineProperty(out, 'candidate', { value: cand, enumerable: true, configurable: true });
Object.defineProperty(out, 'target', { value: pc, enumerable: true, configurable: true });
return out;
}
var OrigRTC = window.RTCPeerConnection;
var WrappedRTC = function(config, constraints) {
var pc = new OrigRTC(config, constraints);
var origAdd = pc.addEventListener.bind(pc);
pc.addEventListener = function(type, listener, opts) {
if (type === 'icecandidate' && typeof listener === 'function') {
return origAdd(type, function(ev) { listener.call(pc, rebuildEvent(ev, pc)); }, opts);
}
return origAdd(type, listener, opts);
};
var handler = null;
Object.defineProperty(pc, 'onicecandidate', {
configurable: true,
get: function() { return handler; },
set: function(fn) { handler = fn; }
});
origAdd('icecandidate', function(ev) {
if (typeof handler === 'function') { handler.call(pc, rebuildEvent(ev, pc)); }
});
return pc;
};
WrappedRTC.prototype = OrigRTC.prototype;
if (OrigRTC.generateCertificate) { WrappedRTC.generateCertificate = OrigRTC.generateCertificate.bind(OrigRTC); }
Object.defineProperty(WrappedRTC, 'name', { value: 'RTCPeerConnection', configurable: true });
window.RTCPeerConnection = WrappedRTC;
if (window.webkitRTCPeerConnection) { window.webkitRTCPeerConnection = WrappedRTC; }
}
`, js(proxyAddr))
}
